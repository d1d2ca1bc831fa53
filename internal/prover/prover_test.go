package prover

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"anoncreds/internal/clcrypto"
	"anoncreds/internal/encoding"
	"anoncreds/internal/normalize"
	"anoncreds/internal/store"
	"anoncreds/internal/types"
	"anoncreds/pkg/helpers"
)

// testIssuer stands in for the issuer side of the protocol (out of scope
// for this repository's command surface) purely so these tests can build a
// real, verifiable credential to hand to the prover under test.
type testIssuer struct {
	pk        *clcrypto.PublicKey
	sk        *clcrypto.PrivateKey
	kcp       *clcrypto.KeyCorrectnessProof
	schemaID  string
	credDefID string
}

func newTestIssuer(t *testing.T, attrNames []string) *testIssuer {
	t.Helper()
	pk, sk, kcp, err := clcrypto.GenerateIssuerKeyPair(attrNames, clcrypto.DefaultParams())
	require.NoError(t, err)
	return &testIssuer{pk: pk, sk: sk, kcp: kcp, schemaID: "issuer:2:degree:1.0", credDefID: "issuer:3:CL:1:tag"}
}

func (iss *testIssuer) credDef(t *testing.T) types.CredDef {
	t.Helper()
	raw, err := marshalPK(iss.pk)
	require.NoError(t, err)
	return types.CredDef{
		ID:       iss.credDefID,
		SchemaID: iss.schemaID,
		Type:     "CL",
		Value:    types.CredDefValue{PublicKey: raw},
	}
}

func (iss *testIssuer) offer(t *testing.T) types.CredentialOffer {
	t.Helper()
	nonce, err := clcrypto.GenerateNonce()
	require.NoError(t, err)
	return types.CredentialOffer{
		SchemaID:  iss.schemaID,
		CredDefID: iss.credDefID,
		Nonce:     nonce,
		KeyCorrectnessProof: types.KeyCorrectnessProof{
			C:     iss.kcp.C.String(),
			XZCap: iss.kcp.XZCap.String(),
			XRCap: bigMapToStrings(iss.kcp.XRCap),
		},
	}
}

// issue plays out the issuer's half of credential issuance: verify the
// request's blinded-MS correctness proof, sign the attribute block together
// with the blinded commitment, and attach a signature-correctness proof
// bound to the request's own nonce.
func (iss *testIssuer) issue(t *testing.T, req *types.CredentialRequest, offerNonce string, values map[string]types.AttrValue) types.Credential {
	t.Helper()

	blindedMS, ok := new(big.Int).SetString(req.BlindedMS, 10)
	require.True(t, ok)
	bp := &clcrypto.BlindedMSCorrectnessProof{
		C:        mustBig(t, req.BlindedMSCorrectnessProof.C),
		MSCap:    mustBig(t, req.BlindedMSCorrectnessProof.MSCap),
		VDashCap: mustBig(t, req.BlindedMSCorrectnessProof.VDashCap),
	}
	onNonce, err := clcrypto.ParseNonce(offerNonce)
	require.NoError(t, err)
	okProof, err := clcrypto.VerifyBlindedMSCorrectnessProof(iss.pk, blindedMS, bp, onNonce)
	require.NoError(t, err)
	require.True(t, okProof)

	attrs := map[string]*big.Int{}
	for name, v := range values {
		attrs[normalize.Name(name)] = mustBig(t, v.Encoded)
	}

	sig, q, err := clcrypto.SignMessageBlockAndCommitment(iss.sk, iss.pk, blindedMS, attrs)
	require.NoError(t, err)

	reqNonce, err := clcrypto.ParseNonce(req.Nonce)
	require.NoError(t, err)
	scp, err := clcrypto.BuildSignatureCorrectnessProof(iss.sk, iss.pk, sig, q, reqNonce)
	require.NoError(t, err)

	return types.Credential{
		SchemaID:  iss.schemaID,
		CredDefID: iss.credDefID,
		Values:    values,
		Signature: types.CredentialSignature{A: sig.A.String(), E: sig.E.String(), V: sig.V.String()},
		SignatureCorrectnessProof: types.SignatureCorrectnessProof{
			SE: scp.SE.String(),
			C:  scp.C.String(),
		},
	}
}

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	n, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "invalid decimal %q", s)
	return n
}

func bigMapToStrings(m map[string]*big.Int) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v.String()
	}
	return out
}

func marshalPK(pk *clcrypto.PublicKey) ([]byte, error) {
	return json.Marshal(pk)
}

func attrValues(raw map[string]string) map[string]types.AttrValue {
	out := make(map[string]types.AttrValue, len(raw))
	for name, v := range raw {
		out[normalize.Name(name)] = types.AttrValue{Raw: v, Encoded: encoding.Encode(v)}
	}
	return out
}

func newTestProver() *Prover {
	return New(store.NewMemoryStore(), clcrypto.DefaultParams(), nil)
}

func TestCreateMasterSecretRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newTestProver()

	id, err := p.CreateMasterSecret(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := p.store.GetLinkSecret(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, rec.Value)
}

func TestCredentialRequestAndStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newTestProver()
	msID, err := p.CreateMasterSecret(ctx, "ms-1")
	require.NoError(t, err)

	issuer := newTestIssuer(t, []string{"name", "age"})
	credDef := issuer.credDef(t)
	offer := issuer.offer(t)

	req, metadata, err := p.CreateCredentialRequest(ctx, "did:prover", offer, credDef, msID)
	require.NoError(t, err)
	require.NotNil(t, req)
	require.Equal(t, msID, metadata.MasterSecretName)

	values := attrValues(map[string]string{"name": "alice", "age": "41"})
	cred := issuer.issue(t, req, offer.Nonce, values)

	credID, err := p.StoreCredential(ctx, "cred-1", *metadata, cred, credDef, nil)
	require.NoError(t, err)
	require.Equal(t, "cred-1", credID)

	info, err := p.GetCredential(ctx, credID)
	require.NoError(t, err)
	require.Equal(t, "alice", info.Attrs["name"])
	require.Equal(t, "41", info.Attrs["age"])
	require.Equal(t, issuer.schemaID, info.SchemaID)
}

func TestStoreCredentialRejectsTamperedSignature(t *testing.T) {
	ctx := context.Background()
	p := newTestProver()
	msID, err := p.CreateMasterSecret(ctx, "")
	require.NoError(t, err)

	issuer := newTestIssuer(t, []string{"name"})
	credDef := issuer.credDef(t)
	offer := issuer.offer(t)

	req, metadata, err := p.CreateCredentialRequest(ctx, "did:prover", offer, credDef, msID)
	require.NoError(t, err)

	values := attrValues(map[string]string{"name": "alice"})
	cred := issuer.issue(t, req, offer.Nonce, values)
	cred.Values["name"] = types.AttrValue{Raw: "mallory", Encoded: encoding.Encode("mallory")}

	_, err = p.StoreCredential(ctx, "", *metadata, cred, credDef, nil)
	require.ErrorIs(t, err, helpers.ErrUrsa)
}

func TestTagPolicyRetroactiveRewrite(t *testing.T) {
	ctx := context.Background()
	p := newTestProver()
	msID, err := p.CreateMasterSecret(ctx, "")
	require.NoError(t, err)

	issuer := newTestIssuer(t, []string{"name", "age"})
	credDef := issuer.credDef(t)
	offer := issuer.offer(t)
	req, metadata, err := p.CreateCredentialRequest(ctx, "did:prover", offer, credDef, msID)
	require.NoError(t, err)
	values := attrValues(map[string]string{"name": "alice", "age": "41"})
	cred := issuer.issue(t, req, offer.Nonce, values)
	credID, err := p.StoreCredential(ctx, "", *metadata, cred, credDef, nil)
	require.NoError(t, err)

	stored, err := p.store.GetCredential(ctx, credID)
	require.NoError(t, err)
	require.Contains(t, stored.Tags, "attr::name::marker")
	require.Contains(t, stored.Tags, "attr::age::marker")

	err = p.SetCredentialAttrTagPolicy(ctx, issuer.credDefID, []string{"age"}, true)
	require.NoError(t, err)

	stored, err = p.store.GetCredential(ctx, credID)
	require.NoError(t, err)
	require.NotContains(t, stored.Tags, "attr::name::marker")
	require.Contains(t, stored.Tags, "attr::age::marker")
}

func TestSearchCredentialsPaging(t *testing.T) {
	ctx := context.Background()
	p := newTestProver()
	msID, err := p.CreateMasterSecret(ctx, "")
	require.NoError(t, err)

	issuer := newTestIssuer(t, []string{"name"})
	credDef := issuer.credDef(t)

	for i := 0; i < 3; i++ {
		offer := issuer.offer(t)
		req, metadata, err := p.CreateCredentialRequest(ctx, "did:prover", offer, credDef, msID)
		require.NoError(t, err)
		values := attrValues(map[string]string{"name": "alice"})
		cred := issuer.issue(t, req, offer.Nonce, values)
		_, err = p.StoreCredential(ctx, "", *metadata, cred, credDef, nil)
		require.NoError(t, err)
	}

	handle, total, err := p.SearchCredentials(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 3, total)

	page, err := p.FetchCredentials(handle, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)

	rest, err := p.FetchCredentials(handle, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	require.NoError(t, p.CloseCredentialsSearch(handle))
}
