package verifier

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"anoncreds/internal/clcrypto"
	"anoncreds/internal/encoding"
	"anoncreds/internal/normalize"
	"anoncreds/internal/prover"
	"anoncreds/internal/revocation"
	"anoncreds/internal/store"
	"anoncreds/internal/types"
)

// testIssuer stands in for the issuer side of the protocol, exactly as
// internal/prover's own tests do (an issuer-side test double can't be
// shared across packages since the real issuer role is out of scope for
// this repository).
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

func (iss *testIssuer) credDef(t *testing.T, supportsRevocation bool) types.CredDef {
	t.Helper()
	raw, err := json.Marshal(iss.pk)
	require.NoError(t, err)
	return types.CredDef{
		ID:                 iss.credDefID,
		SchemaID:           iss.schemaID,
		Type:               "CL",
		SupportsRevocation: supportsRevocation,
		Value:              types.CredDefValue{PublicKey: raw},
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

func (iss *testIssuer) issue(t *testing.T, req *types.CredentialRequest, offerNonce string, values map[string]types.AttrValue, revRegID string) types.Credential {
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
		RevRegID:  revRegID,
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

func attrValues(raw map[string]string) map[string]types.AttrValue {
	out := make(map[string]types.AttrValue, len(raw))
	for name, v := range raw {
		out[normalize.Name(name)] = types.AttrValue{Raw: v, Encoded: encoding.Encode(v)}
	}
	return out
}

func newTestProver() *prover.Prover {
	return prover.New(store.NewMemoryStore(), clcrypto.DefaultParams(), nil)
}

// setupHappyPath issues a non-revocable credential with name/age, stores it,
// and builds a proof request revealing name with a predicate on age,
// returning everything a VerifyProof call needs.
func setupHappyPath(t *testing.T) (types.ProofRequest, *types.Proof, map[string]types.Schema, map[string]types.CredDef) {
	t.Helper()
	ctx := context.Background()
	p := newTestProver()
	msID, err := p.CreateMasterSecret(ctx, "")
	require.NoError(t, err)

	issuer := newTestIssuer(t, []string{"name", "age"})
	credDef := issuer.credDef(t, false)
	offer := issuer.offer(t)
	req, metadata, err := p.CreateCredentialRequest(ctx, "did:prover", offer, credDef, msID)
	require.NoError(t, err)
	values := attrValues(map[string]string{"name": "Alice", "age": "28"})
	cred := issuer.issue(t, req, offer.Nonce, values, "")
	credID, err := p.StoreCredential(ctx, "", *metadata, cred, credDef, nil)
	require.NoError(t, err)

	nonce, err := clcrypto.GenerateNonce()
	require.NoError(t, err)
	proofReq := types.ProofRequest{
		Name: "proof", Version: "1.0", Nonce: nonce,
		RequestedAttributes: map[string]types.AttrInfo{
			"attr_name": {Name: "name"},
		},
		RequestedPredicates: map[string]types.PredInfo{
			"pred_age": {Name: "age", PType: types.PredGE, PValue: 18},
		},
	}
	sel := types.RequestedCredentials{
		RequestedAttributes: map[string]types.RequestedAttribute{
			"attr_name": {CredID: credID, Revealed: true},
		},
		RequestedPredicates: map[string]types.RequestedPredicate{
			"pred_age": {CredID: credID},
		},
	}

	schemas := map[string]types.Schema{issuer.schemaID: {
		ID: issuer.schemaID, Name: "degree", Version: "1.0", IssuerDID: "issuer", AttrNames: []string{"name", "age"},
	}}
	credDefs := map[string]types.CredDef{issuer.credDefID: credDef}

	proof, err := p.CreateProof(ctx, proofReq, sel, msID, schemas, credDefs, nil)
	require.NoError(t, err)
	return proofReq, proof, schemas, credDefs
}

func TestVerifyProofHappyPath(t *testing.T) {
	proofReq, proof, schemas, credDefs := setupHappyPath(t)

	v := New(revocation.StaticTailsAccessor{}, nil)
	ok, err := v.VerifyProof(context.Background(), proofReq, *proof, schemas, credDefs, nil, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyProofRejectsTamperedRevealedValue(t *testing.T) {
	proofReq, proof, schemas, credDefs := setupHappyPath(t)

	ra := proof.RequestedProof.RevealedAttrs["attr_name"]
	ra.Raw = "Bob"
	proof.RequestedProof.RevealedAttrs["attr_name"] = ra

	v := New(revocation.StaticTailsAccessor{}, nil)
	ok, err := v.VerifyProof(context.Background(), proofReq, *proof, schemas, credDefs, nil, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyProofRejectsTamperedAggregatedProof(t *testing.T) {
	proofReq, proof, schemas, credDefs := setupHappyPath(t)

	proof.ProofData.AggregatedProof.CHash += "ff"

	v := New(revocation.StaticTailsAccessor{}, nil)
	ok, err := v.VerifyProof(context.Background(), proofReq, *proof, schemas, credDefs, nil, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyProofRejectsRestrictionMismatch(t *testing.T) {
	proofReq, proof, schemas, credDefs := setupHappyPath(t)

	attrInfo := proofReq.RequestedAttributes["attr_name"]
	attrInfo.Restrictions = types.WQLQuery{"cred_def_id": "some-other-cred-def"}
	proofReq.RequestedAttributes["attr_name"] = attrInfo

	v := New(revocation.StaticTailsAccessor{}, nil)
	ok, err := v.VerifyProof(context.Background(), proofReq, *proof, schemas, credDefs, nil, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyProofRejectsUnsatisfiedPredicateWiring(t *testing.T) {
	proofReq, proof, schemas, credDefs := setupHappyPath(t)

	predInfo := proofReq.RequestedPredicates["pred_age"]
	predInfo.PValue = 30
	proofReq.RequestedPredicates["pred_age"] = predInfo

	v := New(revocation.StaticTailsAccessor{}, nil)
	ok, err := v.VerifyProof(context.Background(), proofReq, *proof, schemas, credDefs, nil, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyProofRevocation(t *testing.T) {
	ctx := context.Background()
	p := newTestProver()
	msID, err := p.CreateMasterSecret(ctx, "")
	require.NoError(t, err)

	issuer := newTestIssuer(t, []string{"name"})
	credDef := issuer.credDef(t, true)
	offer := issuer.offer(t)
	req, metadata, err := p.CreateCredentialRequest(ctx, "did:prover", offer, credDef, msID)
	require.NoError(t, err)
	values := attrValues(map[string]string{"name": "Alice"})

	n, _ := new(big.Int).SetString("2357", 10)
	g, _ := new(big.Int).SetString("5", 10)
	revRegDef := types.RevRegDef{
		ID:         "revreg:1",
		CredDefID:  issuer.credDefID,
		MaxCredNum: 10,
		Value:      types.RevRegDefValue{AccumModulus: n.String(), AccumGenerator: g.String()},
	}

	cred := issuer.issue(t, req, offer.Nonce, values, revRegDef.ID)
	credID, err := p.StoreCredential(ctx, "", *metadata, cred, credDef, &revRegDef)
	require.NoError(t, err)

	tails := revocation.StaticTailsAccessor{}
	mgr := revocation.NewManager(tails, time.Hour)
	delta := revocation.Delta{NonRevoked: []int64{1}}
	state1, err := mgr.BuildState(ctx, revRegDef, delta, 100, 1)
	require.NoError(t, err)

	nonce, err := clcrypto.GenerateNonce()
	require.NoError(t, err)
	ts := int64(100)
	proofReq := types.ProofRequest{
		Name: "proof", Version: "1.0", Nonce: nonce,
		RequestedAttributes: map[string]types.AttrInfo{
			"attr_name": {Name: "name", NonRevoked: &types.NonRevokedInterval{From: &ts, To: &ts}},
		},
	}
	sel := types.RequestedCredentials{
		RequestedAttributes: map[string]types.RequestedAttribute{
			"attr_name": {CredID: credID, Revealed: true, Timestamp: &ts},
		},
	}
	schemas := map[string]types.Schema{issuer.schemaID: {
		ID: issuer.schemaID, Name: "degree", Version: "1.0", IssuerDID: "issuer", AttrNames: []string{"name"},
	}}
	credDefs := map[string]types.CredDef{issuer.credDefID: credDef}
	revRegDefs := map[string]types.RevRegDef{revRegDef.ID: revRegDef}
	revStates := prover.RevocationStates{revRegDef.ID: {100: *state1}}

	proof, err := p.CreateProof(ctx, proofReq, sel, msID, schemas, credDefs, revStates)
	require.NoError(t, err)

	revRegs := RevRegs{revRegDef.ID: {100: state1.RevReg}}
	v := New(tails, nil)
	ok, err := v.VerifyProof(ctx, proofReq, *proof, schemas, credDefs, revRegDefs, revRegs)
	require.NoError(t, err)
	require.True(t, ok)

	// Revoke the credential (index 1 no longer in the non-revoked delta),
	// build the registry's new state at t2, and confirm a proof claiming
	// the stale t1 witness against t2's published accumulator fails.
	delta2 := revocation.Delta{NonRevoked: []int64{}}
	_, err = mgr.BuildState(ctx, revRegDef, delta2, 200, 1)
	require.Error(t, err) // credRevID 1 is no longer a member; can't build a witness for it.

	revRegsAfterRevocation := RevRegs{revRegDef.ID: {100: types.RevRegState{Accum: g.String()}}}
	ok, err = v.VerifyProof(ctx, proofReq, *proof, schemas, credDefs, revRegDefs, revRegsAfterRevocation)
	require.NoError(t, err)
	require.False(t, ok)
}
