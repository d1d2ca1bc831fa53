package prover

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"anoncreds/internal/clcrypto"
	"anoncreds/internal/normalize"
	"anoncreds/internal/types"
	"anoncreds/pkg/helpers"
)

func storeOneCredential(t *testing.T, ctx context.Context, p *Prover, msID string, issuer *testIssuer, credDef types.CredDef, values map[string]types.AttrValue) string {
	t.Helper()
	offer := issuer.offer(t)
	req, metadata, err := p.CreateCredentialRequest(ctx, "did:prover", offer, credDef, msID)
	require.NoError(t, err)
	cred := issuer.issue(t, req, offer.Nonce, values)
	credID, err := p.StoreCredential(ctx, "", *metadata, cred, credDef, nil)
	require.NoError(t, err)
	return credID
}

func TestCreateProofRevealsSelectedAttribute(t *testing.T) {
	ctx := context.Background()
	p := newTestProver()
	msID, err := p.CreateMasterSecret(ctx, "")
	require.NoError(t, err)

	issuer := newTestIssuer(t, []string{"name", "age"})
	credDef := issuer.credDef(t)
	values := attrValues(map[string]string{"name": "alice", "age": "41"})
	credID := storeOneCredential(t, ctx, p, msID, issuer, credDef, values)

	nonce, err := clcrypto.GenerateNonce()
	require.NoError(t, err)
	proofReq := types.ProofRequest{
		Name: "proof", Version: "1.0", Nonce: nonce,
		RequestedAttributes: map[string]types.AttrInfo{
			"attr_name": {Name: "name"},
		},
	}
	sel := types.RequestedCredentials{
		RequestedAttributes: map[string]types.RequestedAttribute{
			"attr_name": {CredID: credID, Revealed: true},
		},
	}

	schemas := map[string]types.Schema{issuer.schemaID: {ID: issuer.schemaID, Name: "degree", Version: "1.0", IssuerDID: "issuer", AttrNames: []string{"name", "age"}}}
	proof, err := p.CreateProof(ctx, proofReq, sel, msID, schemas, map[string]types.CredDef{issuer.credDefID: credDef}, nil)
	require.NoError(t, err)
	require.Len(t, proof.ProofData.Proofs, 1)
	require.Equal(t, "alice", proof.RequestedProof.RevealedAttrs["attr_name"].Raw)

	okVerify, err := verifyBuiltProof(t, proofReq, proof, credDef)
	require.NoError(t, err)
	require.True(t, okVerify)
}

func TestCreateProofRejectsUnsatisfiedPredicate(t *testing.T) {
	ctx := context.Background()
	p := newTestProver()
	msID, err := p.CreateMasterSecret(ctx, "")
	require.NoError(t, err)

	issuer := newTestIssuer(t, []string{"age"})
	credDef := issuer.credDef(t)
	values := attrValues(map[string]string{"age": "16"})
	credID := storeOneCredential(t, ctx, p, msID, issuer, credDef, values)

	nonce, err := clcrypto.GenerateNonce()
	require.NoError(t, err)
	proofReq := types.ProofRequest{
		Name: "proof", Version: "1.0", Nonce: nonce,
		RequestedPredicates: map[string]types.PredInfo{
			"pred_age": {Name: "age", PType: types.PredGE, PValue: 18},
		},
	}
	sel := types.RequestedCredentials{
		RequestedPredicates: map[string]types.RequestedPredicate{
			"pred_age": {CredID: credID},
		},
	}

	schemas := map[string]types.Schema{issuer.schemaID: {ID: issuer.schemaID, Name: "degree", Version: "1.0", IssuerDID: "issuer", AttrNames: []string{"age"}}}
	_, err = p.CreateProof(ctx, proofReq, sel, msID, schemas, map[string]types.CredDef{issuer.credDefID: credDef}, nil)
	require.ErrorIs(t, err, helpers.ErrProofRejected)
}

func TestCreateProofValidatesCoverage(t *testing.T) {
	ctx := context.Background()
	p := newTestProver()
	msID, err := p.CreateMasterSecret(ctx, "")
	require.NoError(t, err)

	nonce, err := clcrypto.GenerateNonce()
	require.NoError(t, err)
	proofReq := types.ProofRequest{
		Name: "proof", Version: "1.0", Nonce: nonce,
		RequestedAttributes: map[string]types.AttrInfo{"attr_name": {Name: "name"}},
	}
	_, err = p.CreateProof(ctx, proofReq, types.RequestedCredentials{}, msID, nil, nil, nil)
	require.ErrorIs(t, err, helpers.ErrInvalidStructure)
}

// verifyBuiltProof replays VerifyDisclosureProof directly against
// internal/clcrypto to confirm CreateProof's sub-proof is actually
// sound, independent of the internal/verifier package.
func verifyBuiltProof(t *testing.T, req types.ProofRequest, proof *types.Proof, credDef types.CredDef) (bool, error) {
	t.Helper()
	pk, err := decodePublicKey(credDef.Value.PublicKey)
	require.NoError(t, err)

	revealedAttrs := map[string]*big.Int{}
	for referent, ra := range proof.RequestedProof.RevealedAttrs {
		attrInfo := req.RequestedAttributes[referent]
		enc, ok := new(big.Int).SetString(ra.Encoded, 10)
		require.True(t, ok)
		revealedAttrs[normalize.Name(attrInfo.Name)] = enc
	}

	allNames := make([]string, 0, len(pk.R))
	for name := range pk.R {
		if name == clcrypto.LinkSecretName {
			continue
		}
		allNames = append(allNames, name)
	}

	nonce, err := clcrypto.ParseNonce(req.Nonce)
	require.NoError(t, err)

	groups := []clcrypto.VerifyGroupInput{{PK: pk, AllAttrNames: allNames, RevealedAttrs: revealedAttrs}}
	return clcrypto.VerifyDisclosureProof(groups, proof.ProofData.Proofs, proof.ProofData.AggregatedProof, nonce)
}
