package clcrypto

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"anoncreds/internal/types"
)

func smallParams() SystemParams {
	// A scaled-down parameter set so tests run in reasonable time; the
	// relative bit-length relationships mirror DefaultParams.
	return SystemParams{
		KeySizeBits: 256,
		Le:          120,
		LePrime:     40,
		Lv:          400,
		Lm:          128,
		LRA:         200,
		Lstatzk:     40,
	}
}

func issueCredential(t *testing.T, attrNames []string, attrs map[string]*big.Int) (*PublicKey, *CLSignature, *big.Int) {
	t.Helper()
	params := smallParams()
	pk, sk, kcp, err := GenerateIssuerKeyPair(attrNames, params)
	require.NoError(t, err)

	ok, err := VerifyKeyCorrectnessProof(pk, kcp)
	require.NoError(t, err)
	require.True(t, ok)

	ms, err := GenerateLinkSecret(params)
	require.NoError(t, err)

	nonce, err := randomBigInt(80)
	require.NoError(t, err)

	u, proof, vPrime, err := BlindLinkSecret(pk, ms, nonce)
	require.NoError(t, err)

	ok, err = VerifyBlindedMSCorrectnessProof(pk, u, proof, nonce)
	require.NoError(t, err)
	require.True(t, ok)

	sig, q, err := SignMessageBlockAndCommitment(sk, pk, u, attrs)
	require.NoError(t, err)

	scp, err := BuildSignatureCorrectnessProof(sk, pk, sig, q, nonce)
	require.NoError(t, err)
	ok, err = VerifySignatureCorrectnessProof(pk, sig, scp, nonce)
	require.NoError(t, err)
	require.True(t, ok)

	unblinded := ProcessCredentialSignature(sig, vPrime)

	full := map[string]*big.Int{LinkSecretName: ms}
	for k, v := range attrs {
		full[k] = v
	}
	require.True(t, unblinded.Verify(pk, full))

	return pk, unblinded, ms
}

func TestKeyCorrectnessProofRejectsTamperedBase(t *testing.T) {
	params := smallParams()
	pk, _, kcp, err := GenerateIssuerKeyPair([]string{"name"}, params)
	require.NoError(t, err)

	pk.R["name"] = new(big.Int).Add(pk.R["name"], big.NewInt(1))
	ok, err := VerifyKeyCorrectnessProof(pk, kcp)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCredentialSignatureRoundTrip(t *testing.T) {
	attrs := map[string]*big.Int{"age": big.NewInt(31)}
	pk, sig, ms := issueCredential(t, []string{"age"}, attrs)

	full := map[string]*big.Int{"age": big.NewInt(31), LinkSecretName: ms}
	require.True(t, sig.Verify(pk, full))

	randomized, _, err := sig.Randomize(pk)
	require.NoError(t, err)
	require.True(t, randomized.Verify(pk, full))
	require.NotEqual(t, sig.A.String(), randomized.A.String())
}

func TestSignatureVerifyRejectsTamperedAttribute(t *testing.T) {
	params := smallParams()
	attrNames := []string{"age"}
	pk, sk, _, err := GenerateIssuerKeyPair(attrNames, params)
	require.NoError(t, err)

	ms, err := GenerateLinkSecret(params)
	require.NoError(t, err)
	nonce, _ := randomBigInt(80)
	u, _, vPrime, err := BlindLinkSecret(pk, ms, nonce)
	require.NoError(t, err)

	attrs := map[string]*big.Int{"age": big.NewInt(31)}
	sig, _, err := SignMessageBlockAndCommitment(sk, pk, u, attrs)
	require.NoError(t, err)
	unblinded := ProcessCredentialSignature(sig, vPrime)

	full := map[string]*big.Int{"age": big.NewInt(31), LinkSecretName: ms}
	require.True(t, unblinded.Verify(pk, full))

	tampered := map[string]*big.Int{"age": big.NewInt(99), LinkSecretName: ms}
	require.False(t, unblinded.Verify(pk, tampered))
}

func TestDisclosureProofRevealedAndHidden(t *testing.T) {
	params := smallParams()
	attrNames := []string{"name", "age"}
	pk, sk, _, err := GenerateIssuerKeyPair(attrNames, params)
	require.NoError(t, err)

	ms, err := GenerateLinkSecret(params)
	require.NoError(t, err)
	nonce, _ := randomBigInt(80)
	u, _, vPrime, err := BlindLinkSecret(pk, ms, nonce)
	require.NoError(t, err)

	nameVal := big.NewInt(12345)
	ageVal := big.NewInt(41)
	sig, _, err := SignMessageBlockAndCommitment(sk, pk, u, map[string]*big.Int{
		"name": nameVal, "age": ageVal,
	})
	require.NoError(t, err)
	cred := ProcessCredentialSignature(sig, vPrime)

	group := GroupInput{
		PK:        pk,
		Signature: cred,
		Attrs: map[string]AttrSpec{
			LinkSecretName: {Value: ms, Revealed: false},
			"name":         {Value: nameVal, Revealed: true},
			"age":          {Value: ageVal, Revealed: false},
		},
	}

	proofNonce, _ := randomBigInt(80)
	subProofs, agg, err := BuildDisclosureProof([]GroupInput{group}, proofNonce)
	require.NoError(t, err)
	require.Len(t, subProofs, 1)

	verifyGroup := VerifyGroupInput{
		PK:            pk,
		AllAttrNames:  []string{"name", "age"},
		RevealedAttrs: map[string]*big.Int{"name": nameVal},
	}
	ok, err := VerifyDisclosureProof([]VerifyGroupInput{verifyGroup}, subProofs, agg, proofNonce)
	require.NoError(t, err)
	require.True(t, ok)

	// Tampering with a revealed value must be caught.
	badGroup := verifyGroup
	badGroup.RevealedAttrs = map[string]*big.Int{"name": big.NewInt(1)}
	ok, err = VerifyDisclosureProof([]VerifyGroupInput{badGroup}, subProofs, agg, proofNonce)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDisclosureProofWithPredicate(t *testing.T) {
	params := smallParams()
	attrNames := []string{"age"}
	pk, sk, _, err := GenerateIssuerKeyPair(attrNames, params)
	require.NoError(t, err)

	ms, err := GenerateLinkSecret(params)
	require.NoError(t, err)
	nonce, _ := randomBigInt(80)
	u, _, vPrime, err := BlindLinkSecret(pk, ms, nonce)
	require.NoError(t, err)

	ageVal := big.NewInt(41)
	sig, _, err := SignMessageBlockAndCommitment(sk, pk, u, map[string]*big.Int{"age": ageVal})
	require.NoError(t, err)
	cred := ProcessCredentialSignature(sig, vPrime)

	group := GroupInput{
		PK:        pk,
		Signature: cred,
		Attrs: map[string]AttrSpec{
			LinkSecretName: {Value: ms},
			"age":          {Value: ageVal},
		},
		Predicates: []PredicateSpec{{AttrName: "age", PType: types.PredGE, PValue: 18}},
	}

	proofNonce, _ := randomBigInt(80)
	subProofs, agg, err := BuildDisclosureProof([]GroupInput{group}, proofNonce)
	require.NoError(t, err)

	verifyGroup := VerifyGroupInput{
		PK:            pk,
		AllAttrNames:  []string{"age"},
		RevealedAttrs: map[string]*big.Int{},
		Predicates:    []PredicateSpec{{AttrName: "age", PType: types.PredGE, PValue: 18}},
	}
	ok, err := VerifyDisclosureProof([]VerifyGroupInput{verifyGroup}, subProofs, agg, proofNonce)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPredicateBuildRejectsUnsatisfiable(t *testing.T) {
	params := smallParams()
	pk, _, _, err := GenerateIssuerKeyPair([]string{"age"}, params)
	require.NoError(t, err)

	_, err = newPredicateBuildState(pk, PredicateSpec{AttrName: "age", PType: types.PredGE, PValue: 50}, big.NewInt(18))
	require.ErrorIs(t, err, ErrPredicateUnsatisfiable)
}

func TestNonceRoundTrip(t *testing.T) {
	n, err := GenerateNonce()
	require.NoError(t, err)
	parsed, err := ParseNonce(n)
	require.NoError(t, err)
	require.Equal(t, n, parsed.String())

	_, err = ParseNonce("not-a-number")
	require.Error(t, err)
}
