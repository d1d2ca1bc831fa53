package clcrypto

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// CLSignature holds a Camenisch-Lysyanskaya signature, named and shaped
// exactly like _examples/synaptic-cleft-gabi/clsignature.go's CLSignature.
type CLSignature struct {
	A *big.Int `json:"a"`
	E *big.Int `json:"e"`
	V *big.Int `json:"v"`
}

// SignatureCorrectnessProof proves the issuer used its committed secret key
// consistently when producing a signature, via a Schnorr proof of knowledge
// of d = e^-1 mod order on the base Q = A^e (see package doc for the
// derivation); field names (se, c) match the serialized shape consumed
// elsewhere in this repository.
type SignatureCorrectnessProof struct {
	SE *big.Int `json:"se"`
	C  *big.Int `json:"c"`
}

// representToPublicKey computes Π R_i^{attrs[i]} mod N, restricted to the
// bases named in attrs — gabi's RepresentToPublicKey generalized to a named
// attribute map (which also holds the link-secret base under
// LinkSecretName).
func representToPublicKey(pk *PublicKey, attrs map[string]*big.Int) (*big.Int, error) {
	result := big.NewInt(1)
	for name, value := range attrs {
		base, ok := pk.R[name]
		if !ok {
			return nil, fmt.Errorf("clcrypto: no public base for attribute %q", name)
		}
		result.Mul(result, new(big.Int).Exp(base, value, pk.N))
		result.Mod(result, pk.N)
	}
	return result, nil
}

// SignMessageBlockAndCommitment signs a known-attribute block together with
// a prover-supplied blinded commitment U (the blinded link secret), exactly
// mirroring gabi's signMessageBlockAndCommitment.
func SignMessageBlockAndCommitment(sk *PrivateKey, pk *PublicKey, u *big.Int, attrs map[string]*big.Int) (*CLSignature, *big.Int, error) {
	r, err := representToPublicKey(pk, attrs)
	if err != nil {
		return nil, nil, err
	}

	vTilde, err := randomBigInt(pk.Params.Lv - 1)
	if err != nil {
		return nil, nil, err
	}
	twoLv := new(big.Int).Lsh(big.NewInt(1), pk.Params.Lv-1)
	v := new(big.Int).Add(twoLv, vTilde)

	numerator := new(big.Int).Exp(pk.S, v, pk.N)
	numerator.Mul(numerator, r).Mul(numerator, u).Mod(numerator, pk.N)

	invNumerator, ok := modInverse(numerator, pk.N)
	if !ok {
		return nil, nil, fmt.Errorf("clcrypto: failed to invert mod N")
	}
	q := new(big.Int).Mul(pk.Z, invNumerator)
	q.Mod(q, pk.N)

	e, err := randomPrimeInRange(pk.Params.Le-1, pk.Params.LePrime-1)
	if err != nil {
		return nil, nil, err
	}

	d, ok := modInverse(e, sk.Order)
	if !ok {
		return nil, nil, fmt.Errorf("clcrypto: failed to invert e mod order")
	}
	a := new(big.Int).Exp(q, d, pk.N)

	return &CLSignature{A: a, E: e, V: v}, q, nil
}

// BuildSignatureCorrectnessProof builds the Schnorr proof described on
// SignatureCorrectnessProof for a freshly issued signature.
func BuildSignatureCorrectnessProof(sk *PrivateKey, pk *PublicKey, sig *CLSignature, q, nonce *big.Int) (*SignatureCorrectnessProof, error) {
	d, ok := modInverse(sig.E, sk.Order)
	if !ok {
		return nil, fmt.Errorf("clcrypto: failed to invert e mod order")
	}

	r, err := rand.Int(rand.Reader, sk.Order)
	if err != nil {
		return nil, err
	}
	t := new(big.Int).Exp(q, r, pk.N)

	c := hashSigCorrectness(q, sig.A, t, nonce)

	se := new(big.Int).Mul(c, d)
	se.Add(se, r)
	se.Mod(se, sk.Order)

	return &SignatureCorrectnessProof{SE: se, C: c}, nil
}

// VerifySignatureCorrectnessProof checks the proof against the public
// signature fields alone (the prover doesn't need the issuer's Q).
func VerifySignatureCorrectnessProof(pk *PublicKey, sig *CLSignature, proof *SignatureCorrectnessProof, nonce *big.Int) (bool, error) {
	qPrime := new(big.Int).Exp(sig.A, sig.E, pk.N)

	aInvC, err := modPowSigned(sig.A, new(big.Int).Neg(proof.C), pk.N)
	if err != nil {
		return false, err
	}
	tPrime := new(big.Int).Exp(qPrime, proof.SE, pk.N)
	tPrime.Mul(tPrime, aInvC).Mod(tPrime, pk.N)

	c := hashSigCorrectness(qPrime, sig.A, tPrime, nonce)
	return c.Cmp(proof.C) == 0, nil
}

func hashSigCorrectness(q, a, t, nonce *big.Int) *big.Int {
	h := sha3.New256()
	fmt.Fprintf(h, "%x|%x|%x|%x", q, a, t, nonce)
	return new(big.Int).SetBytes(h.Sum(nil))
}

// ProcessCredentialSignature folds the prover's secret blinding factor
// vPrime into an issuer-produced signature's V component, completing the
// unblinding step performed when a credential is stored.
func ProcessCredentialSignature(sig *CLSignature, vPrime *big.Int) *CLSignature {
	return &CLSignature{
		A: new(big.Int).Set(sig.A),
		E: new(big.Int).Set(sig.E),
		V: new(big.Int).Add(sig.V, vPrime),
	}
}

// Verify checks a (fully unblinded) signature against the public key and
// the complete attribute map (including the link secret under
// LinkSecretName), mirroring gabi's CLSignature.Verify.
func (s *CLSignature) Verify(pk *PublicKey, attrs map[string]*big.Int) bool {
	start := new(big.Int).Lsh(big.NewInt(1), pk.Params.Le-1)
	end := new(big.Int).Lsh(big.NewInt(1), pk.Params.LePrime-1)
	end.Add(end, start)
	if s.E.Cmp(start) < 0 || s.E.Cmp(end) > 0 {
		return false
	}
	if !s.E.ProbablyPrime(20) {
		return false
	}

	ae := new(big.Int).Exp(s.A, s.E, pk.N)
	r, err := representToPublicKey(pk, attrs)
	if err != nil {
		return false
	}
	sv := new(big.Int).Exp(pk.S, s.V, pk.N)

	q := new(big.Int).Mul(ae, r)
	q.Mul(q, sv).Mod(q, pk.N)

	return pk.Z.Cmp(q) == 0
}

// Randomize returns a randomized copy of the signature (A', e, v') such
// that it still verifies, and the randomization exponent r used (returned
// for callers; BuildDisclosureProof does not use it), mirroring gabi's
// CLSignature.Randomize.
func (s *CLSignature) Randomize(pk *PublicKey) (randomized *CLSignature, r *big.Int, err error) {
	r, err = randomBigInt(pk.Params.LRA)
	if err != nil {
		return nil, nil, err
	}
	aPrime := new(big.Int).Mul(s.A, new(big.Int).Exp(pk.S, r, pk.N))
	aPrime.Mod(aPrime, pk.N)

	t := new(big.Int).Mul(s.E, r)
	vPrime := new(big.Int).Sub(s.V, t)

	return &CLSignature{A: aPrime, E: new(big.Int).Set(s.E), V: vPrime}, r, nil
}
