package clcrypto

import (
	"fmt"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// BlindedMSCorrectnessProof proves the prover formed U = R_ms^ms * S^vPrime
// honestly, i.e. knows the opening (ms, vPrime), without revealing either.
type BlindedMSCorrectnessProof struct {
	C        *big.Int `json:"c"`
	MSCap    *big.Int `json:"ms_cap"`
	VDashCap *big.Int `json:"v_dash_cap"`
}

// GenerateLinkSecret returns a fresh random link secret (master secret)
// scalar, large enough to be statistically hidden by every proof that
// discloses it.
func GenerateLinkSecret(params SystemParams) (*big.Int, error) {
	return randomBigInt(params.Lm)
}

// BlindLinkSecret commits to ms under pk's link-secret base, returning the
// blinded commitment, a correctness proof of its opening, and the blinding
// factor vPrime the prover must retain (in CredentialRequestMetadata) to
// unblind the eventual signature.
func BlindLinkSecret(pk *PublicKey, ms *big.Int, nonce *big.Int) (blindedMS *big.Int, proof *BlindedMSCorrectnessProof, vPrime *big.Int, err error) {
	vPrime, err = randomBigInt(pk.Params.LRA)
	if err != nil {
		return nil, nil, nil, err
	}

	rms := pk.R[LinkSecretName]
	u := new(big.Int).Exp(rms, ms, pk.N)
	sv := new(big.Int).Exp(pk.S, vPrime, pk.N)
	u.Mul(u, sv).Mod(u, pk.N)

	tildeMSBits := pk.Params.Lm + pk.Params.Lstatzk
	tildeVBits := pk.Params.LRA + pk.Params.Lstatzk

	msTilde, err := randomBigInt(tildeMSBits)
	if err != nil {
		return nil, nil, nil, err
	}
	vTilde, err := randomBigInt(tildeVBits)
	if err != nil {
		return nil, nil, nil, err
	}

	t := new(big.Int).Exp(rms, msTilde, pk.N)
	tv := new(big.Int).Exp(pk.S, vTilde, pk.N)
	t.Mul(t, tv).Mod(t, pk.N)

	c := hashBlindedMS(u, t, nonce)

	msCap := new(big.Int).Mul(c, ms)
	msCap.Add(msCap, msTilde)

	vCap := new(big.Int).Mul(c, vPrime)
	vCap.Add(vCap, vTilde)

	proof = &BlindedMSCorrectnessProof{C: c, MSCap: msCap, VDashCap: vCap}
	return u, proof, vPrime, nil
}

// VerifyBlindedMSCorrectnessProof checks that blindedMS's opening is known
// to the prover, without learning ms or vPrime.
func VerifyBlindedMSCorrectnessProof(pk *PublicKey, blindedMS *big.Int, proof *BlindedMSCorrectnessProof, nonce *big.Int) (bool, error) {
	rms := pk.R[LinkSecretName]

	uInvC, err := modPowSigned(blindedMS, new(big.Int).Neg(proof.C), pk.N)
	if err != nil {
		return false, err
	}

	t := new(big.Int).Exp(rms, proof.MSCap, pk.N)
	tv := new(big.Int).Exp(pk.S, proof.VDashCap, pk.N)
	t.Mul(t, tv).Mul(t, uInvC).Mod(t, pk.N)

	c := hashBlindedMS(blindedMS, t, nonce)
	return c.Cmp(proof.C) == 0, nil
}

func hashBlindedMS(u, t, nonce *big.Int) *big.Int {
	h := sha3.New256()
	fmt.Fprintf(h, "%x|%x|%x", u, t, nonce)
	return new(big.Int).SetBytes(h.Sum(nil))
}
