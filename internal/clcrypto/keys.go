package clcrypto

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"golang.org/x/crypto/sha3"
)

// PrivateKey is the issuer's CL signing key: an RSA modulus built from two
// safe primes, plus the secret discrete-log exponents behind each public
// base (see keyCorrectnessProof).
type PrivateKey struct {
	P, Q  *big.Int
	Order *big.Int // p' * q', the order of the group generated by S
	XZ    *big.Int
	XR    map[string]*big.Int
}

// PublicKey is the issuer's CL verification key.
type PublicKey struct {
	N      *big.Int          `json:"n"`
	S      *big.Int          `json:"s"`
	Z      *big.Int          `json:"z"`
	R      map[string]*big.Int `json:"r"`
	Params SystemParams      `json:"params"`
}

// KeyCorrectnessProof proves Z and every R_i were derived as S^x for a
// known-to-the-issuer exponent x, ruling out maliciously chosen bases.
// Field names match the serialized shape carried on CredentialOffer's
// key_correctness_proof.
type KeyCorrectnessProof struct {
	C     *big.Int            `json:"c"`
	XZCap *big.Int            `json:"xz_cap"`
	XRCap map[string]*big.Int `json:"xr_cap"`
}

// GenerateIssuerKeyPair builds a fresh CL key pair for a credential
// definition over attrNames (plus the reserved link-secret base), following
// gabi's modulus/base construction (_examples/synaptic-cleft-gabi/keys.go)
// and Indy's S^x key-correctness-proof scheme.
func GenerateIssuerKeyPair(attrNames []string, params SystemParams) (*PublicKey, *PrivateKey, *KeyCorrectnessProof, error) {
	p, pPrime, err := safePrime(params.KeySizeBits / 2)
	if err != nil {
		return nil, nil, nil, err
	}
	q, qPrime, err := safePrime(params.KeySizeBits / 2)
	if err != nil {
		return nil, nil, nil, err
	}
	n := new(big.Int).Mul(p, q)
	order := new(big.Int).Mul(pPrime, qPrime)

	s, err := randomQuadraticResidue(n)
	if err != nil {
		return nil, nil, nil, err
	}

	xz, err := randomBigInt(uint(order.BitLen()))
	if err != nil {
		return nil, nil, nil, err
	}
	z := new(big.Int).Exp(s, xz, n)

	names := append(append([]string{}, attrNames...), LinkSecretName)
	xr := make(map[string]*big.Int, len(names))
	r := make(map[string]*big.Int, len(names))
	for _, name := range names {
		x, err := randomBigInt(uint(order.BitLen()))
		if err != nil {
			return nil, nil, nil, err
		}
		xr[name] = x
		r[name] = new(big.Int).Exp(s, x, n)
	}

	pk := &PublicKey{N: n, S: s, Z: z, R: r, Params: params}
	sk := &PrivateKey{P: p, Q: q, Order: order, XZ: xz, XR: xr}

	proof, err := buildKeyCorrectnessProof(pk, sk, params)
	if err != nil {
		return nil, nil, nil, err
	}

	return pk, sk, proof, nil
}

// randomQuadraticResidue returns a random generator of the group of
// quadratic residues mod n, i.e. r^2 mod n for random r coprime to n.
func randomQuadraticResidue(n *big.Int) (*big.Int, error) {
	for {
		r, err := randomBigInt(uint(n.BitLen()))
		if err != nil {
			return nil, err
		}
		if r.Sign() == 0 || new(big.Int).GCD(nil, nil, r, n).Cmp(big.NewInt(1)) != 0 {
			continue
		}
		return new(big.Int).Exp(r, big.NewInt(2), n), nil
	}
}

// DecodePublicKey unmarshals a cred def's serialized CL public key, the
// shape CredDefValue.PublicKey carries over the wire.
func DecodePublicKey(raw json.RawMessage) (*PublicKey, error) {
	var pk PublicKey
	if err := json.Unmarshal(raw, &pk); err != nil {
		return nil, fmt.Errorf("clcrypto: decode public key: %w", err)
	}
	return &pk, nil
}

func sortedNames(m map[string]*big.Int) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func buildKeyCorrectnessProof(pk *PublicKey, sk *PrivateKey, params SystemParams) (*KeyCorrectnessProof, error) {
	tildeBits := uint(sk.Order.BitLen()) + params.Lstatzk

	zTilde, err := randomBigInt(tildeBits)
	if err != nil {
		return nil, err
	}
	tZ := new(big.Int).Exp(pk.S, zTilde, pk.N)

	names := sortedNames(pk.R)
	rTilde := make(map[string]*big.Int, len(names))
	tR := make(map[string]*big.Int, len(names))
	for _, name := range names {
		tilde, err := randomBigInt(tildeBits)
		if err != nil {
			return nil, err
		}
		rTilde[name] = tilde
		tR[name] = new(big.Int).Exp(pk.S, tilde, pk.N)
	}

	c := hashKeyCorrectness(pk, tZ, tR, names)

	xzCap := new(big.Int).Mul(c, sk.XZ)
	xzCap.Add(xzCap, zTilde)

	xrCap := make(map[string]*big.Int, len(names))
	for _, name := range names {
		cap := new(big.Int).Mul(c, sk.XR[name])
		cap.Add(cap, rTilde[name])
		xrCap[name] = cap
	}

	return &KeyCorrectnessProof{C: c, XZCap: xzCap, XRCap: xrCap}, nil
}

// VerifyKeyCorrectnessProof checks that pk's Z and R bases were honestly
// derived from secret exponents the issuer knows.
func VerifyKeyCorrectnessProof(pk *PublicKey, proof *KeyCorrectnessProof) (bool, error) {
	names := sortedNames(pk.R)

	zInvC, err := modPowSigned(pk.Z, new(big.Int).Neg(proof.C), pk.N)
	if err != nil {
		return false, err
	}
	tZ := new(big.Int).Exp(pk.S, proof.XZCap, pk.N)
	tZ.Mul(tZ, zInvC).Mod(tZ, pk.N)

	tR := make(map[string]*big.Int, len(names))
	for _, name := range names {
		cap, ok := proof.XRCap[name]
		if !ok {
			return false, nil
		}
		rInvC, err := modPowSigned(pk.R[name], new(big.Int).Neg(proof.C), pk.N)
		if err != nil {
			return false, err
		}
		t := new(big.Int).Exp(pk.S, cap, pk.N)
		t.Mul(t, rInvC).Mod(t, pk.N)
		tR[name] = t
	}

	c := hashKeyCorrectness(pk, tZ, tR, names)
	return c.Cmp(proof.C) == 0, nil
}

func hashKeyCorrectness(pk *PublicKey, tZ *big.Int, tR map[string]*big.Int, names []string) *big.Int {
	h := sha3.New256()
	fmt.Fprintf(h, "%x|%x|%x", pk.N, pk.S, pk.Z)
	for _, name := range names {
		fmt.Fprintf(h, "|%s=%x", name, pk.R[name])
	}
	fmt.Fprintf(h, "|tz=%x", tZ)
	for _, name := range names {
		fmt.Fprintf(h, "|tr:%s=%x", name, tR[name])
	}
	sum := h.Sum(nil)
	return new(big.Int).SetBytes(sum)
}
