package clcrypto

import (
	"crypto/rand"
	"math/big"
)

// randomBigInt returns a cryptographically random non-negative integer with
// exactly `bits` bits of entropy (the top bit is not forced set), mirroring
// gabi's internal/common.RandomBigInt.
func randomBigInt(bits uint) (*big.Int, error) {
	if bits == 0 {
		return big.NewInt(0), nil
	}
	limit := new(big.Int).Lsh(big.NewInt(1), bits)
	return rand.Int(rand.Reader, limit)
}

// randomPrimeBits returns a random prime with the given bit length.
func randomPrimeBits(bits uint) (*big.Int, error) {
	return rand.Prime(rand.Reader, int(bits))
}

// randomPrimeInRange returns a random prime p such that
// 2^(lowBits) <= p < 2^(lowBits) + 2^(highBits), mirroring gabi's
// common.RandomPrimeInRange used for the CL signature exponent e.
func randomPrimeInRange(lowBits, highBits uint) (*big.Int, error) {
	start := new(big.Int).Lsh(big.NewInt(1), lowBits)
	span := new(big.Int).Lsh(big.NewInt(1), highBits)
	for {
		offset, err := rand.Int(rand.Reader, span)
		if err != nil {
			return nil, err
		}
		candidate := new(big.Int).Add(start, offset)
		if candidate.Bit(0) == 0 {
			candidate.Add(candidate, big.NewInt(1))
		}
		if candidate.ProbablyPrime(20) {
			return candidate, nil
		}
	}
}

// safePrime returns a random safe prime p = 2q+1 of the given total bit
// length, and q itself (the Sophie-Germain factor).
func safePrime(bits uint) (p, q *big.Int, err error) {
	for {
		q, err = randomPrimeBits(bits - 1)
		if err != nil {
			return nil, nil, err
		}
		p = new(big.Int).Lsh(q, 1)
		p.Add(p, big.NewInt(1))
		if p.ProbablyPrime(20) {
			return p, q, nil
		}
	}
}

// modInverse returns a^-1 mod n, reporting false if a is not invertible.
func modInverse(a, n *big.Int) (*big.Int, bool) {
	inv := new(big.Int).ModInverse(a, n)
	if inv == nil {
		return nil, false
	}
	return inv, true
}

// modPowSigned computes base^exp mod n for a possibly-negative exp, by
// inverting base first when exp < 0 — needed throughout this package
// because Schnorr-style verification equations raise bases to the
// negative challenge.
func modPowSigned(base, exp, n *big.Int) (*big.Int, error) {
	if exp.Sign() >= 0 {
		return new(big.Int).Exp(base, exp, n), nil
	}
	inv, ok := modInverse(base, n)
	if !ok {
		return nil, errNotInvertible
	}
	positive := new(big.Int).Neg(exp)
	return new(big.Int).Exp(inv, positive, n), nil
}

var errNotInvertible = &notInvertibleError{}

type notInvertibleError struct{}

func (*notInvertibleError) Error() string { return "clcrypto: value not invertible mod N" }
