package clcrypto

import "math/big"

// GenerateNonce returns an 80-bit uniformly random unsigned integer encoded
// as decimal ASCII, suitable for a one-time Fiat-Shamir challenge seed.
func GenerateNonce() (string, error) {
	n, err := randomBigInt(80)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}

// ParseNonce parses a decimal nonce string back into a *big.Int, used when
// folding a nonce into a Fiat-Shamir hash.
func ParseNonce(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errInvalidNonce
	}
	return n, nil
}

var errInvalidNonce = &invalidNonceError{}

type invalidNonceError struct{}

func (*invalidNonceError) Error() string { return "clcrypto: invalid nonce" }
