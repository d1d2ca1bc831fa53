// Package encoding translates a credential's raw attribute strings into the
// canonical integer form ("encoded") required by CL signing.
//
// This follows the legacy anoncreds encoding rule: a raw value that
// round-trips through a 32-bit signed decimal integer is encoded as itself;
// any other value is encoded as the big-endian unsigned integer
// interpretation of its SHA-256 digest. This keeps Encode a pure,
// deterministic function and lets integer attributes participate in range
// predicates directly.
package encoding

import (
	"crypto/sha256"
	"math/big"
	"strconv"
)

// Encode computes the canonical "encoded" decimal string for a raw
// attribute value.
func Encode(raw string) string {
	if n, ok := canonicalInt32(raw); ok {
		return strconv.FormatInt(int64(n), 10)
	}
	sum := sha256.Sum256([]byte(raw))
	return new(big.Int).SetBytes(sum[:]).String()
}

// canonicalInt32 reports whether raw is the canonical decimal
// representation of a value in the int32 range, i.e. strconv.FormatInt(n,
// 10) == raw — this rejects "007", "+3", leading/trailing whitespace, etc.
func canonicalInt32(raw string) (int32, bool) {
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	if strconv.FormatInt(n, 10) != raw {
		return 0, false
	}
	return int32(n), true
}

// IsInteger reports whether raw encodes to its own integer value, i.e.
// predicates can be evaluated against it directly.
func IsInteger(raw string) (int64, bool) {
	n, ok := canonicalInt32(raw)
	return int64(n), ok
}
