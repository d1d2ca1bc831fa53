// Package clcrypto implements the CL-signature / zero-knowledge crypto
// primitives underlying the credential protocol. It is grounded on
// github.com/privacybydesign/gabi's RSA-modulus Camenisch-Lysyanskaya
// signature construction (see
// _examples/synaptic-cleft-gabi/clsignature.go) and on the key-correctness
// / blinded-link-secret proof shapes used by Hyperledger Indy's anoncreds
// implementation (see original_source/libindy/src/api/anoncreds.rs).
//
// Every secret quantity that a zero-knowledge proof must hide (e, v, the
// link secret, unrevealed attribute values, predicate deltas) is
// represented as a plain *big.Int and randomized with Lstatzk bits of
// statistical slack rather than reduced modulo a group order — this is the
// standard technique for proofs of knowledge in groups of hidden order
// (the multiplicative group mod N), exactly as gabi and the original
// Camenisch-Lysyanskaya papers do it.
package clcrypto

// SystemParams are the CL-signature bit-length parameters, named after
// gabi's gabikeys.SystemParameters.
type SystemParams struct {
	// KeySizeBits is the bit length of the modulus N.
	KeySizeBits uint
	// Le/LePrime bound the certificate exponent e's range:
	// e in [2^(Le-1), 2^(Le-1)+2^(LePrime-1)].
	Le, LePrime uint
	// Lv bounds the V exponent's bit length.
	Lv uint
	// Lm bounds an attribute's encoded bit length.
	Lm uint
	// LRA bounds the randomization exponent used by Randomize.
	LRA uint
	// Lstatzk is the statistical zero-knowledge security parameter: the
	// extra slack added to every "tilde" randomizer so its distribution
	// statistically hides the secret it masks.
	Lstatzk uint
}

// DefaultParams mirrors gabi's defaults, scaled down to a demo-sized
// 1024-bit modulus instead of gabi's 2048+ bit default.
func DefaultParams() SystemParams {
	return SystemParams{
		KeySizeBits: 1024,
		Le:          597,
		LePrime:     120,
		Lv:          2724,
		Lm:          592,
		LRA:         2000,
		Lstatzk:     80,
	}
}

// LinkSecretName is the reserved attribute-map key used for the prover's
// link secret (a.k.a. master secret) throughout this package, so it can
// share the RepresentToPublicKey machinery with ordinary attributes.
const LinkSecretName = "master_secret"
