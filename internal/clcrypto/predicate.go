package clcrypto

import (
	"errors"
	"math/big"

	"anoncreds/internal/types"
)

// predicateBitWidth bounds the magnitude of delta = attrValue - pValue (or
// the reverse) a range proof can cover; large enough for age/date/integer
// attributes, small enough to keep the bit-proof count reasonable.
const predicateBitWidth = 32

const predicateTildeBits = 672 // Lm + Lstatzk for the default parameter set

// ErrPredicateUnsatisfiable is returned when the prover's own attribute
// value does not satisfy the requested comparison; callers should surface
// this the same way a rejected proof request is surfaced.
var ErrPredicateUnsatisfiable = errors.New("clcrypto: predicate not satisfied by attribute value")

// predicateBuildState carries one predicate's bit-decomposition range proof
// through the commit/challenge/response phases of BuildDisclosureProof. The
// scheme proves, for each bit of delta, a disjunctive Schnorr proof that the
// bit is 0 or 1 (Cramer-Damgard-Schoenmakers), then links the bits back to
// the attribute's own disclosure response (aHat) via a Schnorr proof of
// equality of the R_i-exponent between the bit-commitment product and the
// attribute's response — so a verifier never learns delta, only that it was
// decomposed into predicateBitWidth bits consistent with the disclosed aHat.
type predicateBuildState struct {
	spec      PredicateSpec
	base      *big.Int // pk.R[spec.AttrName]
	pk        *PublicKey
	attrTilde *big.Int
	negate    bool // true for <, <= (delta = pValue - attr, not attr - pValue)
	constant  int64

	bits     []int
	blind    []*big.Int // s_j
	commit   []*big.Int // C_j = base^b_j * S^s_j
	sumTotal *big.Int   // sum 2^j * s_j

	t0, t1   []*big.Int
	realZero []bool // true if branch 0 is the real (non-simulated) branch
	realR    []*big.Int
	fakeC    []*big.Int
	fakeZ    []*big.Int

	sumTilde *big.Int
	tEq      *big.Int
}

func newPredicateBuildState(pk *PublicKey, spec PredicateSpec, attrValue *big.Int) (*predicateBuildState, error) {
	base, ok := pk.R[spec.AttrName]
	if !ok {
		return nil, errors.New("clcrypto: predicate over attribute with no public base")
	}

	var delta *big.Int
	var negate bool
	var constant int64
	switch spec.PType {
	case types.PredGE:
		delta = new(big.Int).Sub(attrValue, big.NewInt(spec.PValue))
		constant = spec.PValue
	case types.PredGT:
		delta = new(big.Int).Sub(attrValue, big.NewInt(spec.PValue+1))
		constant = spec.PValue + 1
	case types.PredLE:
		delta = new(big.Int).Sub(big.NewInt(spec.PValue), attrValue)
		negate = true
		constant = spec.PValue
	case types.PredLT:
		delta = new(big.Int).Sub(big.NewInt(spec.PValue-1), attrValue)
		negate = true
		constant = spec.PValue - 1
	default:
		return nil, errors.New("clcrypto: unknown predicate type")
	}

	if delta.Sign() < 0 || delta.BitLen() > predicateBitWidth {
		return nil, ErrPredicateUnsatisfiable
	}

	attrTilde, err := randomBigInt(predicateTildeBits)
	if err != nil {
		return nil, err
	}
	sumTilde, err := randomBigInt(predicateTildeBits)
	if err != nil {
		return nil, err
	}

	st := &predicateBuildState{
		spec: spec, base: base, pk: pk, attrTilde: attrTilde,
		negate: negate, constant: constant, sumTilde: sumTilde,
		sumTotal: big.NewInt(0),
	}

	for j := 0; j < predicateBitWidth; j++ {
		b := delta.Bit(j)
		st.bits = append(st.bits, int(b))

		s, err := randomBigInt(predicateTildeBits)
		if err != nil {
			return nil, err
		}
		st.blind = append(st.blind, s)

		weight := new(big.Int).Lsh(big.NewInt(1), uint(j))
		st.sumTotal.Add(st.sumTotal, new(big.Int).Mul(weight, s))

		c := new(big.Int).Exp(pk.S, s, pk.N)
		if b == 1 {
			c.Mul(c, base).Mod(c, pk.N)
		}
		st.commit = append(st.commit, c)

		t0, t1, realZero, realR, fakeC, fakeZ, err := commitBitOR(pk, base, c, int(b), s)
		if err != nil {
			return nil, err
		}
		st.t0 = append(st.t0, t0)
		st.t1 = append(st.t1, t1)
		st.realZero = append(st.realZero, realZero)
		st.realR = append(st.realR, realR)
		st.fakeC = append(st.fakeC, fakeC)
		st.fakeZ = append(st.fakeZ, fakeZ)
	}

	tEqSign := st.sumTilde
	if negate {
		tEqSign = new(big.Int).Neg(st.sumTilde)
	}
	tEq, err := modPowSigned(pk.S, tEqSign, pk.N)
	if err != nil {
		return nil, err
	}
	tEq.Mul(tEq, new(big.Int).Exp(base, attrTilde, pk.N)).Mod(tEq, pk.N)
	st.tEq = tEq

	return st, nil
}

// commitBitOR builds the commit phase of a CDS disjunctive Schnorr proof
// that commit = base^b * S^blind opens with b in {0,1}; exactly one branch
// is simulated.
func commitBitOR(pk *PublicKey, base, commit *big.Int, b int, blind *big.Int) (t0, t1 *big.Int, realZero bool, realR, fakeC, fakeZ *big.Int, err error) {
	fakeC, err = randomBigInt(256)
	if err != nil {
		return
	}
	fakeZ, err = randomBigInt(predicateTildeBits)
	if err != nil {
		return
	}

	baseInv, ok := modInverse(base, pk.N)
	if !ok {
		err = errors.New("clcrypto: attribute base not invertible mod N")
		return
	}
	commitOverBase := new(big.Int).Mul(commit, baseInv)
	commitOverBase.Mod(commitOverBase, pk.N)

	if b == 0 {
		realZero = true
		realR, err = randomBigInt(predicateTildeBits)
		if err != nil {
			return
		}
		t0 = new(big.Int).Exp(pk.S, realR, pk.N)

		inv, e := modPowSigned(commitOverBase, new(big.Int).Neg(fakeC), pk.N)
		if e != nil {
			err = e
			return
		}
		t1 = new(big.Int).Exp(pk.S, fakeZ, pk.N)
		t1.Mul(t1, inv).Mod(t1, pk.N)
		return
	}

	realZero = false
	realR, err = randomBigInt(predicateTildeBits)
	if err != nil {
		return
	}
	t1 = new(big.Int).Exp(pk.S, realR, pk.N)

	inv, e := modPowSigned(commit, new(big.Int).Neg(fakeC), pk.N)
	if e != nil {
		err = e
		return
	}
	t0 = new(big.Int).Exp(pk.S, fakeZ, pk.N)
	t0.Mul(t0, inv).Mod(t0, pk.N)
	return
}

// bitCommitTexts returns every value this predicate contributes to the
// shared Fiat-Shamir hash, in a fixed order mirrored by verifyPredicateProof.
func (st *predicateBuildState) bitCommitTexts() []string {
	out := make([]string, 0, len(st.bits)*3+1)
	for j := range st.bits {
		out = append(out, st.commit[j].Text(16), st.t0[j].Text(16), st.t1[j].Text(16))
	}
	out = append(out, st.tEq.Text(16))
	return out
}

// response finishes the proof once the global challenge c is known.
func (st *predicateBuildState) response(c *big.Int) types.PredicateProof {
	n := len(st.bits)
	bitCommits := make([]string, n)
	hats0 := make([]string, n)
	hats1 := make([]string, n)
	challenges0 := make([]string, n)

	for j := 0; j < n; j++ {
		bitCommits[j] = st.commit[j].Text(16)

		var c0, c1 *big.Int
		if st.realZero[j] {
			c1 = st.fakeC[j]
			c0 = new(big.Int).Sub(c, c1)
			z0 := new(big.Int).Mul(c0, st.blind[j])
			z0.Add(z0, st.realR[j])
			hats0[j] = z0.Text(16)
			hats1[j] = st.fakeZ[j].Text(16)
		} else {
			c0 = st.fakeC[j]
			c1 = new(big.Int).Sub(c, c0)
			z1 := new(big.Int).Mul(c1, st.blind[j])
			z1.Add(z1, st.realR[j])
			hats1[j] = z1.Text(16)
			hats0[j] = st.fakeZ[j].Text(16)
		}
		challenges0[j] = c0.Text(16)
	}

	sumHat := new(big.Int).Mul(c, st.sumTotal)
	sumHat.Add(sumHat, st.sumTilde)

	return types.PredicateProof{
		AttrName:       st.spec.AttrName,
		PType:          st.spec.PType,
		PValue:         st.spec.PValue,
		BitCommits:     bitCommits,
		BitHats0:       hats0,
		BitHats1:       hats1,
		BitChallenges0: challenges0,
		SumHat:         sumHat.Text(16),
		TEq:            st.tEq.Text(16),
	}
}

// verifyPredicateProof checks one predicate's bit-validity proofs and its
// linkage to attrHat (the already-verified response for the underlying
// attribute), returning the same text list the prover folded into the
// aggregated hash so the caller can append it before re-hashing.
func verifyPredicateProof(pk *PublicKey, spec PredicateSpec, attrHat *big.Int, pp types.PredicateProof, c *big.Int) (bool, []string, error) {
	base, ok := pk.R[spec.AttrName]
	if !ok {
		return false, nil, nil
	}
	n := len(pp.BitCommits)
	if n != predicateBitWidth || len(pp.BitHats0) != n || len(pp.BitHats1) != n || len(pp.BitChallenges0) != n {
		return false, nil, nil
	}

	texts := make([]string, 0, n*3+1)
	commits := make([]*big.Int, n)
	csum := big.NewInt(1)

	baseInv, ok := modInverse(base, pk.N)
	if !ok {
		return false, nil, nil
	}

	for j := 0; j < n; j++ {
		commit, ok := new(big.Int).SetString(pp.BitCommits[j], 16)
		if !ok {
			return false, nil, nil
		}
		z0, ok := new(big.Int).SetString(pp.BitHats0[j], 16)
		if !ok {
			return false, nil, nil
		}
		z1, ok := new(big.Int).SetString(pp.BitHats1[j], 16)
		if !ok {
			return false, nil, nil
		}
		c0, ok := new(big.Int).SetString(pp.BitChallenges0[j], 16)
		if !ok {
			return false, nil, nil
		}
		c1 := new(big.Int).Sub(c, c0)

		commits[j] = commit
		weight := new(big.Int).Lsh(big.NewInt(1), uint(j))
		csum.Mul(csum, new(big.Int).Exp(commit, weight, pk.N))
		csum.Mod(csum, pk.N)

		commitOverBase := new(big.Int).Mul(commit, baseInv)
		commitOverBase.Mod(commitOverBase, pk.N)

		inv0, err := modPowSigned(commit, new(big.Int).Neg(c0), pk.N)
		if err != nil {
			return false, nil, err
		}
		t0 := new(big.Int).Exp(pk.S, z0, pk.N)
		t0.Mul(t0, inv0).Mod(t0, pk.N)

		inv1, err := modPowSigned(commitOverBase, new(big.Int).Neg(c1), pk.N)
		if err != nil {
			return false, nil, err
		}
		t1 := new(big.Int).Exp(pk.S, z1, pk.N)
		t1.Mul(t1, inv1).Mod(t1, pk.N)

		texts = append(texts, commit.Text(16), t0.Text(16), t1.Text(16))
	}

	tEq, ok := new(big.Int).SetString(pp.TEq, 16)
	if !ok {
		return false, nil, nil
	}
	sumHat, ok := new(big.Int).SetString(pp.SumHat, 16)
	if !ok {
		return false, nil, nil
	}

	negate := spec.PType == types.PredLE || spec.PType == types.PredLT
	constant := spec.PValue
	switch spec.PType {
	case types.PredGT:
		constant++
	case types.PredLT:
		constant--
	}

	rConst := new(big.Int).Exp(base, big.NewInt(constant), pk.N)
	var x *big.Int
	if !negate {
		x = new(big.Int).Mul(csum, rConst)
	} else {
		csumInv, ok := modInverse(csum, pk.N)
		if !ok {
			return false, nil, nil
		}
		x = new(big.Int).Mul(csumInv, rConst)
	}
	x.Mod(x, pk.N)

	xC := new(big.Int).Exp(x, c, pk.N)
	lhs := new(big.Int).Exp(base, attrHat, pk.N)

	sumExp := sumHat
	if negate {
		sumExp = new(big.Int).Neg(sumHat)
	}
	sPow, err := modPowSigned(pk.S, sumExp, pk.N)
	if err != nil {
		return false, nil, err
	}
	lhs.Mul(lhs, sPow).Mod(lhs, pk.N)

	rhs := new(big.Int).Mul(tEq, xC)
	rhs.Mod(rhs, pk.N)

	texts = append(texts, tEq.Text(16))

	return lhs.Cmp(rhs) == 0, texts, nil
}
