package clcrypto

import (
	"fmt"
	"math/big"
	"sort"

	"golang.org/x/crypto/sha3"

	"anoncreds/internal/types"
)

// tildeBitsFor returns the bit length used for a "tilde" randomizer masking
// a secret of the given bit length: the secret's length plus the combined
// statistical and challenge slack, so that tilde+c*secret is
// indistinguishable from random (see package doc).
func tildeBitsFor(secretBits, params uint) uint {
	return secretBits + params + 256 /* sha3-256 challenge bit length */
}

// AttrSpec is one attribute's encoded value and whether it is revealed in
// the proof being built.
type AttrSpec struct {
	Value    *big.Int
	Revealed bool
}

// PredicateSpec is one predicate constraint over an attribute of a group.
type PredicateSpec struct {
	AttrName string
	PType    types.PredType
	PValue   int64
}

// GroupInput is everything needed to build one credential's sub-proof. Attrs
// must include every attribute of the credential (plus LinkSecretName for
// the link secret), each tagged revealed or hidden.
type GroupInput struct {
	PK         *PublicKey
	Signature  *CLSignature // fully unblinded
	Attrs      map[string]AttrSpec
	Predicates []PredicateSpec
}

// groupBuildState carries the per-group randomizers between the commit and
// response phases of building the aggregated proof.
type groupBuildState struct {
	pk          *PublicKey
	aPrime      *big.Int
	randomizedV *big.Int
	e           *big.Int
	eTilde      *big.Int
	vTilde      *big.Int
	hiddenTilde map[string]*big.Int // includes LinkSecretName
	hidden      map[string]*big.Int // encoded values
	revealed    map[string]*big.Int
	predicates  []predicateBuildState
}

// BuildDisclosureProof builds one sub-proof per group and aggregates them
// under a single Fiat-Shamir challenge, so a verifier can check every
// credential's disclosure together as one non-interactive proof.
func BuildDisclosureProof(groups []GroupInput, nonce *big.Int) ([]types.SubProof, types.AggregatedProof, error) {
	states := make([]*groupBuildState, len(groups))
	cList := make([]string, 0, len(groups)*2)

	for gi, g := range groups {
		aPrime, r, err := g.Signature.Randomize(g.PK)
		if err != nil {
			return nil, types.AggregatedProof{}, err
		}

		eTilde, err := randomBigInt(tildeBitsFor(g.PK.Params.Le, g.PK.Params.Lstatzk))
		if err != nil {
			return nil, types.AggregatedProof{}, err
		}
		vTilde, err := randomBigInt(tildeBitsFor(g.PK.Params.Lv+g.PK.Params.LRA, g.PK.Params.Lstatzk))
		if err != nil {
			return nil, types.AggregatedProof{}, err
		}

		hidden := map[string]*big.Int{}
		revealed := map[string]*big.Int{}
		hiddenTilde := map[string]*big.Int{}
		for name, spec := range g.Attrs {
			if spec.Revealed {
				revealed[name] = spec.Value
				continue
			}
			hidden[name] = spec.Value
		}

		var preds []predicateBuildState
		for _, p := range g.Predicates {
			value, ok := hidden[p.AttrName]
			if !ok {
				return nil, types.AggregatedProof{}, fmt.Errorf("clcrypto: predicate over unknown/revealed attribute %q", p.AttrName)
			}
			pbs, err := newPredicateBuildState(g.PK, p, value)
			if err != nil {
				return nil, types.AggregatedProof{}, err
			}
			hiddenTilde[p.AttrName] = pbs.attrTilde
			preds = append(preds, *pbs)
		}
		for name := range hidden {
			if _, ok := hiddenTilde[name]; ok {
				continue
			}
			tilde, err := randomBigInt(tildeBitsFor(g.PK.Params.Lm, g.PK.Params.Lstatzk))
			if err != nil {
				return nil, types.AggregatedProof{}, err
			}
			hiddenTilde[name] = tilde
		}

		t := new(big.Int).Exp(aPrime.A, eTilde, g.PK.N)
		t.Mul(t, new(big.Int).Exp(g.PK.S, vTilde, g.PK.N)).Mod(t, g.PK.N)
		for name, tilde := range hiddenTilde {
			base := g.PK.R[name]
			t.Mul(t, new(big.Int).Exp(base, tilde, g.PK.N)).Mod(t, g.PK.N)
		}
		cList = append(cList, t.Text(16))
		for i := range preds {
			cList = append(cList, preds[i].bitCommitTexts()...)
		}

		states[gi] = &groupBuildState{
			pk: g.PK, aPrime: aPrime.A, randomizedV: aPrime.V, e: aPrime.E,
			eTilde: eTilde, vTilde: vTilde,
			hiddenTilde: hiddenTilde, hidden: hidden, revealed: revealed,
			predicates: preds,
		}
		_ = r
	}

	c := hashChallenge(nonce, cList)

	subProofs := make([]types.SubProof, len(states))
	for gi, st := range states {
		eHat := new(big.Int).Mul(c, st.e)
		eHat.Add(eHat, st.eTilde)
		vHat := new(big.Int).Mul(c, st.randomizedV)
		vHat.Add(vHat, st.vTilde)

		hiddenHats := make(map[string]string, len(st.hidden))
		for name, value := range st.hidden {
			hat := new(big.Int).Mul(c, value)
			hat.Add(hat, st.hiddenTilde[name])
			hiddenHats[name] = hat.Text(16)
		}

		revealedAttrs := make(map[string]types.AttrValue, len(st.revealed))
		for name, value := range st.revealed {
			revealedAttrs[name] = types.AttrValue{Raw: "", Encoded: value.String()}
		}

		var predProofs []types.PredicateProof
		for _, p := range st.predicates {
			predProofs = append(predProofs, p.response(c))
		}

		msHat := hiddenHats[LinkSecretName]
		delete(hiddenHats, LinkSecretName)

		subProofs[gi] = types.SubProof{
			PrimaryProof: types.PrimaryProof{
				APrime:         st.aPrime.Text(16),
				EHat:           eHat.Text(16),
				VHat:           vHat.Text(16),
				MSHat:          msHat,
				HiddenAttrHats: hiddenHats,
				RevealedAttrs:  revealedAttrs,
				Predicates:     predProofs,
			},
		}
	}

	return subProofs, types.AggregatedProof{CHash: c.Text(16), CList: cList}, nil
}

// VerifyGroupInput is the public data the verifier needs to check one
// credential's sub-proof.
type VerifyGroupInput struct {
	PK            *PublicKey
	AllAttrNames  []string // schema attribute names, excluding the link secret
	RevealedAttrs map[string]*big.Int
	Predicates    []PredicateSpec
}

// VerifyDisclosureProof checks an aggregated proof against the declared
// public keys and revealed/predicate data, re-deriving the Fiat-Shamir
// challenge and rejecting on any mismatch.
func VerifyDisclosureProof(groups []VerifyGroupInput, subProofs []types.SubProof, agg types.AggregatedProof, nonce *big.Int) (bool, error) {
	if len(groups) != len(subProofs) {
		return false, nil
	}

	cList := make([]string, 0, len(groups)*2)
	for gi, g := range groups {
		sp := subProofs[gi].PrimaryProof

		aPrime, ok := new(big.Int).SetString(sp.APrime, 16)
		if !ok {
			return false, nil
		}
		eHat, ok := new(big.Int).SetString(sp.EHat, 16)
		if !ok {
			return false, nil
		}
		vHat, ok := new(big.Int).SetString(sp.VHat, 16)
		if !ok {
			return false, nil
		}
		msHat, ok := new(big.Int).SetString(sp.MSHat, 16)
		if !ok {
			return false, nil
		}
		c, ok := new(big.Int).SetString(agg.CHash, 16)
		if !ok {
			return false, nil
		}

		hiddenHat := make(map[string]*big.Int, len(sp.HiddenAttrHats)+1)
		hiddenHat[LinkSecretName] = msHat
		for name, hex := range sp.HiddenAttrHats {
			v, ok := new(big.Int).SetString(hex, 16)
			if !ok {
				return false, nil
			}
			hiddenHat[name] = v
		}

		// Every declared attribute name must be accounted for exactly
		// once, as either revealed (value supplied by caller) or hidden
		// (hat present in the proof).
		for _, name := range g.AllAttrNames {
			_, revealed := g.RevealedAttrs[name]
			_, hidden := hiddenHat[name]
			if revealed == hidden {
				return false, nil
			}
		}

		zInvC, err := modPowSigned(g.PK.Z, new(big.Int).Neg(c), g.PK.N)
		if err != nil {
			return false, err
		}
		t := new(big.Int).Exp(aPrime, eHat, g.PK.N)
		t.Mul(t, new(big.Int).Exp(g.PK.S, vHat, g.PK.N)).Mod(t, g.PK.N)
		t.Mul(t, new(big.Int).Exp(g.PK.R[LinkSecretName], msHat, g.PK.N)).Mod(t, g.PK.N)
		for name, hat := range hiddenHat {
			if name == LinkSecretName {
				continue
			}
			base, ok := g.PK.R[name]
			if !ok {
				return false, nil
			}
			t.Mul(t, new(big.Int).Exp(base, hat, g.PK.N)).Mod(t, g.PK.N)
		}
		for name, value := range g.RevealedAttrs {
			base, ok := g.PK.R[name]
			if !ok {
				return false, nil
			}
			rInvC, err := modPowSigned(base, new(big.Int).Neg(new(big.Int).Mul(c, value)), g.PK.N)
			if err != nil {
				return false, err
			}
			t.Mul(t, rInvC).Mod(t, g.PK.N)
		}
		t.Mul(t, zInvC).Mod(t, g.PK.N)

		cList = append(cList, t.Text(16))

		for _, p := range g.Predicates {
			hat, ok := hiddenHat[p.AttrName]
			if !ok {
				return false, nil
			}
			pp := findPredicateProof(sp.Predicates, p)
			if pp == nil {
				return false, nil
			}
			ok2, texts, err := verifyPredicateProof(g.PK, p, hat, *pp, c)
			if err != nil {
				return false, err
			}
			if !ok2 {
				return false, nil
			}
			cList = append(cList, texts...)
		}
	}

	c, ok := new(big.Int).SetString(agg.CHash, 16)
	if !ok {
		return false, nil
	}
	recomputed := hashChallenge(nonce, cList)
	return recomputed.Cmp(c) == 0, nil
}

func findPredicateProof(proofs []types.PredicateProof, spec PredicateSpec) *types.PredicateProof {
	for i := range proofs {
		if proofs[i].AttrName == spec.AttrName && proofs[i].PType == spec.PType && proofs[i].PValue == spec.PValue {
			return &proofs[i]
		}
	}
	return nil
}

func hashChallenge(nonce *big.Int, cList []string) *big.Int {
	sorted := append([]string{}, cList...)
	sort.Strings(sorted)
	h := sha3.New256()
	fmt.Fprintf(h, "%x", nonce)
	for _, s := range sorted {
		fmt.Fprintf(h, "|%s", s)
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}
