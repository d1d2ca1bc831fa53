// Package verifier implements the verifier side of proof presentation: given
// a proof request, the prover's assembled proof, and the public artifacts
// the proof claims to be built against (schemas, cred defs, rev-reg defs and
// their point-in-time accumulator states), it checks structural
// correspondence between the request and the proof's requested_proof, then
// hands the cryptographic sub-proofs to internal/clcrypto for soundness
// verification. Every check here mirrors, in reverse, a step
// internal/prover's CreateProof performs when it builds the same proof.
package verifier

import (
	"context"
	"math/big"
	"time"

	"anoncreds/internal/clcrypto"
	"anoncreds/internal/encoding"
	"anoncreds/internal/ids"
	"anoncreds/internal/normalize"
	"anoncreds/internal/revocation"
	"anoncreds/internal/types"
	"anoncreds/internal/wql"
	"anoncreds/pkg/helpers"
	"anoncreds/pkg/logger"
)

// RevRegs indexes the accumulator state a revocation registry published at
// each timestamp a proof might have been built against — the verifier's
// counterpart to prover.RevocationStates, minus the witness half (the
// witness rides along inside the sub-proof itself).
type RevRegs map[string]map[int64]types.RevRegState

// Verifier checks presented proofs against declared public artifacts. It
// holds no store dependency: every artifact it needs (schemas, cred defs,
// rev-reg defs, rev-regs) is passed explicitly to VerifyProof, matching the
// command surface's verifier_verify_proof signature.
type Verifier struct {
	revocation *revocation.Manager
	log        *logger.Log
}

// New builds a Verifier whose non-revocation membership checks read prime
// assignments through tails. log may be nil, in which case a throwaway
// logger is created (mirroring internal/prover.New).
func New(tails revocation.TailsAccessor, log *logger.Log) *Verifier {
	if log == nil {
		log = logger.NewSimple("verifier")
	} else {
		log = log.New("verifier")
	}
	return &Verifier{revocation: revocation.NewManager(tails, 30*time.Minute), log: log}
}

// VerifyProof runs the full check sequence against proof. A structural
// mismatch (an identifier, schema, or cred def the proof's own referents
// can't be resolved against) is reported as an error; every other failure —
// a violated restriction, a tampered revealed value, a predicate wired to
// the wrong sub-proof, an out-of-window non-revocation timestamp, or the
// final cryptographic check itself — is reported as (false, nil).
func (v *Verifier) VerifyProof(
	ctx context.Context,
	req types.ProofRequest,
	proof types.Proof,
	schemas map[string]types.Schema,
	credDefs map[string]types.CredDef,
	revRegDefs map[string]types.RevRegDef,
	revRegs RevRegs,
) (bool, error) {
	attrIdx, predIdx, err := checkCoverage(req, proof.RequestedProof)
	if err != nil {
		return false, err
	}

	if err := checkIdentifierBinding(proof.Identifiers, schemas, credDefs, revRegDefs, revRegs); err != nil {
		return false, err
	}

	if ok, err := checkRestrictions(req, proof, attrIdx, predIdx, schemas); err != nil || !ok {
		return ok, err
	}

	if ok := checkRevealedIntegrity(proof.RequestedProof); !ok {
		return false, nil
	}

	if ok := checkPredicateWiring(req, proof, predIdx); !ok {
		return false, nil
	}

	if ok := checkNonRevocationScope(req, proof, attrIdx, predIdx); !ok {
		return false, nil
	}

	if ok, err := v.checkNonRevocationMembership(ctx, proof, revRegDefs, revRegs); err != nil || !ok {
		return ok, err
	}

	valid, err := checkCryptographic(req, proof, schemas, credDefs)
	if err != nil {
		return false, err
	}
	v.log.Debug("proof verified", "proofRequestNonce", req.Nonce, "valid", valid)
	return valid, nil
}

// checkCoverage verifies every non-self-attested referent is addressed
// exactly once and returns the sub-proof index each referent resolves to.
func checkCoverage(req types.ProofRequest, rp types.RequestedProof) (attrIdx, predIdx map[string]int, err error) {
	attrIdx = make(map[string]int, len(req.RequestedAttributes))
	for referent := range req.RequestedAttributes {
		if _, self := rp.SelfAttestedAttrs[referent]; self {
			continue
		}
		switch {
		case hasKey(rp.RevealedAttrs, referent):
			attrIdx[referent] = rp.RevealedAttrs[referent].SubProofIndex
		case hasKey(rp.RevealedAttrGroups, referent):
			attrIdx[referent] = rp.RevealedAttrGroups[referent].SubProofIndex
		case hasKey(rp.UnrevealedAttrs, referent):
			attrIdx[referent] = rp.UnrevealedAttrs[referent].SubProofIndex
		default:
			return nil, nil, helpers.ErrInvalidStructure
		}
	}

	predIdx = make(map[string]int, len(req.RequestedPredicates))
	for referent := range req.RequestedPredicates {
		pi, ok := rp.Predicates[referent]
		if !ok {
			return nil, nil, helpers.ErrInvalidStructure
		}
		predIdx[referent] = pi.SubProofIndex
	}
	return attrIdx, predIdx, nil
}

func hasKey[V any](m map[string]V, k string) bool {
	_, ok := m[k]
	return ok
}

// checkIdentifierBinding validates every identifier the proof declares
// resolves to a known schema, cred def, and — when the credential is
// revocable — a known rev-reg def and published accumulator state at the
// identifier's own timestamp.
func checkIdentifierBinding(identifiers []types.Identifier, schemas map[string]types.Schema, credDefs map[string]types.CredDef, revRegDefs map[string]types.RevRegDef, revRegs RevRegs) error {
	for _, id := range identifiers {
		if _, ok := schemas[id.SchemaID]; !ok {
			return helpers.ErrInvalidStructure
		}
		if _, ok := credDefs[id.CredDefID]; !ok {
			return helpers.ErrInvalidStructure
		}
		if id.RevRegID == "" {
			continue
		}
		if _, ok := revRegDefs[id.RevRegID]; !ok {
			return helpers.ErrInvalidStructure
		}
		if id.Timestamp == nil {
			return helpers.ErrInvalidStructure
		}
		if _, ok := revRegs[id.RevRegID][*id.Timestamp]; !ok {
			return helpers.ErrInvalidStructure
		}
	}
	return nil
}

// identifierTags derives the fixed identifier-level tag map a restriction
// clause is evaluated against, the same fixed fields
// internal/tagpolicy.ComputeTags attaches to a stored credential (minus the
// attribute markers, which restrictions never reference at verification
// time since a hidden attribute's raw value isn't available here).
func identifierTags(id types.Identifier, schemas map[string]types.Schema) map[string]string {
	schema := schemas[id.SchemaID]
	issuerDID, _ := ids.CredDefIssuerDID(id.CredDefID)
	revRegID := id.RevRegID
	if revRegID == "" {
		revRegID = "None"
	}
	return map[string]string{
		"schema_id":         schema.ID,
		"schema_issuer_did": schema.IssuerDID,
		"schema_name":       schema.Name,
		"schema_version":    schema.Version,
		"issuer_did":        issuerDID,
		"cred_def_id":       id.CredDefID,
		"rev_reg_id":        revRegID,
	}
}

// checkRestrictions evaluates every referent's declared restrictions
// against the identifier its sub-proof was built against.
func checkRestrictions(req types.ProofRequest, proof types.Proof, attrIdx, predIdx map[string]int, schemas map[string]types.Schema) (bool, error) {
	for referent, idx := range attrIdx {
		restrictions := req.RequestedAttributes[referent].Restrictions
		if len(restrictions) == 0 {
			continue
		}
		if idx < 0 || idx >= len(proof.Identifiers) {
			return false, helpers.ErrInvalidStructure
		}
		ok, err := wql.Eval(restrictions, identifierTags(proof.Identifiers[idx], schemas))
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	for referent, idx := range predIdx {
		restrictions := req.RequestedPredicates[referent].Restrictions
		if len(restrictions) == 0 {
			continue
		}
		if idx < 0 || idx >= len(proof.Identifiers) {
			return false, helpers.ErrInvalidStructure
		}
		ok, err := wql.Eval(restrictions, identifierTags(proof.Identifiers[idx], schemas))
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// checkRevealedIntegrity recomputes encoded from raw for every disclosed
// value and rejects any mismatch, catching both direct tampering and a
// raw/encoded pair that was never consistent to begin with.
func checkRevealedIntegrity(rp types.RequestedProof) bool {
	for _, ra := range rp.RevealedAttrs {
		if encoding.Encode(ra.Raw) != ra.Encoded {
			return false
		}
	}
	for _, group := range rp.RevealedAttrGroups {
		for _, v := range group.Values {
			if encoding.Encode(v.Raw) != v.Encoded {
				return false
			}
		}
	}
	return true
}

// checkPredicateWiring confirms each predicate referent's bound sub-proof
// actually carries a predicate proof over the same attribute, comparison,
// and threshold the request named.
func checkPredicateWiring(req types.ProofRequest, proof types.Proof, predIdx map[string]int) bool {
	for referent, idx := range predIdx {
		info := req.RequestedPredicates[referent]
		if idx < 0 || idx >= len(proof.ProofData.Proofs) {
			return false
		}
		found := false
		for _, pp := range proof.ProofData.Proofs[idx].PrimaryProof.Predicates {
			if pp.AttrName == normalize.Name(info.Name) && pp.PType == info.PType && pp.PValue == info.PValue {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// checkNonRevocationScope confirms that for every referent whose effective
// non_revoked interval requires it, the bound sub-proof's non-revocation
// timestamp falls within that window. A non-revocable credential (no
// rev_reg_id on its identifier) is exempt — there is nothing to scope.
func checkNonRevocationScope(req types.ProofRequest, proof types.Proof, attrIdx, predIdx map[string]int) bool {
	check := func(idx int, interval *types.NonRevokedInterval) bool {
		if interval == nil {
			return true
		}
		if idx < 0 || idx >= len(proof.Identifiers) {
			return false
		}
		id := proof.Identifiers[idx]
		if id.RevRegID == "" {
			return true
		}
		sp := proof.ProofData.Proofs[idx]
		if sp.NonRevocProof == nil || id.Timestamp == nil || sp.NonRevocProof.Timestamp != *id.Timestamp {
			return false
		}
		ts := sp.NonRevocProof.Timestamp
		if interval.From != nil && ts < *interval.From {
			return false
		}
		if interval.To != nil && ts > *interval.To {
			return false
		}
		return true
	}

	for referent, idx := range attrIdx {
		info := req.RequestedAttributes[referent]
		if !check(idx, effectiveInterval(info.NonRevoked, req.NonRevoked)) {
			return false
		}
	}
	for referent, idx := range predIdx {
		info := req.RequestedPredicates[referent]
		if !check(idx, effectiveInterval(info.NonRevoked, req.NonRevoked)) {
			return false
		}
	}
	return true
}

func effectiveInterval(referentLevel, protocolLevel *types.NonRevokedInterval) *types.NonRevokedInterval {
	if referentLevel != nil {
		return referentLevel
	}
	return protocolLevel
}

// checkNonRevocationMembership recomputes, for every sub-proof carrying a
// non-revocation proof, whether its witness is consistent with the
// registry's accumulator value at the claimed timestamp.
func (v *Verifier) checkNonRevocationMembership(ctx context.Context, proof types.Proof, revRegDefs map[string]types.RevRegDef, revRegs RevRegs) (bool, error) {
	for idx, sp := range proof.ProofData.Proofs {
		if sp.NonRevocProof == nil {
			continue
		}
		nrp := sp.NonRevocProof
		def, ok := revRegDefs[nrp.RevRegID]
		if !ok {
			return false, helpers.ErrInvalidStructure
		}
		accum, ok := revRegs[nrp.RevRegID][nrp.Timestamp]
		if !ok {
			return false, helpers.ErrInvalidStructure
		}
		if idx >= len(proof.Identifiers) || proof.Identifiers[idx].RevRegID != nrp.RevRegID {
			return false, helpers.ErrInvalidStructure
		}

		state := types.RevocationState{
			RevReg:    accum,
			Witness:   types.Witness{OmegaDenom: nrp.WitnessHat},
			Timestamp: nrp.Timestamp,
		}
		ok, err := v.revocation.CheckMembership(ctx, def, state, nrp.CredRevID)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// checkCryptographic delegates the final soundness check to
// internal/clcrypto, assembling one VerifyGroupInput per sub-proof from the
// revealed values and predicate specs the request/requested_proof bind to
// that index.
func checkCryptographic(req types.ProofRequest, proof types.Proof, schemas map[string]types.Schema, credDefs map[string]types.CredDef) (bool, error) {
	n := len(proof.Identifiers)
	if n != len(proof.ProofData.Proofs) {
		return false, helpers.ErrInvalidStructure
	}

	groups := make([]clcrypto.VerifyGroupInput, n)
	pkCache := make(map[string]*clcrypto.PublicKey, n)
	for idx, id := range proof.Identifiers {
		credDef := credDefs[id.CredDefID]
		pk, ok := pkCache[id.CredDefID]
		if !ok {
			var err error
			pk, err = clcrypto.DecodePublicKey(credDef.Value.PublicKey)
			if err != nil {
				return false, helpers.ErrInvalidStructure
			}
			pkCache[id.CredDefID] = pk
		}

		schema := schemas[id.SchemaID]
		allNames := make([]string, 0, len(schema.AttrNames))
		for _, name := range schema.AttrNames {
			allNames = append(allNames, normalize.Name(name))
		}

		groups[idx] = clcrypto.VerifyGroupInput{PK: pk, AllAttrNames: allNames, RevealedAttrs: map[string]*big.Int{}}
	}

	for referent, ra := range proof.RequestedProof.RevealedAttrs {
		attrInfo := req.RequestedAttributes[referent]
		idx := ra.SubProofIndex
		if idx < 0 || idx >= n {
			return false, helpers.ErrInvalidStructure
		}
		enc, ok := new(big.Int).SetString(ra.Encoded, 10)
		if !ok {
			return false, helpers.ErrInvalidStructure
		}
		groups[idx].RevealedAttrs[normalize.Name(attrInfo.Name)] = enc
	}
	for referent, group := range proof.RequestedProof.RevealedAttrGroups {
		attrInfo := req.RequestedAttributes[referent]
		idx := group.SubProofIndex
		if idx < 0 || idx >= n {
			return false, helpers.ErrInvalidStructure
		}
		for _, name := range attrInfo.Names {
			v, ok := group.Values[name]
			if !ok {
				return false, helpers.ErrInvalidStructure
			}
			enc, ok := new(big.Int).SetString(v.Encoded, 10)
			if !ok {
				return false, helpers.ErrInvalidStructure
			}
			groups[idx].RevealedAttrs[normalize.Name(name)] = enc
		}
	}
	for referent, pi := range proof.RequestedProof.Predicates {
		predInfo := req.RequestedPredicates[referent]
		idx := pi.SubProofIndex
		if idx < 0 || idx >= n {
			return false, helpers.ErrInvalidStructure
		}
		groups[idx].Predicates = append(groups[idx].Predicates, clcrypto.PredicateSpec{
			AttrName: normalize.Name(predInfo.Name),
			PType:    predInfo.PType,
			PValue:   predInfo.PValue,
		})
	}

	nonce, err := clcrypto.ParseNonce(req.Nonce)
	if err != nil {
		return false, helpers.ErrInvalidStructure
	}

	return clcrypto.VerifyDisclosureProof(groups, proof.ProofData.Proofs, proof.ProofData.AggregatedProof, nonce)
}
