package prover

import (
	"context"
	"errors"
	"math/big"
	"sort"

	"anoncreds/internal/clcrypto"
	"anoncreds/internal/normalize"
	"anoncreds/internal/store"
	"anoncreds/internal/types"
	"anoncreds/pkg/helpers"
)

// RevocationStates indexes revocation states by rev_reg_def_id then
// timestamp, the shape create_proof's rev_states parameter takes.
type RevocationStates map[string]map[int64]types.RevocationState

// credGroup accumulates every referent sharing one credential into the
// single CL sub-proof that credential produces.
type credGroup struct {
	revealedNames map[string]bool
	predSpecs     []clcrypto.PredicateSpec
	timestamp     *int64
	needsNonRevoc bool
}

// CreateProof builds a zero-knowledge presentation satisfying req using
// the credentials sel selects, following the 8-step algorithm: validate
// coverage, group selections by credential, resolve each group's schema
// and cred-def, determine revealed/predicate/self-attested content,
// gather non-revocation witness input, delegate sub-proof construction and
// aggregation to internal/clcrypto, then assemble requested_proof in
// stable cred_id-then-referent order.
func (p *Prover) CreateProof(
	ctx context.Context,
	req types.ProofRequest,
	sel types.RequestedCredentials,
	msID string,
	schemas map[string]types.Schema,
	credDefs map[string]types.CredDef,
	revStates RevocationStates,
) (*types.Proof, error) {
	if err := validateCoverage(req, sel); err != nil {
		return nil, err
	}

	msRec, err := p.store.GetLinkSecret(ctx, msID)
	if err != nil {
		return nil, err
	}
	ms, ok := new(big.Int).SetString(msRec.Value, 10)
	if !ok {
		return nil, helpers.ErrInvalidStructure
	}

	groups, order, err := buildCredGroups(req, sel)
	if err != nil {
		return nil, err
	}

	storedByCred := make(map[string]store.StoredCredential, len(order))
	inputs := make([]clcrypto.GroupInput, len(order))
	identifiers := make([]types.Identifier, len(order))
	pkCache := make(map[string]*clcrypto.PublicKey, len(order))

	for gi, credID := range order {
		g := groups[credID]

		cred, err := p.store.GetCredential(ctx, credID)
		if err != nil {
			return nil, err
		}
		storedByCred[credID] = cred

		credDef, ok := credDefs[cred.CredDefID]
		if !ok {
			return nil, helpers.ErrInvalidStructure
		}
		if _, ok := schemas[cred.SchemaID]; !ok {
			return nil, helpers.ErrInvalidStructure
		}

		pk, ok := pkCache[cred.CredDefID]
		if !ok {
			pk, err = decodePublicKey(credDef.Value.PublicKey)
			if err != nil {
				return nil, err
			}
			pkCache[cred.CredDefID] = pk
		}

		sig, err := decodeSignature(cred.Signature)
		if err != nil {
			return nil, err
		}

		attrs := map[string]clcrypto.AttrSpec{
			clcrypto.LinkSecretName: {Value: ms, Revealed: false},
		}
		for name, v := range cred.Values {
			enc, ok := new(big.Int).SetString(v.Encoded, 10)
			if !ok {
				return nil, helpers.ErrInvalidStructure
			}
			attrs[name] = clcrypto.AttrSpec{Value: enc, Revealed: g.revealedNames[name]}
		}

		inputs[gi] = clcrypto.GroupInput{PK: pk, Signature: sig, Attrs: attrs, Predicates: g.predSpecs}

		var timestamp *int64
		if cred.RevRegID != "" && g.needsNonRevoc {
			if g.timestamp == nil {
				return nil, helpers.ErrInvalidStructure
			}
			if _, ok := revStates[cred.RevRegID][*g.timestamp]; !ok {
				return nil, helpers.ErrInvalidUserRevocID
			}
			timestamp = g.timestamp
		}
		identifiers[gi] = types.Identifier{
			SchemaID:  cred.SchemaID,
			CredDefID: cred.CredDefID,
			RevRegID:  cred.RevRegID,
			Timestamp: timestamp,
		}
	}

	nonce, err := clcrypto.ParseNonce(req.Nonce)
	if err != nil {
		return nil, helpers.ErrInvalidStructure
	}

	subProofs, agg, err := clcrypto.BuildDisclosureProof(inputs, nonce)
	if err != nil {
		if errors.Is(err, clcrypto.ErrPredicateUnsatisfiable) {
			return nil, helpers.ErrProofRejected
		}
		return nil, helpers.NewErrorFromError(err)
	}

	for gi, credID := range order {
		id := identifiers[gi]
		if id.RevRegID == "" || id.Timestamp == nil {
			continue
		}
		cred := storedByCred[credID]
		if cred.CredRevID == nil {
			return nil, helpers.ErrInvalidStructure
		}
		state := revStates[id.RevRegID][*id.Timestamp]
		subProofs[gi].NonRevocProof = &types.NonRevocProof{
			RevRegID:   id.RevRegID,
			Timestamp:  *id.Timestamp,
			WitnessHat: state.Witness.OmegaDenom,
			CredRevID:  *cred.CredRevID,
		}
	}

	credIndex := make(map[string]int, len(order))
	for gi, credID := range order {
		credIndex[credID] = gi
	}

	requestedProof, err := buildRequestedProof(req, sel, storedByCred, credIndex)
	if err != nil {
		return nil, err
	}

	p.log.Debug("proof created", "proofRequestNonce", req.Nonce, "subProofCount", len(subProofs))

	return &types.Proof{
		RequestedProof: requestedProof,
		ProofData:      types.ProofData{Proofs: subProofs, AggregatedProof: agg},
		Identifiers:    identifiers,
	}, nil
}

func validateCoverage(req types.ProofRequest, sel types.RequestedCredentials) error {
	for referent := range req.RequestedAttributes {
		if _, self := sel.SelfAttestedAttributes[referent]; self {
			continue
		}
		if _, ok := sel.RequestedAttributes[referent]; !ok {
			return helpers.ErrInvalidStructure
		}
	}
	for referent := range req.RequestedPredicates {
		if _, ok := sel.RequestedPredicates[referent]; !ok {
			return helpers.ErrInvalidStructure
		}
	}
	return nil
}

func attrInfoNames(info types.AttrInfo) []string {
	if len(info.Names) > 0 {
		return info.Names
	}
	if info.Name != "" {
		return []string{info.Name}
	}
	return nil
}

// buildCredGroups partitions every proof-request referent by the
// credential its selection names, merging revealed-attribute names,
// predicate constraints, and the non-revocation timestamp each group's
// referents agree on.
func buildCredGroups(req types.ProofRequest, sel types.RequestedCredentials) (map[string]*credGroup, []string, error) {
	groups := map[string]*credGroup{}
	ensure := func(credID string) *credGroup {
		g, ok := groups[credID]
		if !ok {
			g = &credGroup{revealedNames: map[string]bool{}}
			groups[credID] = g
		}
		return g
	}

	for referent, attrInfo := range req.RequestedAttributes {
		if _, self := sel.SelfAttestedAttributes[referent]; self {
			continue
		}
		sa := sel.RequestedAttributes[referent]
		g := ensure(sa.CredID)
		if sa.Revealed {
			for _, name := range attrInfoNames(attrInfo) {
				g.revealedNames[normalize.Name(name)] = true
			}
		}
		if effectiveInterval(attrInfo.NonRevoked, req.NonRevoked) != nil {
			g.needsNonRevoc = true
		}
		if err := mergeGroupTimestamp(g, sa.Timestamp); err != nil {
			return nil, nil, err
		}
	}

	for referent, predInfo := range req.RequestedPredicates {
		sp := sel.RequestedPredicates[referent]
		g := ensure(sp.CredID)
		g.predSpecs = append(g.predSpecs, clcrypto.PredicateSpec{
			AttrName: normalize.Name(predInfo.Name),
			PType:    predInfo.PType,
			PValue:   predInfo.PValue,
		})
		if effectiveInterval(predInfo.NonRevoked, req.NonRevoked) != nil {
			g.needsNonRevoc = true
		}
		if err := mergeGroupTimestamp(g, sp.Timestamp); err != nil {
			return nil, nil, err
		}
	}

	order := make([]string, 0, len(groups))
	for credID := range groups {
		order = append(order, credID)
	}
	sort.Strings(order)
	return groups, order, nil
}

func mergeGroupTimestamp(g *credGroup, t *int64) error {
	if t == nil {
		return nil
	}
	if g.timestamp != nil && *g.timestamp != *t {
		return helpers.ErrInvalidStructure
	}
	g.timestamp = t
	return nil
}

func effectiveInterval(referentLevel, protocolLevel *types.NonRevokedInterval) *types.NonRevokedInterval {
	if referentLevel != nil {
		return referentLevel
	}
	return protocolLevel
}

// buildRequestedProof maps every referent to the sub-proof index that
// produced it, echoing {raw, encoded} for revealed attributes and the raw
// value for self-attested ones.
func buildRequestedProof(req types.ProofRequest, sel types.RequestedCredentials, storedByCred map[string]store.StoredCredential, credIndex map[string]int) (types.RequestedProof, error) {
	rp := types.RequestedProof{
		RevealedAttrs:     map[string]types.RevealedAttr{},
		UnrevealedAttrs:   map[string]types.UnrevealedAttr{},
		SelfAttestedAttrs: map[string]string{},
		Predicates:        map[string]types.PredicateInfo{},
	}
	for referent, raw := range sel.SelfAttestedAttributes {
		rp.SelfAttestedAttrs[referent] = raw
	}

	referents := make([]string, 0, len(req.RequestedAttributes))
	for referent := range req.RequestedAttributes {
		referents = append(referents, referent)
	}
	sort.Strings(referents)

	for _, referent := range referents {
		attrInfo := req.RequestedAttributes[referent]
		if _, self := sel.SelfAttestedAttributes[referent]; self {
			continue
		}
		sa := sel.RequestedAttributes[referent]
		gi := credIndex[sa.CredID]
		cred := storedByCred[sa.CredID]

		if names := attrInfo.Names; len(names) > 1 {
			values := make(map[string]types.AttrValue, len(names))
			for _, name := range names {
				v, ok := cred.Values[normalize.Name(name)]
				if !ok {
					return types.RequestedProof{}, helpers.ErrInvalidStructure
				}
				values[name] = v
			}
			if rp.RevealedAttrGroups == nil {
				rp.RevealedAttrGroups = map[string]types.RevealedAttrGroup{}
			}
			rp.RevealedAttrGroups[referent] = types.RevealedAttrGroup{SubProofIndex: gi, Values: values}
			continue
		}

		if !sa.Revealed {
			rp.UnrevealedAttrs[referent] = types.UnrevealedAttr{SubProofIndex: gi}
			continue
		}
		v, ok := cred.Values[normalize.Name(attrInfo.Name)]
		if !ok {
			return types.RequestedProof{}, helpers.ErrInvalidStructure
		}
		rp.RevealedAttrs[referent] = types.RevealedAttr{SubProofIndex: gi, Raw: v.Raw, Encoded: v.Encoded}
	}

	for referent := range req.RequestedPredicates {
		sp := sel.RequestedPredicates[referent]
		rp.Predicates[referent] = types.PredicateInfo{SubProofIndex: credIndex[sp.CredID]}
	}

	return rp, nil
}
