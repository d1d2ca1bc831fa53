// Package tagpolicy computes a stored credential's derived tag map from its
// fixed identifiers plus the per-cred-def attribute tag policy. The actual
// store write (including the retroactive per-credential rewrite) lives in
// internal/prover, which owns the store dependency; this package is pure
// computation so it can be unit tested without a store.
package tagpolicy

import (
	"anoncreds/internal/normalize"
	"anoncreds/internal/types"
)

// NoneLiteral is the literal preserved for a tag map's rev_reg_id when the
// credential is not revocable — an explicit compatibility decision recorded
// in DESIGN.md rather than an omitted key.
const NoneLiteral = "None"

// Input is everything ComputeTags needs to derive one credential's tag map.
type Input struct {
	Schema    types.Schema
	CredDefID string
	IssuerDID string
	RevRegID  string // empty when the credential is not revocable
	Values    map[string]types.AttrValue
	Policy    *types.TagPolicy // nil means "tag every attribute"
}

// ComputeTags derives the full tag map for a stored credential: the fixed
// identifier tags, always present, plus one marker/value pair per attribute
// selected by the policy.
func ComputeTags(in Input) map[string]string {
	revRegID := in.RevRegID
	if revRegID == "" {
		revRegID = NoneLiteral
	}

	tags := map[string]string{
		"schema_id":         in.Schema.ID,
		"schema_issuer_did": in.Schema.IssuerDID,
		"schema_name":       in.Schema.Name,
		"schema_version":    in.Schema.Version,
		"issuer_did":        in.IssuerDID,
		"cred_def_id":       in.CredDefID,
		"rev_reg_id":        revRegID,
	}

	for _, name := range selectedAttrs(in.Policy, in.Schema.AttrNames) {
		value, ok := lookupValue(in.Values, name)
		if !ok {
			continue
		}
		norm := normalize.Name(name)
		tags["attr::"+norm+"::marker"] = "1"
		tags["attr::"+norm+"::value"] = value.Raw
	}

	return tags
}

// selectedAttrs applies the policy's tagged_attrs rule: nil policy or a nil
// TaggedAttrs means "every attribute"; an empty, non-nil slice means none;
// otherwise only the named (normalized) attributes are selected.
func selectedAttrs(policy *types.TagPolicy, allNames []string) []string {
	if policy == nil || policy.TaggedAttrs == nil {
		return allNames
	}
	if len(policy.TaggedAttrs) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(policy.TaggedAttrs))
	for _, name := range policy.TaggedAttrs {
		allowed[normalize.Name(name)] = true
	}
	selected := make([]string, 0, len(allNames))
	for _, name := range allNames {
		if allowed[normalize.Name(name)] {
			selected = append(selected, name)
		}
	}
	return selected
}

// lookupValue finds values[name] tolerating a normalization mismatch
// between the schema's declared attribute names and the credential's
// values map (both are supposed to agree, but normalization is applied
// defensively since it is also the tag-key rule).
func lookupValue(values map[string]types.AttrValue, name string) (types.AttrValue, bool) {
	if v, ok := values[name]; ok {
		return v, true
	}
	norm := normalize.Name(name)
	for k, v := range values {
		if normalize.Name(k) == norm {
			return v, true
		}
	}
	return types.AttrValue{}, false
}

// NormalizePolicy returns a copy of tagged with every entry normalized,
// ready to be persisted — set_credential_attr_tag_policy must store the
// policy in the same normalized form ComputeTags compares against.
func NormalizePolicy(tagged []string) []string {
	if tagged == nil {
		return nil
	}
	out := make([]string, len(tagged))
	for i, name := range tagged {
		out[i] = normalize.Name(name)
	}
	return out
}
