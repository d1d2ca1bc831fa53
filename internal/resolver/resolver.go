// Package resolver translates a proof request's per-referent restrictions
// into wallet-query-language sub-queries and resolves them against the
// store, producing the attrs/predicates result shape consumed by both the
// deprecated get_credentials_for_proof_req command and its paged
// successor.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/PaesslerAG/jsonpath"

	"anoncreds/internal/normalize"
	"anoncreds/internal/store"
	"anoncreds/internal/types"
	"anoncreds/internal/wql"
	"anoncreds/pkg/helpers"
)

// CredInfo is one candidate credential for an attribute referent.
type CredInfo struct {
	Info     types.CredentialInfo       `json:"cred_info"`
	Interval *types.NonRevokedInterval  `json:"interval,omitempty"`
}

// PredCredInfo is one candidate credential for a predicate referent.
type PredCredInfo struct {
	Info      types.CredentialInfo `json:"cred_info"`
	Timestamp *int64               `json:"timestamp,omitempty"`
}

// Resolved is the full, unpaged result of resolving a proof request.
type Resolved struct {
	Attrs      map[string][]CredInfo      `json:"attrs"`
	Predicates map[string][]PredCredInfo  `json:"predicates"`
}

// BuildReferentQuery combines the attribute-presence predicate for every
// name the referent requires with its declared restrictions and any
// caller-supplied extra query, AND-ed together. ver ("1.0" vs "2.0") only
// governs which restriction-id vocabulary the caller is expected to have
// used when building restrictions; evaluation always compares values as
// literal strings (see internal/wql), so no canonicalization between
// qualified and unqualified ids happens here regardless of ver — this is
// the resolved form of the open restriction-vocabulary question.
func BuildReferentQuery(attrNames []string, restrictions types.WQLQuery, extra types.WQLQuery) types.WQLQuery {
	clauses := make([]any, 0, len(attrNames)+2)
	for _, name := range attrNames {
		clauses = append(clauses, map[string]any{"attr::" + normalize.Name(name) + "::marker": "1"})
	}
	if len(restrictions) > 0 {
		clauses = append(clauses, map[string]any(restrictions))
	}
	if len(extra) > 0 {
		clauses = append(clauses, map[string]any(extra))
	}
	switch len(clauses) {
	case 0:
		return types.WQLQuery{}
	case 1:
		if m, ok := clauses[0].(map[string]any); ok {
			return m
		}
	}
	return types.WQLQuery{"$and": clauses}
}

// ParseExtraQuery decodes a caller-supplied extra_query_json blob, keyed by
// referent, validating that every referent named in it is one this proof
// request actually declares. An unknown referent or malformed shape fails
// with CommonInvalidStructure.
func ParseExtraQuery(raw json.RawMessage, knownReferents map[string]bool) (map[string]types.WQLQuery, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, helpers.ErrInvalidStructure
	}
	topLevel, ok := doc.(map[string]any)
	if !ok {
		return nil, helpers.ErrInvalidStructure
	}

	out := make(map[string]types.WQLQuery, len(topLevel))
	for referent := range topLevel {
		if !knownReferents[referent] {
			return nil, helpers.ErrInvalidStructure
		}
		value, err := jsonpath.Get(fmt.Sprintf("$[%q]", referent), doc)
		if err != nil {
			return nil, helpers.ErrInvalidStructure
		}
		sub, ok := value.(map[string]any)
		if !ok {
			return nil, helpers.ErrInvalidStructure
		}
		out[referent] = types.WQLQuery(sub)
	}
	return out, nil
}

// effectiveInterval returns the referent-level non-revocation scope if
// present, else the protocol-level (proof-request-wide) one.
func effectiveInterval(referent, protocolLevel *types.NonRevokedInterval) *types.NonRevokedInterval {
	if referent != nil {
		return referent
	}
	return protocolLevel
}

func matchAll(all []store.StoredCredential, query types.WQLQuery) ([]store.StoredCredential, error) {
	matches := make([]store.StoredCredential, 0, len(all))
	for _, cred := range all {
		ok, err := wql.Eval(query, cred.Tags)
		if err != nil {
			return nil, fmt.Errorf("resolver: %w", err)
		}
		if ok {
			matches = append(matches, cred)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

func attrNamesFor(info types.AttrInfo) []string {
	if len(info.Names) > 0 {
		return info.Names
	}
	if info.Name != "" {
		return []string{info.Name}
	}
	return nil
}

// Resolve matches every attribute and predicate referent in req against
// every stored credential, honoring restrictions and extraQuery.
func Resolve(ctx context.Context, st store.Store, req types.ProofRequest, extraQuery map[string]types.WQLQuery) (*Resolved, error) {
	all, err := st.AllCredentials(ctx)
	if err != nil {
		return nil, err
	}

	resolved := &Resolved{
		Attrs:      make(map[string][]CredInfo, len(req.RequestedAttributes)),
		Predicates: make(map[string][]PredCredInfo, len(req.RequestedPredicates)),
	}

	for referent, info := range req.RequestedAttributes {
		query := BuildReferentQuery(attrNamesFor(info), info.Restrictions, extraQuery[referent])
		matches, err := matchAll(all, query)
		if err != nil {
			return nil, err
		}
		interval := effectiveInterval(info.NonRevoked, req.NonRevoked)
		list := make([]CredInfo, 0, len(matches))
		for _, cred := range matches {
			list = append(list, CredInfo{Info: cred.Info(), Interval: interval})
		}
		resolved.Attrs[referent] = list
	}

	for referent, info := range req.RequestedPredicates {
		query := BuildReferentQuery([]string{info.Name}, info.Restrictions, extraQuery[referent])
		matches, err := matchAll(all, query)
		if err != nil {
			return nil, err
		}
		list := make([]PredCredInfo, 0, len(matches))
		for _, cred := range matches {
			list = append(list, PredCredInfo{Info: cred.Info()})
		}
		resolved.Predicates[referent] = list
	}

	return resolved, nil
}
