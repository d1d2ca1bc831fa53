// Package prover orchestrates the prover-side lifecycle of the anonymous
// credential protocol: link secret creation, credential-request
// construction, credential storage, tag-policy management, credential
// search, and zero-knowledge proof assembly. It is the conductor over
// internal/clcrypto (the cryptography), internal/store (persistence),
// internal/tagpolicy (tag derivation), internal/resolver (proof-request
// matching) and internal/search (paging). None of those packages imports
// internal/prover; internal/resolver itself builds on internal/store and
// internal/search.
package prover

import (
	"context"
	"errors"
	"sort"

	"anoncreds/internal/clcrypto"
	"anoncreds/internal/resolver"
	"anoncreds/internal/search"
	"anoncreds/internal/store"
	"anoncreds/internal/tagpolicy"
	"anoncreds/internal/types"
	"anoncreds/internal/wql"
	"anoncreds/pkg/helpers"
	"anoncreds/pkg/logger"
)

// Prover is one wallet's prover-side command surface.
type Prover struct {
	store    store.Store
	params   clcrypto.SystemParams
	creds    *search.Registry[types.CredentialInfo]
	proofReq *resolver.PagedRegistry
	log      *logger.Log
}

// New builds a Prover backed by st, signing with the given system
// parameters (only used to size a freshly generated link secret). log may
// be nil, in which case Prover logs nowhere (the zero *logger.Log panics
// on use, so callers that care about prover diagnostics must supply one).
func New(st store.Store, params clcrypto.SystemParams, log *logger.Log) *Prover {
	if log == nil {
		log = logger.NewSimple("prover")
	} else {
		log = log.New("prover")
	}
	return &Prover{
		store:    st,
		params:   params,
		creds:    search.NewRegistry[types.CredentialInfo](),
		proofReq: resolver.NewPagedRegistry(),
		log:      log,
	}
}

// CreateMasterSecret generates a fresh link secret and persists it under
// id (a store-assigned id if id is empty), returning the id used.
func (p *Prover) CreateMasterSecret(ctx context.Context, id string) (string, error) {
	ms, err := clcrypto.GenerateLinkSecret(p.params)
	if err != nil {
		return "", helpers.NewErrorFromError(err)
	}
	savedID, err := p.store.SaveLinkSecret(ctx, store.LinkSecretRecord{ID: id, Value: ms.String()})
	if err != nil {
		return "", err
	}
	p.log.Debug("master secret created", "id", savedID)
	return savedID, nil
}

// GetCredential returns the search-result view of one stored credential.
func (p *Prover) GetCredential(ctx context.Context, credID string) (types.CredentialInfo, error) {
	cred, err := p.store.GetCredential(ctx, credID)
	if err != nil {
		return types.CredentialInfo{}, err
	}
	return cred.Info(), nil
}

// DeleteCredential removes a stored credential.
func (p *Prover) DeleteCredential(ctx context.Context, credID string) error {
	return p.store.DeleteCredential(ctx, credID)
}

// GetCredentials is the deprecated, fully-materialized credential list,
// optionally narrowed by a WQL filter (an empty/nil filter matches all).
func (p *Prover) GetCredentials(ctx context.Context, filter types.WQLQuery) ([]types.CredentialInfo, error) {
	matches, err := p.filterStored(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]types.CredentialInfo, len(matches))
	for i, c := range matches {
		out[i] = c.Info()
	}
	return out, nil
}

// SearchCredentials opens a paged cursor over the credentials matching
// query, returning its handle and the advisory total count.
func (p *Prover) SearchCredentials(ctx context.Context, query types.WQLQuery) (handle int64, totalCount int, err error) {
	matches, err := p.filterStored(ctx, query)
	if err != nil {
		return 0, 0, err
	}
	infos := make([]types.CredentialInfo, len(matches))
	for i, c := range matches {
		infos[i] = c.Info()
	}
	handle, total := p.creds.Open(infos)
	return handle, total, nil
}

// FetchCredentials pages the cursor behind handle.
func (p *Prover) FetchCredentials(handle int64, count int) ([]types.CredentialInfo, error) {
	return p.creds.Fetch(handle, count)
}

// CloseCredentialsSearch invalidates handle.
func (p *Prover) CloseCredentialsSearch(handle int64) error {
	return p.creds.Close(handle)
}

func (p *Prover) filterStored(ctx context.Context, query types.WQLQuery) ([]store.StoredCredential, error) {
	all, err := p.store.AllCredentials(ctx)
	if err != nil {
		return nil, err
	}
	matches := make([]store.StoredCredential, 0, len(all))
	for _, c := range all {
		ok, err := wql.Eval(query, c.Tags)
		if err != nil {
			return nil, helpers.NewErrorFromError(err)
		}
		if ok {
			matches = append(matches, c)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

// SetCredentialAttrTagPolicy upserts the per-cred-def tag policy and, if
// retroactive, recomputes and rewrites every matching stored credential's
// tag map, one store transaction per credential (per-credential atomic;
// the batch as a whole may partially fail — the first error aborts the
// remainder and is returned to the caller).
func (p *Prover) SetCredentialAttrTagPolicy(ctx context.Context, credDefID string, taggedAttrs []string, retroactive bool) error {
	policy := types.TagPolicy{CredDefID: credDefID, TaggedAttrs: tagpolicy.NormalizePolicy(taggedAttrs)}
	if err := p.store.SaveTagPolicy(ctx, policy); err != nil {
		return err
	}
	if !retroactive {
		return nil
	}

	all, err := p.store.AllCredentials(ctx)
	if err != nil {
		return err
	}
	for _, cred := range all {
		if cred.CredDefID != credDefID {
			continue
		}
		tags := tagsForStoredCredential(cred, &policy)
		if err := p.store.UpdateCredentialTags(ctx, cred.ID, tags); err != nil {
			return err
		}
	}
	return nil
}

// GetCredentialAttrTagPolicy returns the policy for credDefID, or nil if
// none has been set.
func (p *Prover) GetCredentialAttrTagPolicy(ctx context.Context, credDefID string) (*types.TagPolicy, error) {
	policy, ok, err := p.store.GetTagPolicy(ctx, credDefID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &policy, nil
}

// GetCredentialsForProofReq is the deprecated, fully-materialized
// resolution of a proof request against the store.
func (p *Prover) GetCredentialsForProofReq(ctx context.Context, req types.ProofRequest) (*resolver.Resolved, error) {
	return resolver.Resolve(ctx, p.store, req, nil)
}

// SearchCredentialsForProofReq resolves req (honoring extraQueryJSON,
// keyed by referent) and opens a paged composite handle over the result.
func (p *Prover) SearchCredentialsForProofReq(ctx context.Context, req types.ProofRequest, extraQueryJSON []byte) (int64, error) {
	extra, err := resolver.ParseExtraQuery(extraQueryJSON, referentsOf(req))
	if err != nil {
		return 0, err
	}
	resolved, err := resolver.Resolve(ctx, p.store, req, extra)
	if err != nil {
		return 0, err
	}
	return p.proofReq.Open(resolved), nil
}

// FetchCredentialsForProofReq advances itemReferent's cursor under handle.
// itemReferent may name either an attribute or a predicate referent; the
// matching cursor kind is returned and the other is nil.
func (p *Prover) FetchCredentialsForProofReq(handle int64, itemReferent string, count int) ([]resolver.CredInfo, []resolver.PredCredInfo, error) {
	attrs, err := p.proofReq.FetchAttrs(handle, itemReferent, count)
	if err == nil {
		return attrs, nil, nil
	}
	if !errors.Is(err, helpers.ErrInvalidStructure) {
		return nil, nil, err
	}
	preds, err := p.proofReq.FetchPredicates(handle, itemReferent, count)
	if err != nil {
		return nil, nil, err
	}
	return nil, preds, nil
}

// CloseCredentialsSearchForProofReq invalidates handle.
func (p *Prover) CloseCredentialsSearchForProofReq(handle int64) error {
	return p.proofReq.Close(handle)
}

func referentsOf(req types.ProofRequest) map[string]bool {
	out := make(map[string]bool, len(req.RequestedAttributes)+len(req.RequestedPredicates))
	for r := range req.RequestedAttributes {
		out[r] = true
	}
	for r := range req.RequestedPredicates {
		out[r] = true
	}
	return out
}
