package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"anoncreds/internal/store"
	"anoncreds/internal/types"
)

func seedStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()

	_, err := st.SaveCredential(ctx, store.StoredCredential{
		ID:        "cred-1",
		SchemaID:  "schema:1",
		CredDefID: "creddef:1",
		Values:    map[string]types.AttrValue{"Name": {Raw: "alice"}, "Age": {Raw: "41"}},
		Tags: map[string]string{
			"schema_id":         "schema:1",
			"cred_def_id":       "creddef:1",
			"attr::name::marker": "1",
			"attr::name::value":  "alice",
			"attr::age::marker":  "1",
			"attr::age::value":   "41",
		},
	})
	require.NoError(t, err)

	_, err = st.SaveCredential(ctx, store.StoredCredential{
		ID:        "cred-2",
		SchemaID:  "schema:2",
		CredDefID: "creddef:2",
		Values:    map[string]types.AttrValue{"Name": {Raw: "bob"}},
		Tags: map[string]string{
			"schema_id":          "schema:2",
			"cred_def_id":        "creddef:2",
			"attr::name::marker": "1",
			"attr::name::value":  "bob",
		},
	})
	require.NoError(t, err)

	return st
}

func TestBuildReferentQueryCombinesPredicateRestrictionsAndExtra(t *testing.T) {
	q := BuildReferentQuery([]string{"Name"}, types.WQLQuery{"schema_id": "schema:1"}, types.WQLQuery{"cred_def_id": "creddef:1"})
	require.Contains(t, q, "$and")
}

func TestResolveAttrsFiltersByPresenceAndRestriction(t *testing.T) {
	st := seedStore(t)
	req := types.ProofRequest{
		Name: "req", Version: "1.0", Nonce: "1",
		RequestedAttributes: map[string]types.AttrInfo{
			"name_ref": {Name: "Name", Restrictions: types.WQLQuery{"cred_def_id": "creddef:1"}},
		},
	}
	resolved, err := Resolve(context.Background(), st, req, nil)
	require.NoError(t, err)
	matches := resolved.Attrs["name_ref"]
	require.Len(t, matches, 1)
	require.Equal(t, "cred-1", matches[0].Info.Referent)
}

func TestResolveAttrsWithoutRestrictionMatchesAll(t *testing.T) {
	st := seedStore(t)
	req := types.ProofRequest{
		Name: "req", Version: "1.0", Nonce: "1",
		RequestedAttributes: map[string]types.AttrInfo{
			"name_ref": {Name: "Name"},
		},
	}
	resolved, err := Resolve(context.Background(), st, req, nil)
	require.NoError(t, err)
	require.Len(t, resolved.Attrs["name_ref"], 2)
}

func TestResolvePredicates(t *testing.T) {
	st := seedStore(t)
	req := types.ProofRequest{
		Name: "req", Version: "1.0", Nonce: "1",
		RequestedPredicates: map[string]types.PredInfo{
			"age_ref": {Name: "Age", PType: types.PredGE, PValue: 18},
		},
	}
	resolved, err := Resolve(context.Background(), st, req, nil)
	require.NoError(t, err)
	require.Len(t, resolved.Predicates["age_ref"], 1)
	require.Equal(t, "cred-1", resolved.Predicates["age_ref"][0].Info.Referent)
}

func TestParseExtraQueryRejectsUnknownReferent(t *testing.T) {
	_, err := ParseExtraQuery([]byte(`{"unknown_ref": {"cred_def_id": "x"}}`), map[string]bool{"name_ref": true})
	require.Error(t, err)
}

func TestParseExtraQueryAcceptsKnownReferent(t *testing.T) {
	out, err := ParseExtraQuery([]byte(`{"name_ref": {"cred_def_id": "creddef:1"}}`), map[string]bool{"name_ref": true})
	require.NoError(t, err)
	require.Equal(t, "creddef:1", out["name_ref"]["cred_def_id"])
}

func TestParseExtraQueryEmptyIsNil(t *testing.T) {
	out, err := ParseExtraQuery(nil, map[string]bool{})
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestPagedSearchAdvancesOnlyNamedReferent(t *testing.T) {
	st := seedStore(t)
	req := types.ProofRequest{
		Name: "req", Version: "1.0", Nonce: "1",
		RequestedAttributes: map[string]types.AttrInfo{
			"name_ref": {Name: "Name"},
		},
	}
	resolved, err := Resolve(context.Background(), st, req, nil)
	require.NoError(t, err)

	reg := NewPagedRegistry()
	handle := reg.Open(resolved)

	batch, err := reg.FetchAttrs(handle, "name_ref", 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	batch, err = reg.FetchAttrs(handle, "name_ref", 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	_, err = reg.FetchAttrs(handle, "missing_ref", 1)
	require.Error(t, err)

	require.NoError(t, reg.Close(handle))
	_, err = reg.FetchAttrs(handle, "name_ref", 1)
	require.Error(t, err)
}
