package tagpolicy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"anoncreds/internal/types"
)

func testSchema() types.Schema {
	return types.Schema{
		ID:        "schema:1",
		Name:      "degree",
		Version:   "1.0",
		IssuerDID: "did:sov:issuer",
		AttrNames: []string{"Name", "Age"},
	}
}

func testValues() map[string]types.AttrValue {
	return map[string]types.AttrValue{
		"Name": {Raw: "alice", Encoded: "123"},
		"Age":  {Raw: "41", Encoded: "41"},
	}
}

func TestComputeTagsFixedTags(t *testing.T) {
	tags := ComputeTags(Input{
		Schema:    testSchema(),
		CredDefID: "creddef:1",
		IssuerDID: "did:sov:issuer",
		Values:    testValues(),
	})

	require.Equal(t, "schema:1", tags["schema_id"])
	require.Equal(t, "did:sov:issuer", tags["schema_issuer_did"])
	require.Equal(t, "degree", tags["schema_name"])
	require.Equal(t, "1.0", tags["schema_version"])
	require.Equal(t, "did:sov:issuer", tags["issuer_did"])
	require.Equal(t, "creddef:1", tags["cred_def_id"])
	require.Equal(t, NoneLiteral, tags["rev_reg_id"])
}

func TestComputeTagsRevRegIDPresent(t *testing.T) {
	tags := ComputeTags(Input{
		Schema:    testSchema(),
		CredDefID: "creddef:1",
		RevRegID:  "revreg:1",
		Values:    testValues(),
	})
	require.Equal(t, "revreg:1", tags["rev_reg_id"])
}

func TestComputeTagsNilPolicyTagsEverything(t *testing.T) {
	tags := ComputeTags(Input{
		Schema: testSchema(),
		Values: testValues(),
	})
	require.Equal(t, "1", tags["attr::name::marker"])
	require.Equal(t, "alice", tags["attr::name::value"])
	require.Equal(t, "1", tags["attr::age::marker"])
	require.Equal(t, "41", tags["attr::age::value"])
}

func TestComputeTagsEmptyTaggedAttrsTagsNone(t *testing.T) {
	tags := ComputeTags(Input{
		Schema: testSchema(),
		Values: testValues(),
		Policy: &types.TagPolicy{TaggedAttrs: []string{}},
	})
	_, hasMarker := tags["attr::name::marker"]
	require.False(t, hasMarker)
	_, hasValue := tags["attr::age::value"]
	require.False(t, hasValue)
}

func TestComputeTagsSelectsNamedAttrsOnly(t *testing.T) {
	tags := ComputeTags(Input{
		Schema: testSchema(),
		Values: testValues(),
		Policy: &types.TagPolicy{TaggedAttrs: []string{"  Age  "}},
	})
	_, hasName := tags["attr::name::marker"]
	require.False(t, hasName)
	require.Equal(t, "1", tags["attr::age::marker"])
	require.Equal(t, "41", tags["attr::age::value"])
}

func TestNormalizePolicyLowercasesAndStrips(t *testing.T) {
	out := NormalizePolicy([]string{" Name ", "AGE"})
	require.Equal(t, []string{"name", "age"}, out)

	require.Nil(t, NormalizePolicy(nil))
}
