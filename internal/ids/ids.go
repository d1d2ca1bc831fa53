// Package ids parses and validates schema, credential-definition and
// revocation-registry identifiers in both their qualified
// (DID-method-prefixed) and unqualified (legacy colon-separated) forms, and
// implements the to_unqualified rewrite applied to every legacy API
// response.
//
// Qualified identifiers follow the shape used by the indy-node/anoncreds
// object family: `did:indy:<namespace>:<did>/anoncreds/v0/<TYPE>/<parts...>`.
// Unqualified identifiers are the legacy sovrin-style colon form:
// `<did>:2:<name>:<version>` (schema), `<did>:3:CL:<seq>:<tag>` (cred def),
// `<did>:4:<cred_def_id>:CL_ACCUM:<tag>` (rev reg def).
package ids

import (
	"fmt"
	"strings"
)

// IsQualified reports whether id carries a did:-method qualifier.
func IsQualified(id string) bool {
	return strings.HasPrefix(id, "did:")
}

// ToUnqualified strips the method/namespace qualifier from a DID, schema id,
// cred-def id or rev-reg-def id. Input that is not qualified, or that
// doesn't parse as one of the recognized shapes, is returned unchanged —
// this function never errors.
func ToUnqualified(id string) string {
	if !IsQualified(id) {
		return id
	}

	rest := strings.TrimPrefix(id, "did:")
	parts := strings.SplitN(rest, ":", 3) // method, namespace, remainder
	if len(parts) < 3 {
		return id
	}
	remainder := parts[2]

	pathIdx := strings.Index(remainder, "/")
	if pathIdx < 0 {
		// bare qualified DID, e.g. did:indy:sovrin:NcYxiDXkpYi6ov5FcYDi1e
		return remainder
	}
	did := remainder[:pathIdx]
	segments := strings.Split(remainder[pathIdx+1:], "/")
	if len(segments) < 3 || segments[0] != "anoncreds" {
		return id
	}

	switch segments[2] {
	case "SCHEMA":
		if len(segments) != 5 {
			return id
		}
		return fmt.Sprintf("%s:2:%s:%s", did, segments[3], segments[4])
	case "CLAIM_DEF":
		if len(segments) != 5 {
			return id
		}
		return fmt.Sprintf("%s:3:CL:%s:%s", did, segments[3], segments[4])
	case "REV_REG_DEF":
		if len(segments) != 6 {
			return id
		}
		credDefID := fmt.Sprintf("%s:3:CL:%s:%s", did, segments[3], segments[4])
		return fmt.Sprintf("%s:4:%s:CL_ACCUM:%s", did, credDefID, segments[5])
	default:
		return id
	}
}

// SchemaParts decomposes a schema id (qualified or unqualified) into its
// issuer DID, name and version, by first reducing it to the legacy
// `<did>:2:<name>:<version>` colon form. Returns ok=false for an id that
// doesn't parse as a schema id in either form.
func SchemaParts(schemaID string) (issuerDID, name, version string, ok bool) {
	parts := strings.Split(ToUnqualified(schemaID), ":")
	if len(parts) != 4 || parts[1] != "2" {
		return "", "", "", false
	}
	return parts[0], parts[2], parts[3], true
}

// CredDefIssuerDID extracts the issuer DID leading a credential-definition
// id, by first reducing it to the legacy `<did>:3:CL:<seq>:<tag>` colon
// form and taking the segment before the first colon. Returns ok=false only
// when that form has no colon or an empty first segment; the remaining
// segments are not checked.
func CredDefIssuerDID(credDefID string) (issuerDID string, ok bool) {
	parts := strings.SplitN(ToUnqualified(credDefID), ":", 2)
	if len(parts) < 2 || parts[0] == "" {
		return "", false
	}
	return parts[0], true
}

// idFields is the vocabulary of object keys that to_unqualified rewrites
// when it encounters a JSON object.
var idFields = map[string]bool{
	"did":              true,
	"issuer_did":       true,
	"schema_id":        true,
	"schema_issuer_did": true,
	"cred_def_id":      true,
	"rev_reg_id":       true,
	"rev_reg_def_id":   true,
	"id":               true,
}

// ToUnqualifiedValue applies ToUnqualified recursively over an arbitrary
// decoded JSON value (the result of json.Unmarshal into `any`): a bare
// string is rewritten directly; an object has every recognized id field
// rewritten in place; unrecognized fields, arrays and scalars are preserved
// verbatim.
func ToUnqualifiedValue(v any) any {
	switch t := v.(type) {
	case string:
		return ToUnqualified(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if idFields[k] {
				if s, ok := val.(string); ok {
					out[k] = ToUnqualified(s)
					continue
				}
			}
			if nested, ok := val.(map[string]any); ok {
				out[k] = ToUnqualifiedValue(nested)
				continue
			}
			if arr, ok := val.([]any); ok {
				rewritten := make([]any, len(arr))
				for i, item := range arr {
					rewritten[i] = ToUnqualifiedValue(item)
				}
				out[k] = rewritten
				continue
			}
			out[k] = val
		}
		return out
	default:
		return v
	}
}
