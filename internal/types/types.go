// Package types holds the wire data model: the JSON shapes exchanged
// between prover, issuer and verifier. Every type here is plain data —
// orchestration lives in the sibling packages (prover, verifier, resolver,
// ...).
package types

import "encoding/json"

// AttrValue is a credential attribute's raw/encoded pair.
type AttrValue struct {
	Raw     string `json:"raw" bson:"raw"`
	Encoded string `json:"encoded" bson:"encoded"`
}

// Schema is the serialized shape of a schema. Schema publication/resolution
// is out of scope for this repository; it only consumes schemas by ID.
type Schema struct {
	ID         string   `json:"id"`
	Name       string   `json:"name" validate:"required"`
	Version    string   `json:"version" validate:"required"`
	IssuerDID  string   `json:"issuerDid" validate:"required"`
	AttrNames  []string `json:"attrNames" validate:"required"`
	SeqNo      int64    `json:"seqNo,omitempty"`
}

// CredDef is the serialized shape of a credential definition.
type CredDef struct {
	ID           string `json:"id"`
	SchemaID     string `json:"schemaId" validate:"required"`
	Tag          string `json:"tag"`
	Type         string `json:"type" validate:"required,eq=CL"`
	SupportsRevocation bool `json:"supportsRevocation"`
	Value        CredDefValue `json:"value"`
}

// CredDefValue carries the public key material for the CL scheme. The
// concrete crypto material lives in internal/clcrypto; this is its
// JSON-serializable envelope.
type CredDefValue struct {
	PublicKey json.RawMessage `json:"primary"`
}

// RevRegDef is the serialized shape of a revocation-registry definition.
type RevRegDef struct {
	ID         string `json:"id"`
	CredDefID  string `json:"credDefId" validate:"required"`
	Tag        string `json:"tag"`
	MaxCredNum int    `json:"maxCredNum" validate:"required,gt=0"`
	TailsHash  string `json:"tailsHash"`
	TailsLocation string `json:"tailsLocation"`
	Value      RevRegDefValue `json:"value"`
}

// RevRegDefValue carries the registry's public accumulator parameters (an
// RSA-style modulus and generator) that internal/revocation exponentiates
// against when building or refreshing witnesses.
type RevRegDefValue struct {
	AccumModulus   string `json:"accum_modulus"`
	AccumGenerator string `json:"accum_generator"`
}

// CredentialOffer is the issuer-signed blob announcing an offered
// credential.
type CredentialOffer struct {
	SchemaID             string `json:"schema_id" validate:"required"`
	CredDefID            string `json:"cred_def_id" validate:"required"`
	KeyCorrectnessProof  KeyCorrectnessProof `json:"key_correctness_proof"`
	Nonce                string `json:"nonce" validate:"required"`
	MethodName           string `json:"method_name,omitempty"`
}

// KeyCorrectnessProof proves the issuer's public key was generated honestly
// (produced by internal/clcrypto, opaque here).
type KeyCorrectnessProof struct {
	C  string `json:"c"`
	XZCap string `json:"xz_cap"`
	XRCap map[string]string `json:"xr_cap"`
}

// CredentialRequest is sent from prover to issuer.
type CredentialRequest struct {
	ProverDID                  string `json:"prover_did" validate:"required"`
	CredDefID                  string `json:"cred_def_id" validate:"required"`
	BlindedMS                  string `json:"blinded_ms" validate:"required"`
	BlindedMSCorrectnessProof  BlindedMSCorrectnessProof `json:"blinded_ms_correctness_proof"`
	Nonce                      string `json:"nonce" validate:"required"`
}

// BlindedMSCorrectnessProof proves the blinded link secret commitment was
// formed honestly.
type BlindedMSCorrectnessProof struct {
	C     string `json:"c"`
	VDashCap string `json:"v_dash_cap"`
	MSCap string `json:"ms_cap"`
}

// CredentialRequestMetadata is retained locally by the prover and never
// shared; it is required to unblind the issued credential.
type CredentialRequestMetadata struct {
	LinkSecretBlindingData string `json:"link_secret_blinding_data"`
	Nonce                  string `json:"nonce"`
	MasterSecretName       string `json:"master_secret_name"`
}

// Credential is the issuer-signed credential, before and after storage.
type Credential struct {
	SchemaID                  string               `json:"schema_id" validate:"required"`
	CredDefID                 string               `json:"cred_def_id" validate:"required"`
	RevRegID                  string               `json:"rev_reg_id,omitempty"`
	Values                    map[string]AttrValue `json:"values" validate:"required"`
	Signature                 CredentialSignature  `json:"signature"`
	SignatureCorrectnessProof SignatureCorrectnessProof `json:"signature_correctness_proof"`
	RevReg                    *RevRegState         `json:"rev_reg,omitempty"`
	Witness                   *Witness             `json:"witness,omitempty"`

	// Populated after storage.
	CredRevID *int64 `json:"cred_rev_id,omitempty"`
	Referent  string `json:"referent,omitempty"`
}

// CredentialSignature is the prover-unblinded CL signature.
type CredentialSignature struct {
	A string `json:"a"`
	E string `json:"e"`
	V string `json:"v"`
}

// SignatureCorrectnessProof proves the signature was formed with the
// claimed public key.
type SignatureCorrectnessProof struct {
	SE string `json:"se"`
	C  string `json:"c"`
}

// RevRegState is a point-in-time accumulator value.
type RevRegState struct {
	Accum string `json:"accum"`
}

// Witness is an accumulator non-membership/membership witness.
type Witness struct {
	OmegaDenom string `json:"omega"`
}

// TagPolicy is the per-cred-def attr-tag policy record. TaggedAttrs == nil
// means "tag every attribute"; an empty, non-nil slice means "tag none".
type TagPolicy struct {
	CredDefID   string   `json:"cred_def_id" bson:"_id"`
	TaggedAttrs []string `json:"tagged_attrs" bson:"tagged_attrs"`
}

// CredentialInfo is the store-facing, search-result view of a stored
// credential.
type CredentialInfo struct {
	Referent     string            `json:"referent"`
	SchemaID     string            `json:"schema_id"`
	CredDefID    string            `json:"cred_def_id"`
	RevRegID     string            `json:"rev_reg_id,omitempty"`
	Attrs        map[string]string `json:"attrs"`
	CredRevID    string            `json:"cred_rev_id,omitempty"`
}

// NonRevokedInterval is a [from, to] timestamp window.
type NonRevokedInterval struct {
	From *int64 `json:"from,omitempty"`
	To   *int64 `json:"to,omitempty"`
}

// AttrInfo is one requested-attribute referent in a proof request.
type AttrInfo struct {
	Name        string              `json:"name,omitempty"`
	Names       []string            `json:"names,omitempty"`
	Restrictions WQLQuery           `json:"restrictions,omitempty"`
	NonRevoked  *NonRevokedInterval `json:"non_revoked,omitempty"`
}

// PredType is a supported predicate comparison operator.
type PredType string

const (
	PredLT  PredType = "<"
	PredLE  PredType = "<="
	PredGT  PredType = ">"
	PredGE  PredType = ">="
)

// PredInfo is one requested-predicate referent in a proof request.
type PredInfo struct {
	Name         string              `json:"name" validate:"required"`
	PType        PredType            `json:"p_type" validate:"required,oneof=< <= > >="`
	PValue       int64               `json:"p_value"`
	Restrictions WQLQuery            `json:"restrictions,omitempty"`
	NonRevoked   *NonRevokedInterval `json:"non_revoked,omitempty"`
}

// WQLQuery is an opaque wallet-query-language expression, decoded lazily by
// internal/wql.
type WQLQuery = map[string]any

// ProofRequest is the verifier-issued request the prover must satisfy.
type ProofRequest struct {
	Name                 string              `json:"name" validate:"required"`
	Version              string              `json:"version" validate:"required"`
	Ver                  string              `json:"ver,omitempty"`
	Nonce                string              `json:"nonce" validate:"required"`
	RequestedAttributes  map[string]AttrInfo `json:"requested_attributes"`
	RequestedPredicates  map[string]PredInfo `json:"requested_predicates"`
	NonRevoked           *NonRevokedInterval `json:"non_revoked,omitempty"`
}

// VerFloat returns the proof request's protocol version, defaulting to
// "1.0" when unset.
func (p *ProofRequest) VerFloat() string {
	if p.Ver == "" {
		return "1.0"
	}
	return p.Ver
}

// RequestedAttribute is one attribute selection in a requested-credentials
// structure.
type RequestedAttribute struct {
	CredID    string `json:"cred_id" validate:"required"`
	Timestamp *int64 `json:"timestamp,omitempty"`
	Revealed  bool   `json:"revealed"`
}

// RequestedPredicate is one predicate selection in a requested-credentials
// structure.
type RequestedPredicate struct {
	CredID    string `json:"cred_id" validate:"required"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// RequestedCredentials is the prover's selection of which stored credential
// satisfies which proof-request referent.
type RequestedCredentials struct {
	SelfAttestedAttributes map[string]string              `json:"self_attested_attributes,omitempty"`
	RequestedAttributes    map[string]RequestedAttribute   `json:"requested_attributes"`
	RequestedPredicates    map[string]RequestedPredicate   `json:"requested_predicates"`
}

// RevocationState is a (rev_reg, witness, timestamp) snapshot.
type RevocationState struct {
	RevReg    RevRegState `json:"rev_reg"`
	Witness   Witness     `json:"witness"`
	Timestamp int64       `json:"timestamp"`
}

// Identifier binds one sub-proof to the public artifacts it was produced
// against.
type Identifier struct {
	SchemaID  string `json:"schema_id"`
	CredDefID string `json:"cred_def_id"`
	RevRegID  string `json:"rev_reg_id,omitempty"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// RevealedAttr is a disclosed attribute value plus the sub-proof that
// produced it.
type RevealedAttr struct {
	SubProofIndex int    `json:"sub_proof_index"`
	Raw           string `json:"raw"`
	Encoded       string `json:"encoded"`
}

// RevealedAttrGroup is a disclosed multi-name ("names") attribute group.
type RevealedAttrGroup struct {
	SubProofIndex int                  `json:"sub_proof_index"`
	Values        map[string]AttrValue `json:"values"`
}

// UnrevealedAttr records which sub-proof an unrevealed referent came from.
type UnrevealedAttr struct {
	SubProofIndex int `json:"sub_proof_index"`
}

// PredicateInfo records which sub-proof satisfies a predicate referent.
type PredicateInfo struct {
	SubProofIndex int `json:"sub_proof_index"`
}

// RequestedProof is the structured-disclosure half of a Proof.
type RequestedProof struct {
	RevealedAttrs      map[string]RevealedAttr      `json:"revealed_attrs"`
	RevealedAttrGroups map[string]RevealedAttrGroup `json:"revealed_attr_groups,omitempty"`
	UnrevealedAttrs    map[string]UnrevealedAttr    `json:"unrevealed_attrs"`
	SelfAttestedAttrs  map[string]string            `json:"self_attested_attrs"`
	Predicates         map[string]PredicateInfo     `json:"predicates"`
}

// Proof is the complete presentation handed to the verifier.
type Proof struct {
	RequestedProof RequestedProof `json:"requested_proof"`
	ProofData      ProofData      `json:"proof"`
	Identifiers    []Identifier   `json:"identifiers"`
}

// ProofData carries the cryptographic sub-proofs and their aggregated
// challenge/response (internal/clcrypto's output, opaque to everything but
// C3 and C8's final verification call).
type ProofData struct {
	Proofs          []SubProof      `json:"proofs"`
	AggregatedProof AggregatedProof `json:"aggregated_proof"`
}

// SubProof is one credential's zero-knowledge disclosure (and, where
// applicable, predicate) sub-proof.
type SubProof struct {
	PrimaryProof PrimaryProof `json:"primary_proof"`
	NonRevocProof *NonRevocProof `json:"non_revoc_proof,omitempty"`
}

// PrimaryProof is the CL-signature disclosure sub-proof for one credential.
type PrimaryProof struct {
	APrime           string            `json:"a_prime"`
	EHat             string            `json:"e_hat"`
	VHat             string            `json:"v_hat"`
	MSHat            string            `json:"ms_hat"`
	HiddenAttrHats   map[string]string `json:"hidden_attr_hats"`
	RevealedAttrs    map[string]AttrValue `json:"revealed_attrs"`
	Predicates       []PredicateProof  `json:"predicates,omitempty"`
}

// PredicateProof is one range-predicate sub-proof (bit-decomposition, see
// internal/clcrypto/predicate.go).
type PredicateProof struct {
	AttrName  string   `json:"attr_name"`
	PType     PredType `json:"p_type"`
	PValue    int64    `json:"p_value"`
	BitCommits []string `json:"bit_commits"`
	BitHats0   []string `json:"bit_hats0"`
	BitHats1   []string `json:"bit_hats1"`
	BitChallenges0 []string `json:"bit_challenges0"`
	SumHat    string   `json:"sum_hat"`
	TEq       string   `json:"t_eq"`
}

// NonRevocProof carries the non-revocation witness data for one sub-proof.
// CredRevID is carried in the clear rather than hidden behind a
// zero-knowledge membership proof, matching the static-accumulator
// simplification documented for internal/revocation: checking
// witness_hat^prime(CredRevID) == accum needs the verifier to know which
// prime to recompute against.
type NonRevocProof struct {
	RevRegID   string `json:"rev_reg_id"`
	Timestamp  int64  `json:"timestamp"`
	WitnessHat string `json:"witness_hat"`
	CredRevID  int64  `json:"cred_rev_id"`
}

// AggregatedProof is the shared Fiat-Shamir challenge and nonce binding all
// sub-proofs together into one non-interactive proof.
type AggregatedProof struct {
	CHash string   `json:"c_hash"`
	CList []string `json:"c_list"`
}
