// Package store defines the persistence contract this repository treats as
// an external collaborator (link secrets, stored credentials and their tag
// index, tag-policy records), plus two implementations: an in-memory
// reference store for tests and the demo server, and MongoStore (mongo.go),
// backed by a MongoDB database. Outside tests, only cmd/anoncreds picks a
// concrete implementation; every other package depends on the Store
// interface.
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"anoncreds/internal/types"
	"anoncreds/pkg/helpers"
)

// LinkSecretRecord is the persisted form of one prover link secret. The
// value itself is kept in cleartext decimal — protecting it at rest is a
// deployment concern of the concrete Store, not this repository's.
type LinkSecretRecord struct {
	ID    string `bson:"_id" json:"id"`
	Value string `bson:"value" json:"value"`
}

// StoredCredential is the persisted form of one credential plus its
// derived tag map, the secondary index every search runs against.
type StoredCredential struct {
	ID                        string                          `bson:"_id" json:"referent"`
	SchemaID                  string                          `bson:"schema_id" json:"schema_id"`
	CredDefID                 string                          `bson:"cred_def_id" json:"cred_def_id"`
	RevRegID                  string                          `bson:"rev_reg_id,omitempty" json:"rev_reg_id,omitempty"`
	Values                    map[string]types.AttrValue      `bson:"values" json:"values"`
	Signature                 types.CredentialSignature       `bson:"signature" json:"signature"`
	SignatureCorrectnessProof types.SignatureCorrectnessProof `bson:"signature_correctness_proof" json:"signature_correctness_proof"`
	RevReg                    *types.RevRegState              `bson:"rev_reg,omitempty" json:"rev_reg,omitempty"`
	Witness                   *types.Witness                  `bson:"witness,omitempty" json:"witness,omitempty"`
	CredRevID                 *int64                          `bson:"cred_rev_id,omitempty" json:"cred_rev_id,omitempty"`
	Metadata                  string                          `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Tags                      map[string]string               `bson:"tags" json:"tags"`
}

// Info projects a StoredCredential down to the search-result view handed
// back across the command surface.
func (c StoredCredential) Info() types.CredentialInfo {
	attrs := make(map[string]string, len(c.Values))
	for name, v := range c.Values {
		attrs[name] = v.Raw
	}
	info := types.CredentialInfo{
		Referent:  c.ID,
		SchemaID:  c.SchemaID,
		CredDefID: c.CredDefID,
		RevRegID:  c.RevRegID,
		Attrs:     attrs,
	}
	if c.CredRevID != nil {
		info.CredRevID = itoa64(*c.CredRevID)
	}
	return info
}

func itoa64(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Store is the persistence contract internal/prover relies on. Every
// method blocks on I/O in a real deployment, hence the context parameter.
type Store interface {
	SaveLinkSecret(ctx context.Context, rec LinkSecretRecord) (string, error)
	GetLinkSecret(ctx context.Context, id string) (LinkSecretRecord, error)

	SaveCredential(ctx context.Context, cred StoredCredential) (string, error)
	GetCredential(ctx context.Context, id string) (StoredCredential, error)
	DeleteCredential(ctx context.Context, id string) error
	AllCredentials(ctx context.Context) ([]StoredCredential, error)
	UpdateCredentialTags(ctx context.Context, id string, tags map[string]string) error

	SaveTagPolicy(ctx context.Context, policy types.TagPolicy) error
	GetTagPolicy(ctx context.Context, credDefID string) (types.TagPolicy, bool, error)
}

// MemoryStore is an in-process Store, one mutex-guarded map per record
// kind. Grounded on the generic Entry/Repository pattern used for
// short-lived records elsewhere in the pack, specialized here per record
// type since each carries its own identity and lookup rules.
type MemoryStore struct {
	mu          sync.Mutex
	linkSecrets map[string]LinkSecretRecord
	credentials map[string]StoredCredential
	tagPolicies map[string]types.TagPolicy
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		linkSecrets: make(map[string]LinkSecretRecord),
		credentials: make(map[string]StoredCredential),
		tagPolicies: make(map[string]types.TagPolicy),
	}
}

func (s *MemoryStore) SaveLinkSecret(_ context.Context, rec LinkSecretRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if _, exists := s.linkSecrets[rec.ID]; exists {
		return "", helpers.ErrMasterSecretDuplicate
	}
	s.linkSecrets[rec.ID] = rec
	return rec.ID, nil
}

func (s *MemoryStore) GetLinkSecret(_ context.Context, id string) (LinkSecretRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.linkSecrets[id]
	if !ok {
		return LinkSecretRecord{}, helpers.ErrMasterSecretNotFound
	}
	return rec, nil
}

func (s *MemoryStore) SaveCredential(_ context.Context, cred StoredCredential) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}
	if _, exists := s.credentials[cred.ID]; exists {
		return "", helpers.ErrCredentialDuplicate
	}
	s.credentials[cred.ID] = cred
	return cred.ID, nil
}

func (s *MemoryStore) GetCredential(_ context.Context, id string) (StoredCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.credentials[id]
	if !ok {
		return StoredCredential{}, helpers.ErrCredentialNotFound
	}
	return cred, nil
}

func (s *MemoryStore) DeleteCredential(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credentials[id]; !ok {
		return helpers.ErrCredentialNotFound
	}
	delete(s.credentials, id)
	return nil
}

func (s *MemoryStore) AllCredentials(_ context.Context) ([]StoredCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StoredCredential, 0, len(s.credentials))
	for _, cred := range s.credentials {
		out = append(out, cred)
	}
	return out, nil
}

func (s *MemoryStore) UpdateCredentialTags(_ context.Context, id string, tags map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.credentials[id]
	if !ok {
		return helpers.ErrCredentialNotFound
	}
	cred.Tags = tags
	s.credentials[id] = cred
	return nil
}

func (s *MemoryStore) SaveTagPolicy(_ context.Context, policy types.TagPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tagPolicies[policy.CredDefID] = policy
	return nil
}

func (s *MemoryStore) GetTagPolicy(_ context.Context, credDefID string) (types.TagPolicy, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	policy, ok := s.tagPolicies[credDefID]
	return policy, ok, nil
}
