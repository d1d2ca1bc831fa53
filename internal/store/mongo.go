package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"anoncreds/internal/types"
	"anoncreds/pkg/helpers"
)

func newID() string {
	return uuid.New().String()
}

// MongoStore is a production Store backed by go.mongodb.org/mongo-driver,
// one collection per record kind in a single database. Grounded on the
// teacher's internal/persistent/db.Service connect/collection pattern:
// a single *mongo.Client shared across typed collection wrappers, each
// wrapper owning its own index setup.
type MongoStore struct {
	client      *mongo.Client
	linkSecrets *mongo.Collection
	credentials *mongo.Collection
	tagPolicies *mongo.Collection
}

// NewMongoStore connects to uri and prepares the anoncreds database's
// three collections, creating an index on the credentials' cred_def_id.
func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database("anoncreds")
	s := &MongoStore{
		client:      client,
		linkSecrets: db.Collection("link_secrets"),
		credentials: db.Collection("credentials"),
		tagPolicies: db.Collection("tag_policies"),
	}
	if _, err := s.credentials.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.M{"cred_def_id": 1},
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Close disconnects the underlying client. Mirrors the teacher's
// db.Service.Close shape so cmd/anoncreds can register it the same way
// as every other long-lived component.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) SaveLinkSecret(ctx context.Context, rec LinkSecretRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if _, err := s.linkSecrets.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", helpers.ErrMasterSecretDuplicate
		}
		return "", err
	}
	return rec.ID, nil
}

func (s *MongoStore) GetLinkSecret(ctx context.Context, id string) (LinkSecretRecord, error) {
	var rec LinkSecretRecord
	err := s.linkSecrets.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return LinkSecretRecord{}, helpers.ErrMasterSecretNotFound
	}
	if err != nil {
		return LinkSecretRecord{}, err
	}
	return rec, nil
}

func (s *MongoStore) SaveCredential(ctx context.Context, cred StoredCredential) (string, error) {
	if cred.ID == "" {
		cred.ID = newID()
	}
	if _, err := s.credentials.InsertOne(ctx, cred); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", helpers.ErrCredentialDuplicate
		}
		return "", err
	}
	return cred.ID, nil
}

func (s *MongoStore) GetCredential(ctx context.Context, id string) (StoredCredential, error) {
	var cred StoredCredential
	err := s.credentials.FindOne(ctx, bson.M{"_id": id}).Decode(&cred)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return StoredCredential{}, helpers.ErrCredentialNotFound
	}
	if err != nil {
		return StoredCredential{}, err
	}
	return cred, nil
}

func (s *MongoStore) DeleteCredential(ctx context.Context, id string) error {
	res, err := s.credentials.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return helpers.ErrCredentialNotFound
	}
	return nil
}

func (s *MongoStore) AllCredentials(ctx context.Context) ([]StoredCredential, error) {
	cur, err := s.credentials.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]StoredCredential, 0)
	for cur.Next(ctx) {
		var cred StoredCredential
		if err := cur.Decode(&cred); err != nil {
			return nil, err
		}
		out = append(out, cred)
	}
	return out, cur.Err()
}

func (s *MongoStore) UpdateCredentialTags(ctx context.Context, id string, tags map[string]string) error {
	res, err := s.credentials.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"tags": tags}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return helpers.ErrCredentialNotFound
	}
	return nil
}

func (s *MongoStore) SaveTagPolicy(ctx context.Context, policy types.TagPolicy) error {
	_, err := s.tagPolicies.UpdateOne(ctx,
		bson.M{"_id": policy.CredDefID},
		bson.M{"$set": policy},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) GetTagPolicy(ctx context.Context, credDefID string) (types.TagPolicy, bool, error) {
	var policy types.TagPolicy
	err := s.tagPolicies.FindOne(ctx, bson.M{"_id": credDefID}).Decode(&policy)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.TagPolicy{}, false, nil
	}
	if err != nil {
		return types.TagPolicy{}, false, err
	}
	return policy, true, nil
}
