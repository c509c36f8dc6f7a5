package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arklim/ecotrack-accounts/internal/core/port"
	"github.com/arklim/ecotrack-accounts/internal/repository"
)

const healthDocPath = "_health/ping"

// DocumentStore implements port.DocumentStore on Cloud Firestore.
type DocumentStore struct {
	client *firestore.Client
}

// NewDocumentStore wraps an initialised Firestore client.
func NewDocumentStore(client *firestore.Client) *DocumentStore {
	return &DocumentStore{client: client}
}

// Put writes the full document, replacing any previous content.
func (s *DocumentStore) Put(ctx context.Context, collection, id string, doc port.Document) error {
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, map[string]any(doc)); err != nil {
		return fmt.Errorf("set document: %w", classify(err))
	}
	return nil
}

// Get reads a document snapshot.
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (port.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", classify(err))
	}
	return port.Document(snap.Data()), nil
}

// Query runs an equality filter on one field.
func (s *DocumentStore) Query(ctx context.Context, collection, field string, value any, limit int) ([]port.Document, error) {
	q := s.client.Collection(collection).Where(field, "==", value)
	if limit > 0 {
		q = q.Limit(limit)
	}

	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", classify(err))
	}

	docs := make([]port.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, port.Document(snap.Data()))
	}
	return docs, nil
}

// Update replaces the listed top-level fields. Firestore rejects updates to missing documents.
func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields port.Document) error {
	if len(fields) == 0 {
		return nil
	}
	if _, err := s.client.Collection(collection).Doc(id).Update(ctx, fieldUpdates(fields)); err != nil {
		return fmt.Errorf("update document: %w", classify(err))
	}
	return nil
}

// Delete removes the document. Firestore treats deleting a missing document as success.
func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete document: %w", classify(err))
	}
	return nil
}

// Ping reads a sentinel document; NotFound still proves the backend answered.
func (s *DocumentStore) Ping(ctx context.Context) error {
	_, err := s.client.Doc(healthDocPath).Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("firestore ping: %w", err)
	}
	return nil
}

func fieldUpdates(fields port.Document) []firestore.Update {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	updates := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: fields[k]})
	}
	return updates
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return errors.Join(repository.ErrNotFound, err)
	}
	return err
}

var (
	_ port.DocumentStore = (*DocumentStore)(nil)
	_ port.HealthChecker = (*DocumentStore)(nil)
)
