package port

import "context"

// Document is a schemaless record keyed by top-level field names.
type Document map[string]any

// DocumentStore exposes the hosted document database holding mirrored account records.
type DocumentStore interface {
	// Put upserts the document and waits for acknowledgement.
	Put(ctx context.Context, collection, id string, doc Document) error
	// Get returns repository.ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Query returns at most limit documents whose field equals value. Ordering is unspecified.
	Query(ctx context.Context, collection, field string, value any, limit int) ([]Document, error)
	// Update overwrites the listed top-level fields only.
	Update(ctx context.Context, collection, id string, fields Document) error
	Delete(ctx context.Context, collection, id string) error
}

// HealthChecker is implemented by stores that can report readiness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
