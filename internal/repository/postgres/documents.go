package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arklim/ecotrack-accounts/internal/core/port"
	"github.com/arklim/ecotrack-accounts/internal/repository"
)

const documentsTable = "documents"

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// DocumentStore implements port.DocumentStore on a single JSONB table keyed by
// (collection, id).
type DocumentStore struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewDocumentStore wires a PostgreSQL-backed document store.
func NewDocumentStore(exec pgExecutor) *DocumentStore {
	return &DocumentStore{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
	}
}

// Put upserts the whole document.
func (s *DocumentStore) Put(ctx context.Context, collection, id string, doc port.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	now := s.now().UTC()

	stmt, args, err := s.builder.Insert(documentsTable).
		Columns("collection", "id", "data", "created_at", "updated_at").
		Values(collection, id, data, now, now).
		Suffix("ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert document sql: %w", err)
	}

	if _, err := s.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// Get loads a document by id.
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (port.Document, error) {
	stmt, args, err := s.builder.Select("data").
		From(documentsTable).
		Where(squirrel.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select document sql: %w", err)
	}

	var raw []byte
	if err := s.exec.QueryRow(ctx, stmt, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select document: %w", err)
	}

	return decodeDocument(raw)
}

// Query matches documents whose top-level field equals value using JSONB containment.
func (s *DocumentStore) Query(ctx context.Context, collection, field string, value any, limit int) ([]port.Document, error) {
	filter, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}

	query := s.builder.Select("data").
		From(documentsTable).
		Where(squirrel.Eq{"collection": collection}).
		Where(squirrel.Expr("data @> ?", filter)).
		OrderBy("created_at", "id")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query documents sql: %w", err)
	}

	rows, err := s.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []port.Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// Update overwrites the supplied top-level fields. Nested values are replaced, not merged.
func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields port.Document) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}

	stmt, args, err := s.builder.Update(documentsTable).
		Set("data", squirrel.Expr("data || ?", patch)).
		Set("updated_at", s.now().UTC()).
		Where(squirrel.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update document sql: %w", err)
	}

	tag, err := s.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes the document. Deleting a missing document is not an error.
func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	stmt, args, err := s.builder.Delete(documentsTable).
		Where(squirrel.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete document sql: %w", err)
	}

	if _, err := s.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Ping reports database reachability.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.exec.Ping(ctx)
}

func decodeDocument(raw []byte) (port.Document, error) {
	var doc port.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

var (
	_ port.DocumentStore = (*DocumentStore)(nil)
	_ port.HealthChecker = (*DocumentStore)(nil)
)
