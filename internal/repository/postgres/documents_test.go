package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/ecotrack-accounts/internal/core/port"
	"github.com/arklim/ecotrack-accounts/internal/repository"
)

func newMockStore(t *testing.T) (*DocumentStore, pgxmock.PgxPoolIface, time.Time) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	now := time.Date(2025, 4, 22, 9, 30, 0, 0, time.UTC)
	store := NewDocumentStore(mock)
	store.now = func() time.Time { return now }
	return store, mock, now
}

func TestDocumentStore_Put(t *testing.T) {
	store, mock, now := newMockStore(t)

	mock.ExpectExec(`INSERT INTO documents \(collection,id,data,created_at,updated_at\) VALUES \(\$1,\$2,\$3,\$4,\$5\) ON CONFLICT \(collection, id\) DO UPDATE`).
		WithArgs("users", "u1", []byte(`{"email":"a@x.com","username":"alice"}`), now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.Put(context.Background(), "users", "u1", port.Document{"username": "alice", "email": "a@x.com"})
	if err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDocumentStore_Get(t *testing.T) {
	store, mock, _ := newMockStore(t)

	rows := pgxmock.NewRows([]string{"data"}).
		AddRow([]byte(`{"userId":"u1","preferences":{"units":"metric"}}`))
	mock.ExpectQuery(`SELECT data FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs("users", "u1").
		WillReturnRows(rows)

	doc, err := store.Get(context.Background(), "users", "u1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if doc["userId"] != "u1" {
		t.Fatalf("unexpected userId: %v", doc["userId"])
	}
	prefs, ok := doc["preferences"].(map[string]any)
	if !ok || prefs["units"] != "metric" {
		t.Fatalf("unexpected preferences: %#v", doc["preferences"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDocumentStore_GetNotFound(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectQuery(`SELECT data FROM documents`).
		WithArgs("users", "missing").
		WillReturnRows(pgxmock.NewRows([]string{"data"}))

	_, err := store.Get(context.Background(), "users", "missing")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentStore_Query(t *testing.T) {
	store, mock, _ := newMockStore(t)

	rows := pgxmock.NewRows([]string{"data"}).
		AddRow([]byte(`{"userId":"u1","email":"a@x.com"}`))
	mock.ExpectQuery(`SELECT data FROM documents WHERE collection = \$1 AND data @> \$2 ORDER BY created_at, id LIMIT 1`).
		WithArgs("users", []byte(`{"email":"a@x.com"}`)).
		WillReturnRows(rows)

	docs, err := store.Query(context.Background(), "users", "email", "a@x.com", 1)
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(docs) != 1 || docs[0]["userId"] != "u1" {
		t.Fatalf("unexpected documents: %#v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDocumentStore_UpdateMergesTopLevelFields(t *testing.T) {
	store, mock, now := newMockStore(t)

	mock.ExpectExec(`UPDATE documents SET data = data \|\| \$1, updated_at = \$2 WHERE collection = \$3 AND id = \$4`).
		WithArgs([]byte(`{"preferences":{"notifications":false}}`), now, "users", "u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.Update(context.Background(), "users", "u1", port.Document{
		"preferences": map[string]any{"notifications": false},
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDocumentStore_UpdateMissingDocument(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectExec(`UPDATE documents`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "users", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.Update(context.Background(), "users", "missing", port.Document{"email": "b@x.com"})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentStore_Delete(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectExec(`DELETE FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs("users", "u1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := store.Delete(context.Background(), "users", "u1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDocumentStore_PutPropagatesErrors(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	if err := store.Put(context.Background(), "users", "u1", port.Document{}); err == nil {
		t.Fatal("expected error from failing exec")
	}
}
