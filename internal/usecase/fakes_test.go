package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/arklim/ecotrack-accounts/internal/core/domain"
	"github.com/arklim/ecotrack-accounts/internal/core/port"
	"github.com/arklim/ecotrack-accounts/internal/infra/security"
	"github.com/arklim/ecotrack-accounts/internal/repository"
)

var testKeys = sync.OnceValues(func() (*security.StaticKeyProvider, error) {
	return security.NewEphemeralKeyProvider()
})

func newTestCredentials(t *testing.T) *CredentialManager {
	t.Helper()
	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2Hasher returned error: %v", err)
	}
	keys, err := testKeys()
	if err != nil {
		t.Fatalf("NewEphemeralKeyProvider returned error: %v", err)
	}
	issuer, err := security.NewTokenIssuer(keys, "ecotrack-accounts", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	return NewCredentialManager(hasher, issuer, security.NewPasswordPolicy(security.DefaultPasswordPolicyConfig()))
}

type identityRecord struct {
	email       string
	password    string
	displayName string
}

type fakeIdentityProvider struct {
	identities map[string]*identityRecord
	nextID     int

	createErr  error
	updateErr  error
	updateErrs []error
	deleteErr  error
	deleteErrs []error

	createCalls int
	updateCalls int
	deleteCalls int
}

func newFakeIdentityProvider() *fakeIdentityProvider {
	return &fakeIdentityProvider{identities: make(map[string]*identityRecord)}
}

func (f *fakeIdentityProvider) CreateIdentity(_ context.Context, email, password, displayName string) (string, error) {
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	for _, rec := range f.identities {
		if rec.email == email {
			return "", fmt.Errorf("email %s: %w", email, repository.ErrAlreadyExists)
		}
	}
	f.nextID++
	id := fmt.Sprintf("u%d", f.nextID)
	f.identities[id] = &identityRecord{email: email, password: password, displayName: displayName}
	return id, nil
}

func (f *fakeIdentityProvider) UpdateIdentity(ctx context.Context, id string, update port.IdentityUpdate) error {
	f.updateCalls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return err
		}
	} else if f.updateErr != nil {
		return f.updateErr
	}
	rec, ok := f.identities[id]
	if !ok {
		return repository.ErrNotFound
	}
	if update.Email != nil {
		rec.email = *update.Email
	}
	if update.Password != nil {
		rec.password = *update.Password
	}
	return nil
}

func (f *fakeIdentityProvider) DeleteIdentity(ctx context.Context, id string) error {
	f.deleteCalls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(f.deleteErrs) > 0 {
		err := f.deleteErrs[0]
		f.deleteErrs = f.deleteErrs[1:]
		if err != nil {
			return err
		}
	} else if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.identities[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.identities, id)
	return nil
}

type queryCall struct {
	field string
	value any
	limit int
}

type fakeDocumentStore struct {
	collections map[string]map[string]port.Document

	putErr    error
	getErr    error
	queryErr  error
	updateErr error
	deleteErr error

	putCalls    int
	updateCalls int
	queries     []queryCall
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{collections: make(map[string]map[string]port.Document)}
}

func (f *fakeDocumentStore) Put(ctx context.Context, collection, id string, doc port.Document) error {
	f.putCalls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.putErr != nil {
		return f.putErr
	}
	if f.collections[collection] == nil {
		f.collections[collection] = make(map[string]port.Document)
	}
	f.collections[collection][id] = cloneDocument(doc)
	return nil
}

func (f *fakeDocumentStore) Get(_ context.Context, collection, id string) (port.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	doc, ok := f.collections[collection][id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneDocument(doc), nil
}

func (f *fakeDocumentStore) Query(_ context.Context, collection, field string, value any, limit int) ([]port.Document, error) {
	f.queries = append(f.queries, queryCall{field: field, value: value, limit: limit})
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	ids := make([]string, 0, len(f.collections[collection]))
	for id := range f.collections[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []port.Document
	for _, id := range ids {
		doc := f.collections[collection][id]
		if doc[field] == value {
			out = append(out, cloneDocument(doc))
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeDocumentStore) Update(_ context.Context, collection, id string, fields port.Document) error {
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	doc, ok := f.collections[collection][id]
	if !ok {
		return repository.ErrNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (f *fakeDocumentStore) Delete(_ context.Context, collection, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.collections[collection], id)
	return nil
}

func (f *fakeDocumentStore) doc(id string) (port.Document, bool) {
	doc, ok := f.collections[defaultCollection][id]
	return doc, ok
}

func cloneDocument(doc port.Document) port.Document {
	out := make(port.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

type fakeEventPublisher struct {
	registered      []domain.AccountRegisteredEvent
	emailChanged    []domain.AccountEmailChangedEvent
	passwordChanged []domain.AccountPasswordChangedEvent
	deleted         []domain.AccountDeletedEvent
	inconsistent    []domain.AccountInconsistentEvent
	err             error
}

func (f *fakeEventPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	f.registered = append(f.registered, event)
	return f.err
}

func (f *fakeEventPublisher) PublishAccountEmailChanged(_ context.Context, event domain.AccountEmailChangedEvent) error {
	f.emailChanged = append(f.emailChanged, event)
	return f.err
}

func (f *fakeEventPublisher) PublishAccountPasswordChanged(_ context.Context, event domain.AccountPasswordChangedEvent) error {
	f.passwordChanged = append(f.passwordChanged, event)
	return f.err
}

func (f *fakeEventPublisher) PublishAccountDeleted(_ context.Context, event domain.AccountDeletedEvent) error {
	f.deleted = append(f.deleted, event)
	return f.err
}

func (f *fakeEventPublisher) PublishAccountInconsistent(_ context.Context, event domain.AccountInconsistentEvent) error {
	f.inconsistent = append(f.inconsistent, event)
	return f.err
}
