package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/ecotrack-accounts/internal/core/domain"
	"github.com/arklim/ecotrack-accounts/internal/core/port"
	appLogger "github.com/arklim/ecotrack-accounts/internal/infra/logger"
	"github.com/arklim/ecotrack-accounts/internal/infra/telemetry"
	"github.com/arklim/ecotrack-accounts/internal/repository"
)

// Operation names used in logs, metrics and inconsistency events.
const (
	OperationRegister          = "register"
	OperationLogin             = "login"
	OperationUpdateProfile     = "update_profile"
	OperationUpdateEmail       = "update_email"
	OperationUpdatePassword    = "update_password"
	OperationUpdatePreferences = "update_preferences"
	OperationDeleteAccount     = "delete_account"
)

const (
	defaultCollection = "users"
	tracerName        = "github.com/arklim/ecotrack-accounts/internal/usecase"
	fieldIdentifier   = "identifier"
)

// CompensationPolicy bounds the retries of a compensating action. Forward steps are
// never retried.
type CompensationPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Timeout         time.Duration
}

func DefaultCompensationPolicy() CompensationPolicy {
	return CompensationPolicy{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Timeout:         10 * time.Second,
	}
}

// RegisterInput carries the fields required to open an account.
type RegisterInput struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      string
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token    string
	UserID   string
	Username string
	Email    string
}

// ProfileUpdate holds the fields changed by UpdateProfileInfo. An empty Location clears it.
type ProfileUpdate struct {
	FirstName string
	LastName  string
	Location  string
}

// AccountService keeps the identity provider and the document store in step. Every
// operation that writes both systems undoes its first write when the second fails;
// when the undo fails too the caller gets an *InconsistentStateError.
type AccountService struct {
	identity     port.IdentityProvider
	store        port.DocumentStore
	credentials  *CredentialManager
	events       port.EventPublisher
	metrics      *telemetry.AccountMetrics
	logger       *zap.Logger
	tracer       trace.Tracer
	collection   string
	compensation CompensationPolicy
	now          func() time.Time
}

// AccountServiceOption customises an AccountService.
type AccountServiceOption func(*AccountService)

func WithCollection(name string) AccountServiceOption {
	return func(s *AccountService) {
		if name = strings.TrimSpace(name); name != "" {
			s.collection = name
		}
	}
}

func WithCompensationPolicy(policy CompensationPolicy) AccountServiceOption {
	return func(s *AccountService) {
		s.compensation = policy
	}
}

func WithEventPublisher(events port.EventPublisher) AccountServiceOption {
	return func(s *AccountService) {
		s.events = events
	}
}

func WithAccountMetrics(metrics *telemetry.AccountMetrics) AccountServiceOption {
	return func(s *AccountService) {
		s.metrics = metrics
	}
}

// WithClock overrides the clock used for createdAt and event timestamps.
func WithClock(now func() time.Time) AccountServiceOption {
	return func(s *AccountService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewAccountService(identity port.IdentityProvider, store port.DocumentStore, credentials *CredentialManager, logger *zap.Logger, opts ...AccountServiceOption) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AccountService{
		identity:     identity,
		store:        store,
		credentials:  credentials,
		logger:       logger,
		tracer:       otel.Tracer(tracerName),
		collection:   defaultCollection,
		compensation: DefaultCompensationPolicy(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.compensation.MaxAttempts == 0 {
		s.compensation.MaxAttempts = 1
	}
	if s.compensation.Timeout <= 0 {
		s.compensation.Timeout = DefaultCompensationPolicy().Timeout
	}
	return s
}

// Register creates the identity first and mirrors it into the store. A failed store
// write deletes the new identity again.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (id string, err error) {
	ctx, span := s.tracer.Start(ctx, "AccountService.Register")
	defer func() { s.finish(span, OperationRegister, err) }()

	in = normalizeRegisterInput(in)
	if err := validateRegisterInput(in); err != nil {
		return "", err
	}
	if err := s.credentials.ValidatePassword(in.Password, in.Username, in.Email); err != nil {
		return "", err
	}

	hash, err := s.credentials.Hash(in.Password)
	if err != nil {
		return "", err
	}

	id, err = s.identity.CreateIdentity(ctx, in.Email, in.Password, in.Username)
	if err != nil {
		return "", fmt.Errorf("%w: create identity: %w", ErrIdentityProvider, err)
	}
	span.SetAttributes(attribute.String("account.id", id))

	account := domain.Account{
		ID:           id,
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Role:         in.Role,
		CreatedAt:    s.now().UTC(),
		PasswordHash: hash,
		Preferences:  domain.DefaultPreferences(),
	}

	if err := s.store.Put(ctx, s.collection, id, account.ToDocument()); err != nil {
		cause := fmt.Errorf("%w: put %s/%s: %w", ErrStoreWrite, s.collection, id, err)
		return "", s.compensate(ctx, OperationRegister, id, cause, func(ctx context.Context) error {
			err := s.identity.DeleteIdentity(ctx, id)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		})
	}

	s.log(ctx).Info("account registered",
		zap.String("account_id", id),
		zap.String("email", appLogger.MaskEmail(in.Email)),
	)

	if s.events != nil {
		event := domain.AccountRegisteredEvent{
			EventID:      uuid.NewString(),
			AccountID:    id,
			Username:     account.Username,
			Email:        account.Email,
			Role:         account.Role,
			RegisteredAt: account.CreatedAt,
		}
		s.published(ctx, OperationRegister, id, s.events.PublishAccountRegistered(ctx, event))
	}
	return id, nil
}

// Login resolves identifier as an email first and as a username second.
func (s *AccountService) Login(ctx context.Context, identifier, password string) (result *LoginResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AccountService.Login")
	defer func() { s.finish(span, OperationLogin, err) }()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, requiredField(fieldIdentifier)
	}
	if password == "" {
		return nil, requiredField(domain.FieldPassword)
	}

	account, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	span.SetAttributes(attribute.String("account.id", account.ID))

	ok, err := s.credentials.Verify(password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("login %s: %w", account.ID, err)
	}
	if !ok {
		s.log(ctx).Info("login rejected",
			zap.String("account_id", account.ID),
			zap.String("identifier", appLogger.MaskIdentifier(identifier)),
		)
		return nil, ErrInvalidCredentials
	}

	token, err := s.credentials.IssueToken(*account)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:    token,
		UserID:   account.ID,
		Username: account.Username,
		Email:    account.Email,
	}, nil
}

// GetByID returns nil, nil when no record exists.
func (s *AccountService) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	ctx, span := s.tracer.Start(ctx, "AccountService.GetByID")
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, requiredField(domain.FieldUserID)
	}

	doc, err := s.store.Get(ctx, s.collection, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "get account")
		return nil, fmt.Errorf("%w: get %s/%s: %w", ErrStoreRead, s.collection, id, err)
	}
	return s.decode(id, doc)
}

// GetProfile is GetByID without credential material.
func (s *AccountService) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	account, err := s.GetByID(ctx, id)
	if err != nil || account == nil {
		return nil, err
	}
	profile := account.Profile()
	return &profile, nil
}

// UpdateProfileInfo writes firstName, lastName and location to the store only.
func (s *AccountService) UpdateProfileInfo(ctx context.Context, id string, update ProfileUpdate) (err error) {
	ctx, span := s.tracer.Start(ctx, "AccountService.UpdateProfileInfo")
	defer func() { s.finish(span, OperationUpdateProfile, err) }()

	id = strings.TrimSpace(id)
	update.FirstName = strings.TrimSpace(update.FirstName)
	update.LastName = strings.TrimSpace(update.LastName)
	update.Location = strings.TrimSpace(update.Location)
	switch {
	case id == "":
		return requiredField(domain.FieldUserID)
	case update.FirstName == "":
		return requiredField(domain.FieldFirstName)
	case update.LastName == "":
		return requiredField(domain.FieldLastName)
	}

	return s.updateStore(ctx, id, port.Document{
		domain.FieldFirstName: update.FirstName,
		domain.FieldLastName:  update.LastName,
		domain.FieldLocation:  update.Location,
	})
}

// UpdateEmail changes the provider email first. A failed store write restores the
// previous email at the provider.
func (s *AccountService) UpdateEmail(ctx context.Context, id, newEmail string) (err error) {
	ctx, span := s.tracer.Start(ctx, "AccountService.UpdateEmail")
	defer func() { s.finish(span, OperationUpdateEmail, err) }()

	id = strings.TrimSpace(id)
	newEmail = strings.TrimSpace(newEmail)
	if id == "" {
		return requiredField(domain.FieldUserID)
	}
	if err := validateEmail(newEmail); err != nil {
		return err
	}

	account, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}
	oldEmail := account.Email
	if oldEmail == newEmail {
		return nil
	}

	if err := s.identity.UpdateIdentity(ctx, id, port.IdentityUpdate{Email: &newEmail}); err != nil {
		return fmt.Errorf("%w: update identity email: %w", ErrIdentityProvider, err)
	}

	if err := s.store.Update(ctx, s.collection, id, port.Document{domain.FieldEmail: newEmail}); err != nil {
		cause := fmt.Errorf("%w: update %s/%s: %w", ErrStoreWrite, s.collection, id, err)
		return s.compensate(ctx, OperationUpdateEmail, id, cause, func(ctx context.Context) error {
			return s.identity.UpdateIdentity(ctx, id, port.IdentityUpdate{Email: &oldEmail})
		})
	}

	s.log(ctx).Info("account email changed",
		zap.String("account_id", id),
		zap.String("email", appLogger.MaskEmail(newEmail)),
	)

	if s.events != nil {
		event := domain.AccountEmailChangedEvent{
			EventID:   uuid.NewString(),
			AccountID: id,
			OldEmail:  oldEmail,
			NewEmail:  newEmail,
			ChangedAt: s.now().UTC(),
		}
		s.published(ctx, OperationUpdateEmail, id, s.events.PublishAccountEmailChanged(ctx, event))
	}
	return nil
}

// UpdatePassword verifies oldPassword against the stored digest before touching either
// system. A failed store write restores oldPassword at the provider.
func (s *AccountService) UpdatePassword(ctx context.Context, id, oldPassword, newPassword string) (err error) {
	ctx, span := s.tracer.Start(ctx, "AccountService.UpdatePassword")
	defer func() { s.finish(span, OperationUpdatePassword, err) }()

	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return requiredField(domain.FieldUserID)
	case oldPassword == "":
		return requiredField("oldPassword")
	case newPassword == "":
		return requiredField("newPassword")
	}

	account, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}

	ok, err := s.credentials.Verify(oldPassword, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("update password %s: %w", id, err)
	}
	if !ok {
		return ErrInvalidCredentials
	}
	if err := s.credentials.ValidatePasswordChange(oldPassword, newPassword, account.Username, account.Email); err != nil {
		return err
	}

	hash, err := s.credentials.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.identity.UpdateIdentity(ctx, id, port.IdentityUpdate{Password: &newPassword}); err != nil {
		return fmt.Errorf("%w: update identity password: %w", ErrIdentityProvider, err)
	}

	if err := s.store.Update(ctx, s.collection, id, port.Document{domain.FieldPassword: hash}); err != nil {
		cause := fmt.Errorf("%w: update %s/%s: %w", ErrStoreWrite, s.collection, id, err)
		return s.compensate(ctx, OperationUpdatePassword, id, cause, func(ctx context.Context) error {
			return s.identity.UpdateIdentity(ctx, id, port.IdentityUpdate{Password: &oldPassword})
		})
	}

	s.log(ctx).Info("account password changed", zap.String("account_id", id))

	if s.events != nil {
		event := domain.AccountPasswordChangedEvent{
			EventID:   uuid.NewString(),
			AccountID: id,
			ChangedAt: s.now().UTC(),
		}
		s.published(ctx, OperationUpdatePassword, id, s.events.PublishAccountPasswordChanged(ctx, event))
	}
	return nil
}

// UpdatePreferences replaces the stored preference set as a whole.
func (s *AccountService) UpdatePreferences(ctx context.Context, id string, prefs domain.Preferences) (err error) {
	ctx, span := s.tracer.Start(ctx, "AccountService.UpdatePreferences")
	defer func() { s.finish(span, OperationUpdatePreferences, err) }()

	id = strings.TrimSpace(id)
	if id == "" {
		return requiredField(domain.FieldUserID)
	}
	if prefs == nil {
		return requiredField(domain.FieldPreferences)
	}

	return s.updateStore(ctx, id, port.Document{
		domain.FieldPreferences: map[string]any(prefs.Clone()),
	})
}

// DeleteAccount removes the store record first, then the identity. A failed identity
// delete puts the record back.
func (s *AccountService) DeleteAccount(ctx context.Context, id string) (err error) {
	ctx, span := s.tracer.Start(ctx, "AccountService.DeleteAccount")
	defer func() { s.finish(span, OperationDeleteAccount, err) }()

	id = strings.TrimSpace(id)
	if id == "" {
		return requiredField(domain.FieldUserID)
	}

	snapshot, err := s.store.Get(ctx, s.collection, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		snapshot = nil
	case err != nil:
		return fmt.Errorf("%w: get %s/%s: %w", ErrStoreRead, s.collection, id, err)
	}

	if snapshot != nil {
		if err := s.store.Delete(ctx, s.collection, id); err != nil {
			return fmt.Errorf("%w: delete %s/%s: %w", ErrStoreWrite, s.collection, id, err)
		}
	}

	if err := s.identity.DeleteIdentity(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound) && snapshot == nil:
			return ErrAccountNotFound
		case errors.Is(err, repository.ErrNotFound):
			s.log(ctx).Warn("identity already absent while deleting account", zap.String("account_id", id))
		case snapshot == nil:
			return fmt.Errorf("%w: delete identity: %w", ErrIdentityProvider, err)
		default:
			cause := fmt.Errorf("%w: delete identity: %w", ErrIdentityProvider, err)
			return s.compensate(ctx, OperationDeleteAccount, id, cause, func(ctx context.Context) error {
				return s.store.Put(ctx, s.collection, id, snapshot)
			})
		}
	}

	if snapshot == nil {
		s.log(ctx).Warn("deleted identity without a mirrored record", zap.String("account_id", id))
	}
	s.log(ctx).Info("account deleted", zap.String("account_id", id))

	if s.events != nil {
		event := domain.AccountDeletedEvent{
			EventID:   uuid.NewString(),
			AccountID: id,
			DeletedAt: s.now().UTC(),
		}
		s.published(ctx, OperationDeleteAccount, id, s.events.PublishAccountDeleted(ctx, event))
	}
	return nil
}

func (s *AccountService) updateStore(ctx context.Context, id string, fields port.Document) error {
	if err := s.store.Update(ctx, s.collection, id, fields); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: update %s/%s: %w", ErrStoreWrite, s.collection, id, err)
	}
	return nil
}

func (s *AccountService) findByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	for _, field := range []string{domain.FieldEmail, domain.FieldUsername} {
		docs, err := s.store.Query(ctx, s.collection, field, identifier, 1)
		if err != nil {
			return nil, fmt.Errorf("%w: query %s by %s: %w", ErrStoreRead, s.collection, field, err)
		}
		if len(docs) > 0 {
			return s.decode("", docs[0])
		}
	}
	return nil, nil
}

func (s *AccountService) decode(id string, doc port.Document) (*domain.Account, error) {
	account, err := domain.AccountFromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: decode account %s: %w", ErrStoreRead, id, err)
	}
	if account.ID == "" {
		account.ID = id
	}
	return &account, nil
}

// compensate runs undo with bounded retries on a context detached from the caller's
// cancellation. It returns cause when undo succeeds and an *InconsistentStateError
// otherwise.
func (s *AccountService) compensate(ctx context.Context, operation, id string, cause error, undo func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensation.Timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "AccountService.compensate",
		trace.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("account.id", id),
		),
	)
	defer span.End()

	log := s.log(ctx).With(zap.String("operation", operation), zap.String("account_id", id))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.compensation.InitialInterval
	b.MaxInterval = s.compensation.MaxInterval
	b.Reset()

	_, compErr := backoff.Retry(ctx, func() (struct{}, error) {
		err := undo(ctx)
		if errors.Is(err, repository.ErrNotFound) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.compensation.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("compensating action failed, retrying", zap.Duration("retry_in", next), zap.Error(err))
		}),
	)

	if compErr == nil {
		s.metrics.ObserveCompensation(operation, true)
		log.Warn("partial write rolled back", zap.Error(cause))
		return cause
	}

	s.metrics.ObserveCompensation(operation, false)
	span.RecordError(compErr)
	span.SetStatus(codes.Error, "compensation failed")

	inconsistent := &InconsistentStateError{
		Operation:       operation,
		AccountID:       id,
		Err:             cause,
		CompensationErr: compErr,
	}
	s.reportInconsistent(ctx, log, inconsistent)
	return inconsistent
}

func (s *AccountService) reportInconsistent(ctx context.Context, log *zap.Logger, e *InconsistentStateError) {
	s.metrics.ObserveInconsistent(e.Operation)
	log.Error("identity provider and document store diverged; manual reconciliation required",
		zap.NamedError("cause", e.Err),
		zap.NamedError("compensation_error", e.CompensationErr),
	)

	if s.events == nil {
		return
	}
	event := domain.AccountInconsistentEvent{
		EventID:         uuid.NewString(),
		AccountID:       e.AccountID,
		Operation:       e.Operation,
		Cause:           e.Err.Error(),
		CompensationErr: e.CompensationErr.Error(),
		DetectedAt:      s.now().UTC(),
	}
	if err := s.events.PublishAccountInconsistent(ctx, event); err != nil {
		log.Error("failed to publish inconsistency event", zap.Error(err))
	}
}

// published logs a failed event publish. Events are best effort and never fail the
// operation that produced them.
func (s *AccountService) published(ctx context.Context, operation, id string, err error) {
	if err == nil {
		return
	}
	s.log(ctx).Warn("failed to publish account event",
		zap.String("operation", operation),
		zap.String("account_id", id),
		zap.Error(err),
	)
}

func (s *AccountService) finish(span trace.Span, operation string, err error) {
	outcome := outcomeOf(err)
	s.metrics.ObserveOperation(operation, outcome)
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil && outcome != "validation" && outcome != "not_found" && outcome != "invalid_credentials" {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.End()
}

func (s *AccountService) log(ctx context.Context) *zap.Logger {
	if requestID := appLogger.RequestIDFromContext(ctx); requestID != "" {
		return s.logger.With(zap.String("request_id", requestID))
	}
	return s.logger
}

// outcomeOf classifies err into the label used by metrics and spans.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInconsistentState):
		return "inconsistent"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrIdentityProvider):
		return "identity_provider"
	case errors.Is(err, ErrStoreWrite), errors.Is(err, ErrStoreRead):
		return "store"
	default:
		return "error"
	}
}

func normalizeRegisterInput(in RegisterInput) RegisterInput {
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.Role = strings.TrimSpace(in.Role)
	return in
}

func validateRegisterInput(in RegisterInput) error {
	switch {
	case in.Username == "":
		return requiredField(domain.FieldUsername)
	case in.FirstName == "":
		return requiredField(domain.FieldFirstName)
	case in.LastName == "":
		return requiredField(domain.FieldLastName)
	case in.Email == "":
		return requiredField(domain.FieldEmail)
	case in.Password == "":
		return requiredField(domain.FieldPassword)
	case in.Role == "":
		return requiredField(domain.FieldRole)
	}
	return validateEmail(in.Email)
}

func validateEmail(email string) error {
	if email == "" {
		return requiredField(domain.FieldEmail)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: domain.FieldEmail, Message: "email is malformed"}
	}
	return nil
}
