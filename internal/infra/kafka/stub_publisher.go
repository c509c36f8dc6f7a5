package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/ecotrack-accounts/internal/core/domain"
	"github.com/arklim/ecotrack-accounts/internal/core/port"
	"github.com/arklim/ecotrack-accounts/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a log-only event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		append([]zap.Field{
			zap.String("event_type", eventType),
			zap.String("account_id", accountID),
			zap.Time("timestamp", at.UTC()),
		}, fields...)...,
	)
}

func (p *StubPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	p.logEvent(EventAccountRegistered, event.AccountID, event.RegisteredAt,
		zap.String("username", event.Username),
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("role", event.Role),
	)
	return nil
}

func (p *StubPublisher) PublishAccountEmailChanged(_ context.Context, event domain.AccountEmailChangedEvent) error {
	p.logEvent(EventAccountEmailChanged, event.AccountID, event.ChangedAt,
		zap.String("old_email", logger.MaskEmail(event.OldEmail)),
		zap.String("new_email", logger.MaskEmail(event.NewEmail)),
	)
	return nil
}

func (p *StubPublisher) PublishAccountPasswordChanged(_ context.Context, event domain.AccountPasswordChangedEvent) error {
	p.logEvent(EventAccountPasswordChanged, event.AccountID, event.ChangedAt)
	return nil
}

func (p *StubPublisher) PublishAccountDeleted(_ context.Context, event domain.AccountDeletedEvent) error {
	p.logEvent(EventAccountDeleted, event.AccountID, event.DeletedAt)
	return nil
}

func (p *StubPublisher) PublishAccountInconsistent(_ context.Context, event domain.AccountInconsistentEvent) error {
	p.logEvent(EventAccountInconsistent, event.AccountID, event.DetectedAt,
		zap.String("operation", event.Operation),
		zap.String("cause", event.Cause),
		zap.String("compensation_error", event.CompensationErr),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
