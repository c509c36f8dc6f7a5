package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/ecotrack-accounts/internal/core/domain"
	"github.com/arklim/ecotrack-accounts/internal/core/port"
	"github.com/arklim/ecotrack-accounts/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types published on the bus. The producer prefixes them with the topic prefix.
const (
	EventAccountRegistered      = "account.registered"
	EventAccountEmailChanged    = "account.email.changed"
	EventAccountPasswordChanged = "account.password.changed"
	EventAccountDeleted         = "account.deleted"
	EventAccountInconsistent    = "account.inconsistent"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	AccountID string            `json:"account_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	bytes, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		AccountID: accountID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(accountID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAccountRegistered publishes account.registered events.
func (p *EventPublisher) PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error {
	payload := struct {
		AccountID    string    `json:"account_id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		Role         string    `json:"role"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		AccountID:    event.AccountID,
		Username:     event.Username,
		Email:        event.Email,
		Role:         event.Role,
		RegisteredAt: event.RegisteredAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventAccountRegistered, event.AccountID, event.RegisteredAt, payload)
}

// PublishAccountEmailChanged publishes account.email.changed events.
func (p *EventPublisher) PublishAccountEmailChanged(ctx context.Context, event domain.AccountEmailChangedEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		OldEmail  string    `json:"old_email"`
		NewEmail  string    `json:"new_email"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		AccountID: event.AccountID,
		OldEmail:  event.OldEmail,
		NewEmail:  event.NewEmail,
		ChangedAt: event.ChangedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventAccountEmailChanged, event.AccountID, event.ChangedAt, payload)
}

// PublishAccountPasswordChanged publishes account.password.changed events.
func (p *EventPublisher) PublishAccountPasswordChanged(ctx context.Context, event domain.AccountPasswordChangedEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		AccountID: event.AccountID,
		ChangedAt: event.ChangedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventAccountPasswordChanged, event.AccountID, event.ChangedAt, payload)
}

// PublishAccountDeleted publishes account.deleted events.
func (p *EventPublisher) PublishAccountDeleted(ctx context.Context, event domain.AccountDeletedEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		DeletedAt time.Time `json:"deleted_at"`
	}{
		AccountID: event.AccountID,
		DeletedAt: event.DeletedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventAccountDeleted, event.AccountID, event.DeletedAt, payload)
}

// PublishAccountInconsistent publishes account.inconsistent events for manual reconciliation.
func (p *EventPublisher) PublishAccountInconsistent(ctx context.Context, event domain.AccountInconsistentEvent) error {
	payload := struct {
		AccountID       string    `json:"account_id"`
		Operation       string    `json:"operation"`
		Cause           string    `json:"cause"`
		CompensationErr string    `json:"compensation_error"`
		DetectedAt      time.Time `json:"detected_at"`
	}{
		AccountID:       event.AccountID,
		Operation:       event.Operation,
		Cause:           event.Cause,
		CompensationErr: event.CompensationErr,
		DetectedAt:      event.DetectedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventAccountInconsistent, event.AccountID, event.DetectedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
