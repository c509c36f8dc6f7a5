package port

import (
	"context"

	"github.com/arklim/ecotrack-accounts/internal/core/domain"
)

// EventPublisher publishes account lifecycle events to the message bus.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error
	PublishAccountEmailChanged(ctx context.Context, event domain.AccountEmailChangedEvent) error
	PublishAccountPasswordChanged(ctx context.Context, event domain.AccountPasswordChangedEvent) error
	PublishAccountDeleted(ctx context.Context, event domain.AccountDeletedEvent) error
	PublishAccountInconsistent(ctx context.Context, event domain.AccountInconsistentEvent) error
}
