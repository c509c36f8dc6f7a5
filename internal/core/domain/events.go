package domain

import "time"

// AccountRegisteredEvent represents the payload for account.registered messages.
type AccountRegisteredEvent struct {
	EventID      string
	AccountID    string
	Username     string
	Email        string
	Role         string
	RegisteredAt time.Time
}

// AccountEmailChangedEvent represents the payload for account.email.changed messages.
type AccountEmailChangedEvent struct {
	EventID   string
	AccountID string
	OldEmail  string
	NewEmail  string
	ChangedAt time.Time
}

// AccountPasswordChangedEvent represents the payload for account.password.changed messages.
type AccountPasswordChangedEvent struct {
	EventID   string
	AccountID string
	ChangedAt time.Time
}

// AccountDeletedEvent represents the payload for account.deleted messages.
type AccountDeletedEvent struct {
	EventID   string
	AccountID string
	DeletedAt time.Time
}

// AccountInconsistentEvent is emitted when a compensating action failed and the
// identity provider and document store no longer agree. Operators reconcile these by hand.
type AccountInconsistentEvent struct {
	EventID         string
	AccountID       string
	Operation       string
	Cause           string
	CompensationErr string
	DetectedAt      time.Time
}
