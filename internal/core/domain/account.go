package domain

import (
	"fmt"
	"time"
)

// Document field names used for the mirrored account record.
const (
	FieldUserID      = "userId"
	FieldUsername    = "username"
	FieldFirstName   = "firstName"
	FieldLastName    = "lastName"
	FieldEmail       = "email"
	FieldPassword    = "password"
	FieldRole        = "role"
	FieldLocation    = "location"
	FieldCreatedAt   = "createdAt"
	FieldPreferences = "preferences"
)

// Preferences holds user-configurable settings. The service stores and returns it as a whole.
type Preferences map[string]any

// DefaultPreferences returns the preference set attached to newly registered accounts.
func DefaultPreferences() Preferences {
	return Preferences{
		"notifications": true,
		"units":         "metric",
		"theme":         "light",
	}
}

// Clone returns a shallow copy of the preference set.
func (p Preferences) Clone() Preferences {
	if p == nil {
		return nil
	}
	out := make(Preferences, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Account is the user entity mirrored across the identity provider and the document store.
type Account struct {
	ID           string
	Username     string
	FirstName    string
	LastName     string
	Email        string
	Role         string
	Location     string
	CreatedAt    time.Time
	PasswordHash string
	Preferences  Preferences
}

// Profile is the public view of an account.
type Profile struct {
	ID          string      `json:"userId"`
	Username    string      `json:"username"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	Email       string      `json:"email"`
	Role        string      `json:"role"`
	Location    string      `json:"location,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	Preferences Preferences `json:"preferences"`
}

// Profile strips credential material from the account.
func (a Account) Profile() Profile {
	return Profile{
		ID:          a.ID,
		Username:    a.Username,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Email:       a.Email,
		Role:        a.Role,
		Location:    a.Location,
		CreatedAt:   a.CreatedAt,
		Preferences: a.Preferences.Clone(),
	}
}

// ToDocument renders the account as a store document.
func (a Account) ToDocument() map[string]any {
	doc := map[string]any{
		FieldUserID:      a.ID,
		FieldUsername:    a.Username,
		FieldFirstName:   a.FirstName,
		FieldLastName:    a.LastName,
		FieldEmail:       a.Email,
		FieldPassword:    a.PasswordHash,
		FieldRole:        a.Role,
		FieldCreatedAt:   a.CreatedAt.UTC(),
		FieldPreferences: map[string]any(a.Preferences.Clone()),
	}
	if a.Location != "" {
		doc[FieldLocation] = a.Location
	}
	return doc
}

// AccountFromDocument decodes a store document. Stores differ in how they return
// timestamps and nested maps, so both native and JSON-decoded shapes are accepted.
func AccountFromDocument(doc map[string]any) (Account, error) {
	if doc == nil {
		return Account{}, fmt.Errorf("account document is nil")
	}

	acc := Account{
		ID:           stringField(doc, FieldUserID),
		Username:     stringField(doc, FieldUsername),
		FirstName:    stringField(doc, FieldFirstName),
		LastName:     stringField(doc, FieldLastName),
		Email:        stringField(doc, FieldEmail),
		PasswordHash: stringField(doc, FieldPassword),
		Role:         stringField(doc, FieldRole),
		Location:     stringField(doc, FieldLocation),
	}

	switch v := doc[FieldCreatedAt].(type) {
	case nil:
	case time.Time:
		acc.CreatedAt = v.UTC()
	case string:
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return Account{}, fmt.Errorf("decode %s: %w", FieldCreatedAt, err)
		}
		acc.CreatedAt = ts.UTC()
	default:
		return Account{}, fmt.Errorf("decode %s: unexpected type %T", FieldCreatedAt, v)
	}

	switch v := doc[FieldPreferences].(type) {
	case nil:
	case Preferences:
		acc.Preferences = v.Clone()
	case map[string]any:
		acc.Preferences = Preferences(v).Clone()
	default:
		return Account{}, fmt.Errorf("decode %s: unexpected type %T", FieldPreferences, v)
	}

	return acc, nil
}

func stringField(doc map[string]any, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}
