package usecase

import (
	"errors"
	"fmt"
	"testing"
)

func TestInconsistentStateErrorMatchesBothCauses(t *testing.T) {
	storeErr := fmt.Errorf("%w: put users/u1: boom", ErrStoreWrite)
	compErr := errors.New("delete identity: timeout")
	err := fmt.Errorf("register: %w", &InconsistentStateError{
		Operation:       OperationRegister,
		AccountID:       "u1",
		Err:             storeErr,
		CompensationErr: compErr,
	})

	if !errors.Is(err, ErrInconsistentState) {
		t.Fatal("expected ErrInconsistentState")
	}
	if !errors.Is(err, ErrStoreWrite) || !errors.Is(err, compErr) {
		t.Fatal("expected both causes to be reachable")
	}
	var target *InconsistentStateError
	if !errors.As(err, &target) || target.AccountID != "u1" {
		t.Fatalf("errors.As failed: %v", err)
	}
}

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := requiredField("email")
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected ValidationError to match ErrValidation")
	}
	if err.Error() != "email is required" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if errors.Is(err, ErrAccountNotFound) {
		t.Fatal("ValidationError must not match other sentinels")
	}
}

func TestOutcomeClassification(t *testing.T) {
	cases := map[string]error{
		"success":             nil,
		"validation":          requiredField("email"),
		"not_found":           ErrAccountNotFound,
		"invalid_credentials": ErrInvalidCredentials,
		"identity_provider":   fmt.Errorf("%w: x", ErrIdentityProvider),
		"store":               fmt.Errorf("%w: x", ErrStoreRead),
		"inconsistent":        &InconsistentStateError{Err: ErrStoreWrite, CompensationErr: errors.New("x")},
		"error":               errors.New("unexpected"),
	}
	for want, err := range cases {
		if got := outcomeOf(err); got != want {
			t.Fatalf("outcomeOf(%v) = %q, want %q", err, got, want)
		}
	}
}
