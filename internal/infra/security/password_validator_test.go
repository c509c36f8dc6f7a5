package security

import (
	"errors"
	"testing"
)

func assertViolation(t *testing.T, err error, expectedCode string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected validation error for %s", expectedCode)
	}
	var vErr *PasswordValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected PasswordValidationError, got %T", err)
	}
	if vErr.Code != expectedCode {
		t.Fatalf("expected %s code, got %s", expectedCode, vErr.Code)
	}
}

func TestDefaultPasswordPolicyAcceptsTypicalPassword(t *testing.T) {
	policy := NewPasswordPolicy(DefaultPasswordPolicyConfig())

	if err := policy.Validate("Secret1!", "alice", "a@x.com"); err != nil {
		t.Fatalf("expected password to pass validation, got %v", err)
	}
}

func TestDefaultPasswordPolicyViolations(t *testing.T) {
	policy := NewPasswordPolicy(DefaultPasswordPolicyConfig())

	assertViolation(t, policy.Validate("Sh0rt!"), "min_length")
	assertViolation(t, policy.Validate("lowercasepassword"), "character_classes")
}

func TestPasswordPolicyStrengthScore(t *testing.T) {
	policy := NewPasswordPolicy(PasswordPolicyConfig{
		MinLength:           8,
		MinCharacterClasses: 2,
		MinStrengthScore:    3,
	})

	assertViolation(t, policy.Validate("Password123"), "weak_password")
	if err := policy.Validate("C0mplex!Passphrase#2025"); err != nil {
		t.Fatalf("expected strong password to pass, got %v", err)
	}
}

func TestPasswordPolicyValidateChange(t *testing.T) {
	policy := NewPasswordPolicy(DefaultPasswordPolicyConfig())

	assertViolation(t, policy.ValidateChange("Secret1!", "Secret1!"), "different")
	if err := policy.ValidateChange("Secret1!", "Greener2#"); err != nil {
		t.Fatalf("expected changed password to pass, got %v", err)
	}
}

func TestCustomPasswordValidator(t *testing.T) {
	validator := NewPasswordValidator(
		MinLengthRule(4),
		RequireCharacterClassesRule(2),
		RequireDifferentFrom("existing"),
	)

	if err := validator.Validate("existing"); err == nil {
		t.Fatalf("expected validation error when new password equals comparator")
	}

	if err := validator.Validate("diff"); err == nil {
		t.Fatalf("expected validation error for a single character class")
	}

	if err := validator.Validate("diff!"); err != nil {
		t.Fatalf("expected password to pass custom validation, got %v", err)
	}
}
