package security

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// Violation codes reported in PasswordValidationError.Code.
const (
	ViolationMinLength        = "min_length"
	ViolationCharacterClasses = "character_classes"
	ViolationReused           = "different"
	ViolationWeak             = "weak_password"
)

// zxcvbn scores range from 0 to 4.
const maxStrengthScore = 4

// PasswordValidationError is the first rule a password failed.
type PasswordValidationError struct {
	Code    string
	Message string
}

func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func violation(code, format string, args ...any) *PasswordValidationError {
	return &PasswordValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// PasswordRule checks one property of a candidate password.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to PasswordRule.
type PasswordRuleFunc func(password string) error

func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator runs rules in order and stops at the first violation.
type PasswordValidator struct {
	rules []PasswordRule
}

func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	return &PasswordValidator{rules: append([]PasswordRule(nil), rules...)}
}

func (v *PasswordValidator) Validate(password string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	return nil
}

// MinLengthRule counts runes, not bytes.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if utf8.RuneCountInString(password) < min {
			return violation(ViolationMinLength, "password must be at least %d characters long", min)
		}
		return nil
	})
}

type characterClass uint8

const (
	classUpper characterClass = 1 << iota
	classLower
	classDigit
	classSymbol
)

func classOf(r rune) characterClass {
	switch {
	case unicode.IsUpper(r):
		return classUpper
	case unicode.IsLower(r):
		return classLower
	case unicode.IsDigit(r):
		return classDigit
	case unicode.IsSymbol(r), unicode.IsPunct(r):
		return classSymbol
	}
	return 0
}

// RequireCharacterClassesRule requires min of: upper case, lower case, digits, symbols.
func RequireCharacterClassesRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if min <= 0 {
			return nil
		}
		var seen characterClass
		for _, r := range password {
			seen |= classOf(r)
		}
		count := 0
		for c := classUpper; c <= classSymbol; c <<= 1 {
			if seen&c != 0 {
				count++
			}
		}
		if count < min {
			return violation(ViolationCharacterClasses, "password must include at least %d character types", min)
		}
		return nil
	})
}

// RequireDifferentFrom rejects reuse of the current password.
func RequireDifferentFrom(current string) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if password == current {
			return violation(ViolationReused, "new password must be different from current password")
		}
		return nil
	})
}

// RequirePasswordStrengthRule rejects passwords whose zxcvbn score is below minScore.
// userInputs (username, email) count as known words.
func RequirePasswordStrengthRule(minScore int, userInputs ...string) PasswordRule {
	minScore = min(minScore, maxStrengthScore)
	return PasswordRuleFunc(func(password string) error {
		if minScore <= 0 {
			return nil
		}
		if zxcvbn.PasswordStrength(password, userInputs).Score < minScore {
			return violation(ViolationWeak, "password is too weak; choose a more complex value")
		}
		return nil
	})
}
