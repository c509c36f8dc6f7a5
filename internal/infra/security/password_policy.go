package security

import "strings"

// PasswordPolicyConfig holds the thresholds enforced on new passwords.
type PasswordPolicyConfig struct {
	MinLength           int
	MinCharacterClasses int
	MinStrengthScore    int
}

// DefaultPasswordPolicyConfig accepts passwords such as "Secret1!".
func DefaultPasswordPolicyConfig() PasswordPolicyConfig {
	return PasswordPolicyConfig{
		MinLength:           8,
		MinCharacterClasses: 3,
	}
}

// PasswordPolicy builds a validator per call so the strength check can penalise
// passwords derived from the account's own username or email.
type PasswordPolicy struct {
	cfg PasswordPolicyConfig
}

// NewPasswordPolicy constructs a policy from cfg.
func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordPolicy {
	return &PasswordPolicy{cfg: cfg}
}

// Validate returns a *PasswordValidationError for the first violated rule.
func (p *PasswordPolicy) Validate(password string, userInputs ...string) error {
	return p.validator(nil, userInputs).Validate(password)
}

// ValidateChange additionally requires the new password to differ from current.
func (p *PasswordPolicy) ValidateChange(current, password string, userInputs ...string) error {
	return p.validator([]PasswordRule{RequireDifferentFrom(current)}, userInputs).Validate(password)
}

func (p *PasswordPolicy) validator(extra []PasswordRule, userInputs []string) *PasswordValidator {
	inputs := make([]string, 0, len(userInputs))
	for _, in := range userInputs {
		if in = strings.TrimSpace(in); in != "" {
			inputs = append(inputs, in)
		}
	}

	rules := []PasswordRule{
		MinLengthRule(p.cfg.MinLength),
		RequireCharacterClassesRule(p.cfg.MinCharacterClasses),
	}
	rules = append(rules, extra...)
	rules = append(rules, RequirePasswordStrengthRule(p.cfg.MinStrengthScore, inputs...))
	return NewPasswordValidator(rules...)
}
