package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pressroom-io/pressroom/internal/domain/identity"
)

// newValidator builds the validator with the custom rules used by the
// config model.
func newValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	// scope: "{topic}:{role}" or "global:admin".
	if err := v.RegisterValidation("scope", func(fl validator.FieldLevel) bool {
		_, _, err := identity.Scope(fl.Field().String()).Parse()
		return err == nil
	}); err != nil {
		return nil, err
	}

	// audit_output: stdout, stderr, discard or file://<path>.
	if err := v.RegisterValidation("audit_output", func(fl validator.FieldLevel) bool {
		out := fl.Field().String()
		switch out {
		case "stdout", "stderr", "discard":
			return true
		}
		return strings.HasPrefix(out, "file://") && len(out) > len("file://")
	}); err != nil {
		return nil, err
	}

	return v, nil
}

// Validate checks the configuration beyond what struct tags express:
// API keys must reference declared identities, rule names must be
// unique, and production mode requires a JWT secret.
func (c *Config) Validate() error {
	v, err := newValidator()
	if err != nil {
		return fmt.Errorf("failed to build validator: %w", err)
	}
	if err := v.Struct(c); err != nil {
		return err
	}

	identityIDs := make(map[string]struct{}, len(c.Auth.Identities))
	for _, ident := range c.Auth.Identities {
		if _, dup := identityIDs[ident.ID]; dup {
			return fmt.Errorf("duplicate identity id %q", ident.ID)
		}
		identityIDs[ident.ID] = struct{}{}
	}
	for _, key := range c.Auth.APIKeys {
		if _, ok := identityIDs[key.IdentityID]; !ok {
			return fmt.Errorf("api key %q references unknown identity %q", key.Name, key.IdentityID)
		}
	}

	ruleNames := make(map[string]struct{}, len(c.Guard.OverrideRules))
	for _, rule := range c.Guard.OverrideRules {
		if _, dup := ruleNames[rule.Name]; dup {
			return fmt.Errorf("duplicate override rule name %q", rule.Name)
		}
		ruleNames[rule.Name] = struct{}{}
	}

	if !c.DevMode && c.Auth.JWTSecret == "" && len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth.jwt_secret or auth.api_keys is required outside dev mode")
	}

	return nil
}

// SetDevDefaults seeds a default admin identity when dev mode is on and
// no identities are configured.
func (c *Config) SetDevDefaults() {
	if !c.DevMode || len(c.Auth.Identities) > 0 {
		return
	}
	c.Auth.Identities = []IdentityConfig{
		{
			ID:     "dev-admin",
			Name:   "Dev Admin",
			Scopes: []string{identity.GlobalAdminScope},
			Active: true,
		},
	}
}
