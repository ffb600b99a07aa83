package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// apiKeyPlaceholders are template values that ship in example configs and
// must never reach the upstream.
var apiKeyPlaceholders = map[string]bool{
	"YOUR_RAPIDAPI_KEY_HERE": true,
	"changeme":               true,
}

// RegisterCustomValidators registers the custom validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	if err := v.RegisterValidation("api_key", validateAPIKey); err != nil {
		return fmt.Errorf("failed to register api_key validator: %w", err)
	}
	return nil
}

// validateDuration validates that a string field parses as a positive
// time.Duration.
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// validateAPIKey rejects placeholder credentials from example configs.
func validateAPIKey(fl validator.FieldLevel) bool {
	return !apiKeyPlaceholders[fl.Field().String()]
}

// Validate validates the Config using struct tags and custom rules.
// Returns an error with actionable messages if validation fails.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single
// validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		if field == "Config.API.Key" {
			return "api.key is required: set it in the config file, KANJIALIVE_API_KEY, or RAPIDAPI_KEY"
		}
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "duration":
		return fmt.Sprintf("%s must be a positive duration such as \"30s\" or \"5m\"", field)
	case "api_key":
		return "api.key is a placeholder value: replace it with your RapidAPI key"
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
