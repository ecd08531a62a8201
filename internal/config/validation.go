package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	if err := cv.validator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	return validateCrossField(cfg)
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// validateCrossField performs checks that span several fields
func validateCrossField(cfg *Config) error {
	if cfg.Scheduler.Enabled {
		if strings.TrimSpace(cfg.Scheduler.Cron) == "" {
			return fmt.Errorf("scheduler.cron is required when the scheduler is enabled")
		}
		if _, err := cron.ParseStandard(cfg.Scheduler.Cron); err != nil {
			return fmt.Errorf("invalid scheduler.cron expression %q: %w", cfg.Scheduler.Cron, err)
		}
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/'")
	}

	if cfg.IsProduction() && cfg.Scraper.RequestDelayMS < 500 {
		return fmt.Errorf("production environment requires scraper.request_delay_ms of at least 500")
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var b strings.Builder
	for _, fieldError := range validationErrors {
		field := fieldError.StructNamespace()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required":
			fmt.Fprintf(&b, "- Field '%s' is required\n", field)
		case "url":
			fmt.Fprintf(&b, "- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			fmt.Fprintf(&b, "- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			fmt.Fprintf(&b, "- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			fmt.Fprintf(&b, "- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			fmt.Fprintf(&b, "- Field '%s' must be one of: debug, info, warn, error\n", field)
		default:
			fmt.Fprintf(&b, "- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", b.String())
}
