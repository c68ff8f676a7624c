package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
)

var validate = validator.New()

// Validate checks the struct constraints of cfg and reports every violation
// in one configuration error.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "configuration validation failed").Fatal().Build()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return ferrors.ConfigError("configuration validation failed: " + strings.Join(msgs, "; ")).
		WithCause(err).
		WithContext("violations", len(msgs)).
		Build()
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be an absolute URL, got %q", field, fe.Value())
	case "hostname_port":
		return fmt.Sprintf("%s must be a host:port address, got %q", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	}
}
