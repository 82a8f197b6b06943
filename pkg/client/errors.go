package client

import (
	"errors"
	"fmt"

	"github.com/bobby-s-dev/weather-consensus/internal/models"
)

var (
	// ErrTransport covers network errors, timeouts, non-2xx replies and an open circuit.
	ErrTransport = errors.New("transport failure")
	// ErrSchema covers missing or malformed fields and unmatched forecast dates.
	ErrSchema = errors.New("schema failure")
	// ErrNotConfigured is returned when a provider has no credential or endpoint.
	ErrNotConfigured = errors.New("provider not configured")
)

// ProviderError scopes a failure to a single provider.
type ProviderError struct {
	Provider models.ProviderID
	Kind     error
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	return target == e.Kind
}

// FailureKind maps an error onto the failure taxonomy exposed in results.
func FailureKind(err error) models.FailureKind {
	switch {
	case errors.Is(err, ErrSchema):
		return models.FailureSchema
	case errors.Is(err, ErrNotConfigured):
		return models.FailureConfig
	case errors.Is(err, ErrTransport):
		return models.FailureTransport
	default:
		return models.FailureInternal
	}
}

func transportError(id models.ProviderID, err error) error {
	return &ProviderError{Provider: id, Kind: ErrTransport, Err: err}
}

func schemaError(id models.ProviderID, format string, args ...interface{}) error {
	return &ProviderError{Provider: id, Kind: ErrSchema, Err: fmt.Errorf(format, args...)}
}

// missingField is the schema error for an absent JSON path.
func missingField(path string) error {
	return fmt.Errorf("missing field %s", path)
}
