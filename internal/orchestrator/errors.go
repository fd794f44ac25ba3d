package orchestrator

import (
	"errors"
	"fmt"
)

// ErrMissingCredential is returned when no generalist engine is configured.
var ErrMissingCredential = errors.New("missing generalist credential")

// ConfigurationError reports that an orchestrator could not be built. It is
// the only error a caller of this package ever sees.
type ConfigurationError struct {
	UserID string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuring orchestrator for %s: %v", e.UserID, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
