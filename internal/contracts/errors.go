package contracts

import (
	"errors"
	"fmt"
)

// Error taxonomy for the pipeline. Every failure surfaces one of these
// kinds with a human-readable cause; nothing collapses into a generic
// "something went wrong".

// ConfigurationError means the rule set or environment is invalid
// (bad weights, missing required keys, missing twilio credentials).
// Always fatal; fails the run before any side effect of the failing step.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// ProviderError wraps a data-provider failure (timeout, symbol not
// found, rate limit). Recoverable at per-symbol granularity during
// scoring; fatal if it prevents loading the universe itself.
type ProviderError struct {
	Op     string // "universe", "price_batch", "fundamentals", "events"
	Symbol string // empty for batch-level failures
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("provider error: %s %s: %v", e.Op, e.Symbol, e.Err)
	}
	return fmt.Sprintf("provider error: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PersistenceError means the run result could not be durably stored.
// Fatal: a run without a durable record is reported failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// TransportError means the notification transport rejected a send.
// It only blocks the NOTIFIED step; the already-persisted result stands.
type TransportError struct {
	Mode string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s): %v", e.Mode, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsProviderError reports whether err is (or wraps) a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsPersistenceError reports whether err is (or wraps) a PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsTransportError reports whether err is (or wraps) a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
