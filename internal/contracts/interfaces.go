package contracts

import (
	"context"
	"time"
)

// DataProvider supplies market data. Per-symbol failures return a
// ProviderError; callers decide whether to skip the symbol or fail the
// run. Implementations must respect context cancellation and bound
// every call with a timeout.
type DataProvider interface {
	// GetUniverse returns the full candidate symbol set before filtering.
	GetUniverse(ctx context.Context) ([]string, error)

	// GetPriceBatch fetches live quotes for all symbols in one call.
	// Symbols the provider could not price are absent from the map.
	GetPriceBatch(ctx context.Context, symbols []string) (map[string]PriceQuote, error)

	// GetFundamentals fetches the slow-moving fields for one symbol.
	GetFundamentals(ctx context.Context, symbol string) (*Fundamentals, error)

	// GetEvents returns corporate events for one symbol dated on or
	// after since.
	GetEvents(ctx context.Context, symbol string, since time.Time) ([]Event, error)
}

// RunStore persists run results and exposes run history. Failures are
// PersistenceErrors.
type RunStore interface {
	// SaveRun stores the run result: the run row and its full ranked
	// list, atomically.
	SaveRun(ctx context.Context, result *RunResult) error

	// CompleteRun marks a stored run terminal (COMPLETED or FAILED).
	CompleteRun(ctx context.Context, result *RunResult) error

	GetRun(ctx context.Context, runID string) (*RunResult, error)
	LatestRun(ctx context.Context) (*RunResult, error)
	ListRuns(ctx context.Context, limit int) ([]*RunResult, error)
}

// Transport delivers a composed notification message. The stub
// transport always acks locally; the twilio transport performs a real
// send and returns a TransportError on failure.
type Transport interface {
	Send(ctx context.Context, message string, recipients []string) error
}
