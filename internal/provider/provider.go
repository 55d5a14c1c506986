// Package provider implements the market data sources behind the
// DataProvider contract: a CSV-backed mock for local development and a
// live provider combining batched quotes, screener.in fundamentals and
// NSE corporate announcements.
package provider

import (
	"fmt"

	"github.com/quantgrid/oppscan/internal/contracts"
	"github.com/quantgrid/oppscan/internal/rules"
	"github.com/quantgrid/oppscan/pkg/httputil"
	"github.com/quantgrid/oppscan/pkg/logger"
	"github.com/quantgrid/oppscan/pkg/redis"
)

// New builds the provider selected by the rule set.
func New(cfg rules.DataProvider, client *httputil.Client, quoteCache *redis.Cache, log *logger.Logger) (contracts.DataProvider, error) {
	switch cfg.Type {
	case "mock":
		return NewMock(cfg.SymbolsFile, cfg.EventsFile, cfg.MaxSymbols, log), nil
	case "live":
		nse := NewNSEClient(client, log)
		return NewLive(client, nse, quoteCache, cfg.SymbolsFile, cfg.MaxSymbols, cfg.EventsEnabled, log), nil
	default:
		return nil, &contracts.ConfigurationError{
			Field:   "data_provider.type",
			Message: fmt.Sprintf("unknown provider type %q", cfg.Type),
		}
	}
}
