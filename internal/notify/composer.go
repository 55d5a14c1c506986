// Package notify composes and delivers top-picks summaries after a
// completed scan.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/quantgrid/oppscan/internal/contracts"
	"github.com/quantgrid/oppscan/internal/rules"
	"github.com/quantgrid/oppscan/pkg/config"
	"github.com/quantgrid/oppscan/pkg/httputil"
	"github.com/quantgrid/oppscan/pkg/logger"
)

// topPicksInMessage bounds how many ranked symbols the summary names.
const topPicksInMessage = 3

// Composer builds the notification message for a run and hands it to
// the configured transport.
type Composer struct {
	cfg       rules.Notifications
	transport contracts.Transport
	logger    *logger.Logger

	// credentialCheck runs before any twilio send and returns a
	// ConfigurationError on missing credentials.
	credentialCheck func() error
}

// New builds the composer for the configured notification mode.
func New(cfg rules.Notifications, twilioCfg config.TwilioConfig, client *httputil.Client, log *logger.Logger) (*Composer, error) {
	switch cfg.Mode {
	case "", "stub":
		return NewComposer(cfg, NewStubTransport(log), nil, log), nil
	case "twilio":
		transport := NewTwilioTransport(client, twilioCfg, log)
		check := func() error { return ValidateTwilioConfig(twilioCfg) }
		return NewComposer(cfg, transport, check, log), nil
	default:
		return nil, &contracts.ConfigurationError{
			Field:   "notifications.mode",
			Message: fmt.Sprintf("unknown mode %q", cfg.Mode),
		}
	}
}

// NewComposer creates a composer over the given transport. The
// credential check may be nil for transports without credentials.
func NewComposer(cfg rules.Notifications, transport contracts.Transport, credentialCheck func() error, log *logger.Logger) *Composer {
	return &Composer{
		cfg:             cfg,
		transport:       transport,
		logger:          log,
		credentialCheck: credentialCheck,
	}
}

// Compose renders the run summary message. The format is stable so
// recipients can parse it visually at a glance.
func (c *Composer) Compose(result *contracts.RunResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Scan %s (%s)\n", result.RunID, result.RunType)
	fmt.Fprintf(&b, "Universe: %d scanned, %d passed filters\n", result.UniverseSize, result.PassedFilterCount)

	picks := result.TopN
	if len(picks) > topPicksInMessage {
		picks = picks[:topPicksInMessage]
	}

	if len(picks) == 0 {
		b.WriteString("No picks passed the filters.")
		return b.String()
	}

	b.WriteString("Top picks:\n")
	for _, pick := range picks {
		fmt.Fprintf(&b, "%d. %s  score %.1f", pick.Rank, pick.Symbol, pick.FinalScore)
		if len(pick.Reasons) > 0 {
			fmt.Fprintf(&b, "  (%s)", pick.Reasons[0])
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// Notify composes and sends the run summary. Credential problems are
// detected before any send attempt and surface as ConfigurationErrors;
// delivery failures surface as TransportErrors from the transport.
func (c *Composer) Notify(ctx context.Context, result *contracts.RunResult) error {
	if !c.cfg.Enabled {
		return nil
	}

	if c.credentialCheck != nil {
		if err := c.credentialCheck(); err != nil {
			return err
		}
	}

	message := c.Compose(result)
	if err := c.transport.Send(ctx, message, c.cfg.Recipients); err != nil {
		return err
	}

	c.logger.WithFields(map[string]interface{}{
		"run_id":     result.RunID,
		"mode":       c.cfg.Mode,
		"recipients": len(c.cfg.Recipients),
	}).Info("Notification sent")

	return nil
}
