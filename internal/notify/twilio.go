package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/quantgrid/oppscan/internal/contracts"
	"github.com/quantgrid/oppscan/pkg/config"
	"github.com/quantgrid/oppscan/pkg/httputil"
	"github.com/quantgrid/oppscan/pkg/logger"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioTransport delivers messages as SMS through the Twilio REST
// API, one request per recipient.
type TwilioTransport struct {
	client *httputil.Client
	cfg    config.TwilioConfig
	logger *logger.Logger
}

// NewTwilioTransport creates a twilio transport. Call
// ValidateTwilioConfig before the first send; the transport assumes
// credentials are present.
func NewTwilioTransport(client *httputil.Client, cfg config.TwilioConfig, log *logger.Logger) *TwilioTransport {
	return &TwilioTransport{client: client, cfg: cfg, logger: log}
}

// ValidateTwilioConfig checks that every credential twilio needs is
// set. It returns a ConfigurationError naming the first missing field
// so a misconfigured deployment fails before any send attempt.
func ValidateTwilioConfig(cfg config.TwilioConfig) error {
	if cfg.AccountSID == "" {
		return &contracts.ConfigurationError{Field: "TWILIO_ACCOUNT_SID", Message: "required in twilio notification mode"}
	}
	if cfg.AuthToken == "" {
		return &contracts.ConfigurationError{Field: "TWILIO_AUTH_TOKEN", Message: "required in twilio notification mode"}
	}
	if cfg.FromNumber == "" {
		return &contracts.ConfigurationError{Field: "TWILIO_FROM_NUMBER", Message: "required in twilio notification mode"}
	}
	return nil
}

func (t *TwilioTransport) Send(ctx context.Context, message string, recipients []string) error {
	if len(recipients) == 0 {
		return &contracts.TransportError{Mode: "twilio", Err: fmt.Errorf("no recipients configured")}
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", twilioAPIBase, t.cfg.AccountSID)

	for _, recipient := range recipients {
		form := url.Values{}
		form.Set("To", recipient)
		form.Set("From", t.cfg.FromNumber)
		form.Set("Body", message)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return &contracts.TransportError{Mode: "twilio", Err: err}
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)

		resp, err := t.client.Do(req)
		if err != nil {
			return &contracts.TransportError{Mode: "twilio", Err: fmt.Errorf("send to %s: %w", recipient, err)}
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 300 {
			return &contracts.TransportError{
				Mode: "twilio",
				Err:  fmt.Errorf("send to %s: status %d, body: %s", recipient, resp.StatusCode, string(body)),
			}
		}

		t.logger.WithField("recipient", recipient).Debug("Twilio message accepted")
	}

	return nil
}
