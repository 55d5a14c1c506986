package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/quantgrid/oppscan/internal/contracts"
	"github.com/quantgrid/oppscan/pkg/httputil"
	"github.com/quantgrid/oppscan/pkg/logger"
)

const (
	nseBaseURL          = "https://www.nseindia.com"
	nseAnnouncementsURL = "https://www.nseindia.com/api/corporate-announcements"
)

// NSEClient fetches corporate announcements from the NSE public API
// and classifies them into the closed event-type set. Announcements
// that match no classification rule are dropped, not mapped to other.
type NSEClient struct {
	client *httputil.Client
	logger *logger.Logger

	bootstrapped bool
}

// NewNSEClient creates an announcements client.
func NewNSEClient(client *httputil.Client, log *logger.Logger) *NSEClient {
	return &NSEClient{client: client, logger: log}
}

// FetchEvents returns classified announcements for symbol dated on or
// after since. Network and decode failures degrade to an empty slice;
// event enrichment is best-effort and never blocks a scan.
func (c *NSEClient) FetchEvents(ctx context.Context, symbol string, since time.Time) ([]contracts.Event, error) {
	c.bootstrap(ctx)

	url := fmt.Sprintf("%s?index=equities&symbol=%s", nseAnnouncementsURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &contracts.ProviderError{Op: "nse announcements", Symbol: symbol, Err: err}
	}
	setNSEHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Warn("NSE announcements fetch failed")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"status": resp.StatusCode,
		}).Warn("NSE announcements fetch failed")
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil
	}

	var payload []map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil
	}

	var out []contracts.Event
	for _, item := range payload {
		text := pickAnnouncementText(item)
		if text == "" {
			continue
		}

		eventType, ok := ClassifyAnnouncement(text)
		if !ok {
			continue
		}

		date := pickAnnouncementDate(item)
		if date.Before(since) {
			continue
		}

		headline := text
		if len(headline) > 220 {
			headline = headline[:220]
		}

		out = append(out, contracts.Event{
			Symbol:   symbol,
			Type:     eventType,
			Date:     date,
			ValueCr:  ExtractValueCr(text),
			Headline: headline,
		})
	}

	return out, nil
}

// bootstrap primes the session cookies the NSE API requires. Failures
// are ignored; the announcements call reports its own status.
func (c *NSEClient) bootstrap(ctx context.Context) {
	if c.bootstrapped {
		return
	}
	if resp, err := c.client.Get(ctx, nseBaseURL); err == nil {
		resp.Body.Close()
		c.bootstrapped = true
	}
}

func setNSEHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json,text/plain,*/*")
	req.Header.Set("Referer", "https://www.nseindia.com/")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func pickAnnouncementText(item map[string]interface{}) string {
	for _, key := range []string{"desc", "subject", "sm_name", "headline", "attchmntText"} {
		if v, ok := item[key].(string); ok && strings.TrimSpace(v) != "" {
			return whitespaceRe.ReplaceAllString(strings.TrimSpace(v), " ")
		}
	}
	return ""
}

var announcementDateFormats = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"02-Jan-2006",
	"02-Jan-2006 15:04:05",
	"2006-01-02 15:04:05",
}

func pickAnnouncementDate(item map[string]interface{}) time.Time {
	for _, key := range []string{"an_dt", "an_date", "date", "dt"} {
		raw, ok := item[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return time.Unix(int64(v), 0).UTC()
		case string:
			s := strings.TrimSpace(v)
			for _, format := range announcementDateFormats {
				if t, err := time.Parse(format, s); err == nil {
					return t
				}
			}
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t
			}
		}
	}
	return time.Now().UTC()
}

// classificationRule maps keyword needles to an event type. Rules are
// checked in order; the first match wins.
type classificationRule struct {
	eventType contracts.EventType
	needles   []string
}

var classificationRules = []classificationRule{
	{contracts.EventPreferentialAllotment, []string{"preferential", "allotment", "warrant"}},
	{contracts.EventCapacityExpansion, []string{"capacity expansion", "expand capacity", "commissioned"}},
	{contracts.EventNewPlant, []string{"new plant", "plant commissioned", "factory commenced"}},
	{contracts.EventAcquisition, []string{"acquisition", "acquire", "takeover"}},
	{contracts.EventPartnership, []string{"partnership", "mou", "joint venture", "collaborat"}},
	{contracts.EventSubsidiaryLaunch, []string{"subsidiary", "incorporated", "wholly owned"}},
	{contracts.EventOrderWin, []string{"order", "order book", "contract awarded", "work order"}},
}

// ClassifyAnnouncement maps announcement text to an event type. The
// second return is false when no rule matches.
func ClassifyAnnouncement(text string) (contracts.EventType, bool) {
	t := strings.ToLower(text)
	for _, rule := range classificationRules {
		for _, needle := range rule.needles {
			if strings.Contains(t, needle) {
				return rule.eventType, true
			}
		}
	}
	return "", false
}

var (
	croreRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:crore|cr)\b`)
	lakhRe  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:lakh|lac)\b`)
)

// ExtractValueCr pulls a rupee amount in crore out of announcement
// text. Lakh amounts are converted; no amount yields 0.
func ExtractValueCr(text string) float64 {
	t := strings.ReplaceAll(strings.ToLower(text), ",", "")

	if m := croreRe.FindStringSubmatch(t); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return v
	}
	if m := lakhRe.FindStringSubmatch(t); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return v / 100.0
	}
	return 0
}
