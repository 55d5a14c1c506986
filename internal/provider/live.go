package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/quantgrid/oppscan/internal/contracts"
	"github.com/quantgrid/oppscan/pkg/httputil"
	"github.com/quantgrid/oppscan/pkg/logger"
	"github.com/quantgrid/oppscan/pkg/redis"
)

const (
	quoteAPIURL     = "https://query1.finance.yahoo.com/v7/finance/quote"
	screenerBaseURL = "https://www.screener.in/company"
)

// LiveProvider fetches Indian equities data from public sources:
// batched quotes from the Yahoo quote API, fundamentals scraped from
// screener.in, and corporate events from NSE announcements.
type LiveProvider struct {
	client     *httputil.Client
	nse        *NSEClient
	quoteCache *redis.Cache
	logger     *logger.Logger

	symbolsFile   string
	maxSymbols    int
	eventsEnabled bool
}

// NewLive creates a live provider. quoteCache may wrap a disabled
// redis client; quote caching then becomes a no-op.
func NewLive(client *httputil.Client, nse *NSEClient, quoteCache *redis.Cache, symbolsFile string, maxSymbols int, eventsEnabled bool, log *logger.Logger) *LiveProvider {
	return &LiveProvider{
		client:        client,
		nse:           nse,
		quoteCache:    quoteCache,
		logger:        log,
		symbolsFile:   symbolsFile,
		maxSymbols:    maxSymbols,
		eventsEnabled: eventsEnabled,
	}
}

func (p *LiveProvider) GetUniverse(_ context.Context) ([]string, error) {
	rows, err := readCSV(p.symbolsFile)
	if err != nil {
		return nil, &contracts.ProviderError{Op: "load symbols", Err: err}
	}

	var symbols []string
	for _, row := range rows {
		symbol := strings.ToUpper(strings.TrimSpace(row["symbol"]))
		if symbol == "" {
			continue
		}
		symbols = append(symbols, symbol)
		if p.maxSymbols > 0 && len(symbols) >= p.maxSymbols {
			break
		}
	}
	return symbols, nil
}

// GetPriceBatch fetches quotes for all symbols in one API call.
// Recently quoted symbols are served from the redis cache first.
func (p *LiveProvider) GetPriceBatch(ctx context.Context, symbols []string) (map[string]contracts.PriceQuote, error) {
	quotes := make(map[string]contracts.PriceQuote, len(symbols))

	var missing []string
	for _, symbol := range symbols {
		var cached contracts.PriceQuote
		found, err := p.quoteCache.Get(ctx, redis.QuoteKey(symbol), &cached)
		if err == nil && found && cached.Price > 0 {
			quotes[symbol] = cached
			continue
		}
		missing = append(missing, symbol)
	}

	if len(missing) == 0 {
		return quotes, nil
	}

	fetched, err := p.fetchQuotes(ctx, missing)
	if err != nil {
		// A full cache hit set above still counts as success; a cold
		// batch failure is a run-level provider error.
		if len(quotes) == 0 {
			return nil, err
		}
		p.logger.WithError(err).Warn("Batch quote fetch failed, serving cached quotes only")
		return quotes, nil
	}

	for symbol, quote := range fetched {
		quotes[symbol] = quote
		if err := p.quoteCache.Set(ctx, redis.QuoteKey(symbol), quote, redis.TTLQuote); err != nil {
			p.logger.WithError(err).WithField("symbol", symbol).Warn("Quote cache write failed")
		}
	}

	p.logger.WithFields(map[string]interface{}{
		"requested": len(symbols),
		"priced":    len(quotes),
	}).Info("Batch fetched quotes")

	return quotes, nil
}

func (p *LiveProvider) fetchQuotes(ctx context.Context, symbols []string) (map[string]contracts.PriceQuote, error) {
	yahooSymbols := make([]string, len(symbols))
	originals := make(map[string]string, len(symbols))
	for i, s := range symbols {
		ys := toYahooSymbol(s)
		yahooSymbols[i] = ys
		originals[ys] = s
	}

	url := fmt.Sprintf("%s?symbols=%s", quoteAPIURL, strings.Join(yahooSymbols, ","))
	resp, err := p.client.Get(ctx, url)
	if err != nil {
		return nil, &contracts.ProviderError{Op: "batch quotes", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &contracts.ProviderError{Op: "batch quotes", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &contracts.ProviderError{Op: "batch quotes", Err: err}
	}

	var payload struct {
		QuoteResponse struct {
			Result []struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"result"`
		} `json:"quoteResponse"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &contracts.ProviderError{Op: "batch quotes", Err: fmt.Errorf("decode response: %w", err)}
	}

	quotes := make(map[string]contracts.PriceQuote)
	for _, r := range payload.QuoteResponse.Result {
		original, ok := originals[r.Symbol]
		if !ok || r.RegularMarketPrice <= 0 {
			continue
		}
		quotes[original] = contracts.PriceQuote{Symbol: original, Price: r.RegularMarketPrice}
	}

	return quotes, nil
}

// GetFundamentals scrapes the screener.in company page for symbol.
func (p *LiveProvider) GetFundamentals(ctx context.Context, symbol string) (*contracts.Fundamentals, error) {
	url := fmt.Sprintf("%s/%s/consolidated/", screenerBaseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &contracts.ProviderError{Op: "fundamentals", Symbol: symbol, Err: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &contracts.ProviderError{Op: "fundamentals", Symbol: symbol, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &contracts.ProviderError{Op: "fundamentals", Symbol: symbol, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &contracts.ProviderError{Op: "fundamentals", Symbol: symbol, Err: fmt.Errorf("parse page: %w", err)}
	}

	fund := parseScreenerPage(doc, symbol)
	if fund.MarketCapCr <= 0 {
		return nil, &contracts.ProviderError{Op: "fundamentals", Symbol: symbol, Err: fmt.Errorf("no market cap on page")}
	}

	return fund, nil
}

func (p *LiveProvider) GetEvents(ctx context.Context, symbol string, since time.Time) ([]contracts.Event, error) {
	if !p.eventsEnabled {
		return nil, nil
	}
	return p.nse.FetchEvents(ctx, symbol, since)
}

// parseScreenerPage extracts fundamentals from a screener.in company
// page: the top-ratios list plus the quarterly results and balance
// sheet tables.
func parseScreenerPage(doc *goquery.Document, symbol string) *contracts.Fundamentals {
	fund := &contracts.Fundamentals{Symbol: symbol, Exchange: "NSE"}

	fund.Name = strings.TrimSpace(doc.Find("h1").First().Text())
	if fund.Name == "" {
		fund.Name = symbol
	}

	doc.Find("#top-ratios li").Each(func(_ int, li *goquery.Selection) {
		name := strings.TrimSpace(li.Find(".name").Text())
		value := parseIndianNumber(li.Find(".number").First().Text())

		switch {
		case strings.Contains(name, "Market Cap"):
			fund.MarketCapCr = value
		case strings.Contains(name, "Stock P/E"):
			fund.PE = value
		case strings.Contains(name, "Book Value"):
			fund.BookValue = value
		case name == "ROCE":
			fund.ROCE = value
		case name == "ROE":
			fund.ROE = value
		}
	})

	quarters := parseResultsRow(doc, "#quarters", "Net Profit")
	if len(quarters) >= 4 {
		copy(fund.ProfitQuarters[:], quarters[len(quarters)-4:])
		fund.ProfitTTMCr = sum(quarters[len(quarters)-4:])
	}
	if len(quarters) >= 8 {
		fund.ProfitPrevTTMCr = sum(quarters[len(quarters)-8 : len(quarters)-4])
	} else if fund.ProfitTTMCr > 0 {
		fund.ProfitPrevTTMCr = fund.ProfitTTMCr * 0.8
	}

	sales := parseResultsRow(doc, "#quarters", "Sales")
	if n := len(sales); n >= 5 && sales[n-5] > 0 {
		fund.SalesCr = sum(sales[n-4:])
		fund.SalesGrowthPct = (sales[n-1] - sales[n-5]) / sales[n-5] * 100.0
	}

	if borrowings := parseResultsRow(doc, "#balance-sheet", "Borrowings"); len(borrowings) > 0 {
		fund.DebtCr = borrowings[len(borrowings)-1]
	}
	equity := parseResultsRow(doc, "#balance-sheet", "Equity Capital")
	reserves := parseResultsRow(doc, "#balance-sheet", "Reserves")
	if len(equity) > 0 && len(reserves) > 0 {
		fund.NetWorthCr = equity[len(equity)-1] + reserves[len(reserves)-1]
	}

	holding := parseResultsRow(doc, "#shareholding", "Promoters")
	if len(holding) > 0 {
		fund.PromoterHoldingPct = holding[len(holding)-1]
	}

	return fund
}

// parseResultsRow returns the numeric cells of the table row whose
// first cell starts with label, oldest column first.
func parseResultsRow(doc *goquery.Document, section, label string) []float64 {
	var values []float64

	doc.Find(section + " table tbody tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return true
		}
		head := strings.TrimSpace(cells.First().Text())
		if !strings.HasPrefix(head, label) {
			return true
		}

		cells.Slice(1, cells.Length()).Each(func(_ int, td *goquery.Selection) {
			values = append(values, parseIndianNumber(td.Text()))
		})
		return false
	})

	return values
}

// parseIndianNumber strips currency markers, comma grouping and
// percent signs before parsing.
func parseIndianNumber(s string) float64 {
	s = strings.TrimSpace(s)
	for _, cut := range []string{"₹", ",", "%", "Cr.", "Cr"} {
		s = strings.ReplaceAll(s, cut, "")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func toYahooSymbol(symbol string) string {
	if strings.HasSuffix(symbol, ".NS") || strings.HasSuffix(symbol, ".BO") {
		return symbol
	}
	return symbol + ".NS"
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
