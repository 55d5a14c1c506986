package provider

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/quantgrid/oppscan/internal/contracts"
	"github.com/quantgrid/oppscan/pkg/logger"
)

// MockProvider serves data from shipped CSV files. It exists for local
// development and tests; no network access is involved.
type MockProvider struct {
	stocksPath string
	eventsPath string
	maxSymbols int
	logger     *logger.Logger

	loadOnce sync.Once
	loadErr  error
	order    []string
	stocks   map[string]*mockStock
	events   []contracts.Event
}

type mockStock struct {
	fundamentals contracts.Fundamentals
	price        float64
}

// NewMock creates a mock provider over the two sample CSV files.
func NewMock(stocksPath, eventsPath string, maxSymbols int, log *logger.Logger) *MockProvider {
	return &MockProvider{
		stocksPath: stocksPath,
		eventsPath: eventsPath,
		maxSymbols: maxSymbols,
		logger:     log,
	}
}

func (p *MockProvider) GetUniverse(_ context.Context) ([]string, error) {
	if err := p.load(); err != nil {
		return nil, err
	}
	return append([]string(nil), p.order...), nil
}

func (p *MockProvider) GetPriceBatch(_ context.Context, symbols []string) (map[string]contracts.PriceQuote, error) {
	if err := p.load(); err != nil {
		return nil, err
	}

	quotes := make(map[string]contracts.PriceQuote, len(symbols))
	for _, symbol := range symbols {
		stock, ok := p.stocks[symbol]
		if !ok || stock.price <= 0 {
			continue
		}
		quotes[symbol] = contracts.PriceQuote{Symbol: symbol, Price: stock.price}
	}
	return quotes, nil
}

func (p *MockProvider) GetFundamentals(_ context.Context, symbol string) (*contracts.Fundamentals, error) {
	if err := p.load(); err != nil {
		return nil, err
	}

	stock, ok := p.stocks[symbol]
	if !ok {
		return nil, &contracts.ProviderError{Op: "fundamentals", Symbol: symbol, Err: fmt.Errorf("symbol not in sample data")}
	}
	f := stock.fundamentals
	return &f, nil
}

func (p *MockProvider) GetEvents(_ context.Context, symbol string, since time.Time) ([]contracts.Event, error) {
	if err := p.load(); err != nil {
		return nil, err
	}

	var out []contracts.Event
	for _, e := range p.events {
		if e.Symbol != symbol || e.Date.Before(since) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (p *MockProvider) load() error {
	p.loadOnce.Do(func() {
		if err := p.loadStocks(); err != nil {
			p.loadErr = err
			return
		}
		if err := p.loadEvents(); err != nil {
			p.loadErr = err
			return
		}
		p.logger.WithFields(map[string]interface{}{
			"stocks": len(p.stocks),
			"events": len(p.events),
		}).Debug("Loaded mock sample data")
	})
	return p.loadErr
}

func (p *MockProvider) loadStocks() error {
	rows, err := readCSV(p.stocksPath)
	if err != nil {
		return &contracts.ProviderError{Op: "load sample stocks", Err: err}
	}

	p.stocks = make(map[string]*mockStock, len(rows))
	for _, row := range rows {
		symbol := strings.ToUpper(strings.TrimSpace(row["symbol"]))
		if symbol == "" {
			continue
		}
		if p.maxSymbols > 0 && len(p.order) >= p.maxSymbols {
			break
		}

		stock := &mockStock{
			fundamentals: contracts.Fundamentals{
				Symbol:             symbol,
				Name:               strings.TrimSpace(row["name"]),
				Exchange:           strings.TrimSpace(row["exchange"]),
				Sector:             strings.TrimSpace(row["sector"]),
				MarketCapCr:        csvFloat(row, "market_cap_cr"),
				PE:                 csvFloat(row, "pe"),
				BookValue:          csvFloat(row, "book_value"),
				DebtCr:             csvFloat(row, "debt_cr"),
				NetWorthCr:         csvFloat(row, "net_worth_cr"),
				SalesCr:            csvFloat(row, "sales_cr"),
				ROE:                csvFloat(row, "roe"),
				ROCE:               csvFloat(row, "roce"),
				ProfitTTMCr:        csvFloat(row, "profit_ttm_cr"),
				ProfitPrevTTMCr:    csvFloat(row, "profit_prev_ttm_cr"),
				ProfitQuarters:     [4]float64{csvFloat(row, "profit_q1_cr"), csvFloat(row, "profit_q2_cr"), csvFloat(row, "profit_q3_cr"), csvFloat(row, "profit_q4_cr")},
				SalesGrowthPct:     csvFloat(row, "sales_growth_pct"),
				PromoterHoldingPct: csvFloat(row, "promoter_holding_pct"),
				PledgePct:          csvFloat(row, "pledge_pct"),
				ESMFlag:            csvBool(row, "esm_flag"),
				GovernanceFlag:     csvBool(row, "governance_flag"),
			},
			price: csvFloat(row, "price"),
		}

		p.stocks[symbol] = stock
		p.order = append(p.order, symbol)
	}

	return nil
}

func (p *MockProvider) loadEvents() error {
	if p.eventsPath == "" {
		return nil
	}

	rows, err := readCSV(p.eventsPath)
	if err != nil {
		return &contracts.ProviderError{Op: "load sample events", Err: err}
	}

	for _, row := range rows {
		date, err := time.Parse("2006-01-02", strings.TrimSpace(row["event_date"]))
		if err != nil {
			continue
		}
		eventType := strings.TrimSpace(row["event_type"])
		if !contracts.IsValidEventType(eventType) {
			eventType = string(contracts.EventOther)
		}
		p.events = append(p.events, contracts.Event{
			Symbol:   strings.ToUpper(strings.TrimSpace(row["symbol"])),
			Type:     contracts.EventType(eventType),
			Date:     date,
			ValueCr:  csvFloat(row, "value_cr"),
			Headline: strings.TrimSpace(row["headline"]),
		})
	}

	return nil
}

// readCSV reads a header-keyed CSV file into one map per row.
func readCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) < 1 {
		return nil, nil
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[strings.TrimSpace(col)] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func csvFloat(row map[string]string, key string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(row[key]), 64)
	if err != nil {
		return 0
	}
	return v
}

func csvBool(row map[string]string, key string) bool {
	return strings.EqualFold(strings.TrimSpace(row[key]), "true")
}
