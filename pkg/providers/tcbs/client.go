package tcbs

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vinalytics-hq/mekong/pkg/market"
	"vinalytics-hq/mekong/pkg/providers"
)

// DefaultBaseURL is TCBS's public API endpoint.
const DefaultBaseURL = "https://apipubaws.tcbs.com.vn"

// Adapter is the TCBS source adapter. It implements providers.Adapter.
type Adapter struct {
	*providers.HTTPAdapter
}

// NewAdapter creates a TCBS adapter from the given configuration.
func NewAdapter(config providers.AdapterConfig) (*Adapter, error) {
	config.Source = market.SourceTCBS
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	a := &Adapter{
		HTTPAdapter: providers.NewHTTPAdapter(config),
	}

	slog.Info("TCBS adapter initialized", "base_url", config.BaseURL)
	return a, nil
}

// Fetch executes one typed query against TCBS.
func (a *Adapter) Fetch(ctx context.Context, query *market.Query) (*market.Table, error) {
	if err := query.Validate(); err != nil {
		return nil, &providers.QueryError{Source: string(market.SourceTCBS), Message: err.Error()}
	}

	if query.Report == market.ReportPriceHistory {
		return a.fetchHistory(ctx, query)
	}
	return a.fetchDataset(ctx, query)
}

// bar is one row of TCBS's long-term bars payload.
type bar struct {
	TradingDate string  `json:"tradingDate"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      int64   `json:"volume"`
}

// barsResponse wraps the bars payload.
type barsResponse struct {
	Data   []bar  `json:"data"`
	Ticker string `json:"ticker"`
}

// fetchHistory retrieves candles through the bars-long-term endpoint.
func (a *Adapter) fetchHistory(ctx context.Context, query *market.Query) (*market.Table, error) {
	if query.Range.IsZero() {
		return nil, &providers.QueryError{
			Source:  string(market.SourceTCBS),
			Message: "price history requires a date range",
		}
	}

	to, err := time.Parse(market.DateLayout, query.Range.End)
	if err != nil {
		return nil, &providers.QueryError{Source: string(market.SourceTCBS), Message: err.Error()}
	}

	params := url.Values{}
	params.Set("ticker", query.Symbol)
	params.Set("type", "stock")
	params.Set("resolution", resolution(query.Interval))
	params.Set("to", strconv.FormatInt(to.Add(24*time.Hour).Unix(), 10))
	params.Set("countBack", strconv.Itoa(barCount(query.Range)))

	var resp barsResponse
	endpoint := fmt.Sprintf("%s/stock-insight/v2/stock/bars-long-term?%s",
		a.Config().BaseURL, params.Encode())
	if err := a.DoJSONRequest(ctx, http.MethodGet, endpoint, nil, &resp, nil); err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, &providers.SymbolNotFoundError{Source: string(market.SourceTCBS), Symbol: query.Symbol}
	}

	return barTable(resp.Data, query.Range), nil
}

// barTable converts TCBS bars to the normalized history table, dropping
// rows outside the requested range (countBack can overshoot the start).
func barTable(bars []bar, r market.DateRange) *market.Table {
	table := market.NewTable(providers.HistoryColumns...)
	for _, b := range bars {
		day := tradingDay(b.TradingDate)
		if day < r.Start || day > r.End {
			continue
		}
		table.Rows = append(table.Rows, []string{
			day,
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatInt(b.Volume, 10),
		})
	}
	return table
}

// tradingDay trims TCBS's timestamp ("2024-01-02T00:00:00.000Z") to a date.
func tradingDay(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return s
}

// datasetPaths maps report kinds to TCBS analysis endpoints.
var datasetPaths = map[market.ReportKind]string{
	market.ReportCompanyOverview:     "tcanalysis/v1/ticker/%s/overview",
	market.ReportCompanyShareholders: "tcanalysis/v1/company/%s/large-share-holders",
	market.ReportCompanyOfficers:     "tcanalysis/v1/company/%s/key-officers",
	market.ReportCompanySubsidiaries: "tcanalysis/v1/company/%s/sub-companies",
	market.ReportCompanyAffiliate:    "tcanalysis/v1/company/%s/affiliate",
	market.ReportCompanyNews:         "tcanalysis/v1/ticker/%s/activity-news",
	market.ReportCompanyEvents:       "tcanalysis/v1/ticker/%s/events-news",
	market.ReportBalanceSheet:        "tcanalysis/v1/finance/%s/balancesheet",
	market.ReportIncomeStatement:     "tcanalysis/v1/finance/%s/incomestatement",
	market.ReportCashFlow:            "tcanalysis/v1/finance/%s/cashflow",
	market.ReportFinancialRatios:     "tcanalysis/v1/finance/%s/financialratio",
	market.ReportTradingStats:        "stock-insight/v1/intraday/%s/his/paging",
	market.ReportSideStats:           "stock-insight/v1/intraday/%s/side-stats",
	market.ReportPriceBoard:          "stock-insight/v1/stock/second-tc-price",
	market.ReportForeignTrade:        "stock-insight/v1/intraday/%s/foreign-trade",
	market.ReportPropTrade:           "stock-insight/v1/intraday/%s/prop-trade",
	market.ReportInsiderDeal:         "tcanalysis/v1/company/%s/insider-dealing",
	market.ReportOrderStats:          "stock-insight/v1/intraday/%s/order-stats",
}

// listKeys names the wrapper array TCBS uses per dataset; payloads arrive
// either as a bare object, a bare array, or {"listX": [...]}.
var listKeys = []string{"listShareHolder", "listKeyOfficer", "listSubCompany", "listActivityNews", "listEventNews", "listInsiderDealing", "data"}

// fetchDataset retrieves a dataset endpoint and flattens the payload.
func (a *Adapter) fetchDataset(ctx context.Context, query *market.Query) (*market.Table, error) {
	pathTmpl, ok := datasetPaths[query.Report]
	if !ok {
		return nil, &providers.QueryError{
			Source:  string(market.SourceTCBS),
			Message: fmt.Sprintf("unsupported report kind %q", query.Report),
		}
	}

	path := pathTmpl
	if strings.Contains(pathTmpl, "%s") {
		path = fmt.Sprintf(pathTmpl, query.Symbol)
	}

	params := url.Values{}
	if query.Options.Period == "annual" {
		params.Set("yearly", "1")
	} else if query.Options.Period != "" {
		params.Set("yearly", "0")
	}
	if query.Options.Limit > 0 {
		params.Set("size", strconv.Itoa(query.Options.Limit))
	}
	if query.Report == market.ReportPriceBoard {
		params.Set("tickers", query.Symbol)
	}

	endpoint := fmt.Sprintf("%s/%s", a.Config().BaseURL, path)
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var payload any
	if err := a.DoJSONRequest(ctx, http.MethodGet, endpoint, nil, &payload, nil); err != nil {
		return nil, err
	}

	records := recordsFromPayload(payload)
	if len(records) == 0 {
		return nil, &providers.SymbolNotFoundError{Source: string(market.SourceTCBS), Symbol: query.Symbol}
	}

	return providers.TableFromRecords(records, nil), nil
}

// recordsFromPayload normalizes TCBS's three payload shapes into a record
// list: an object becomes a single row, an array becomes rows, and a
// wrapper object is unwrapped through the known list keys.
func recordsFromPayload(payload any) []map[string]any {
	switch v := payload.(type) {
	case []any:
		return anySliceToRecords(v)
	case map[string]any:
		for _, key := range listKeys {
			if inner, ok := v[key].([]any); ok {
				return anySliceToRecords(inner)
			}
		}
		if len(v) > 0 {
			return []map[string]any{v}
		}
	}
	return nil
}

// anySliceToRecords filters a decoded array down to its object elements.
func anySliceToRecords(items []any) []map[string]any {
	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, rec)
		}
	}
	return records
}

// resolution maps gateway intervals to TCBS bar resolutions.
func resolution(interval market.Interval) string {
	switch interval {
	case market.IntervalWeekly:
		return "W"
	case market.IntervalMonthly:
		return "M"
	case market.IntervalMinute:
		return "1"
	case market.IntervalMinute5:
		return "5"
	case market.IntervalMinute15:
		return "15"
	case market.IntervalMinute30:
		return "30"
	case market.IntervalHourly:
		return "60"
	default:
		return "D"
	}
}

// barCount estimates how many bars cover the requested range. TCBS pages
// by countBack rather than a start bound; overshoot is trimmed locally.
func barCount(r market.DateRange) int {
	start, err1 := time.Parse(market.DateLayout, r.Start)
	end, err2 := time.Parse(market.DateLayout, r.End)
	if err1 != nil || err2 != nil {
		return 365
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	return days
}
