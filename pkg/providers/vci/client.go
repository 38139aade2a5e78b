package vci

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"vinalytics-hq/mekong/pkg/market"
	"vinalytics-hq/mekong/pkg/providers"
)

// DefaultBaseURL is VCI's trading API endpoint.
const DefaultBaseURL = "https://trading.vietcap.com.vn/api"

// Adapter is the VCI source adapter. It implements providers.Adapter.
type Adapter struct {
	*providers.HTTPAdapter
}

// NewAdapter creates a VCI adapter from the given configuration.
func NewAdapter(config providers.AdapterConfig) (*Adapter, error) {
	config.Source = market.SourceVCI
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	a := &Adapter{
		HTTPAdapter: providers.NewHTTPAdapter(config),
	}

	slog.Info("VCI adapter initialized", "base_url", config.BaseURL)
	return a, nil
}

// Fetch executes one typed query against VCI.
func (a *Adapter) Fetch(ctx context.Context, query *market.Query) (*market.Table, error) {
	if err := query.Validate(); err != nil {
		return nil, &providers.QueryError{Source: string(market.SourceVCI), Message: err.Error()}
	}

	if query.Report == market.ReportPriceHistory {
		return a.fetchHistory(ctx, query)
	}
	return a.fetchDataset(ctx, query)
}

// chartRequest is VCI's candle request body.
type chartRequest struct {
	TimeFrame string   `json:"timeFrame"`
	Symbols   []string `json:"symbols"`
	From      int64    `json:"from"`
	To        int64    `json:"to"`
}

// chartResponse is VCI's column-oriented candle payload.
type chartResponse struct {
	Symbol string    `json:"symbol"`
	T      []int64   `json:"t"`
	O      []float64 `json:"o"`
	H      []float64 `json:"h"`
	L      []float64 `json:"l"`
	C      []float64 `json:"c"`
	V      []float64 `json:"v"`
}

// fetchHistory retrieves candles through the batch chart endpoint.
func (a *Adapter) fetchHistory(ctx context.Context, query *market.Query) (*market.Table, error) {
	from, to, err := rangeToUnix(query.Range)
	if err != nil {
		return nil, &providers.QueryError{Source: string(market.SourceVCI), Message: err.Error()}
	}

	req := &chartRequest{
		TimeFrame: timeFrame(query.Interval),
		Symbols:   []string{query.Symbol},
		From:      from,
		To:        to,
	}

	var resp []chartResponse
	url := fmt.Sprintf("%s/chart/OHLCChart/gap-chart", a.Config().BaseURL)
	if err := a.DoJSONRequest(ctx, http.MethodPost, url, req, &resp, nil); err != nil {
		return nil, err
	}

	if len(resp) == 0 {
		return nil, &providers.SymbolNotFoundError{Source: string(market.SourceVCI), Symbol: query.Symbol}
	}

	return candleTable(&resp[0], query.Interval)
}

// datasetPaths maps report kinds to VCI dataset endpoints.
var datasetPaths = map[market.ReportKind]string{
	market.ReportCompanyOverview:     "company/%s/overview",
	market.ReportCompanyShareholders: "company/%s/shareholders",
	market.ReportCompanyOfficers:     "company/%s/officers",
	market.ReportCompanySubsidiaries: "company/%s/subsidiaries",
	market.ReportCompanyAffiliate:    "company/%s/affiliate",
	market.ReportCompanyNews:         "company/%s/news",
	market.ReportCompanyEvents:       "company/%s/events",
	market.ReportBalanceSheet:        "financial/%s/balance-sheet",
	market.ReportIncomeStatement:     "financial/%s/income-statement",
	market.ReportCashFlow:            "financial/%s/cash-flow",
	market.ReportFinancialRatios:     "financial/%s/ratios",
	market.ReportTradingStats:        "trading/%s/stats",
	market.ReportSideStats:           "trading/%s/side-stats",
	market.ReportPriceBoard:          "trading/price-board",
	market.ReportForeignTrade:        "trading/%s/foreign-trade",
	market.ReportPropTrade:           "trading/%s/prop-trade",
	market.ReportInsiderDeal:         "trading/%s/insider-deal",
	market.ReportOrderStats:          "trading/%s/order-stats",
}

// preferredColumns pins the leading column order per dataset family so
// tables come out stable regardless of JSON key order.
var preferredColumns = map[market.ReportKind][]string{
	market.ReportCompanyOverview:     {"symbol", "exchange", "industry", "company_type", "established_year", "outstanding_share", "issue_share", "website"},
	market.ReportCompanyShareholders: {"share_holder", "quantity", "share_own_percent", "update_date"},
	market.ReportCompanyOfficers:     {"officer_name", "officer_position", "position_short_name", "quantity", "officer_own_percent"},
	market.ReportBalanceSheet:        {"period", "item", "value"},
	market.ReportIncomeStatement:     {"period", "item", "value"},
	market.ReportCashFlow:            {"period", "item", "value"},
	market.ReportFinancialRatios:     {"period", "category", "ratio", "value"},
	market.ReportTradingStats:        {"time", "price", "volume", "match_type"},
	market.ReportPriceBoard:          {"symbol", "ceiling", "floor", "ref_price", "match_price", "match_vol"},
}

// datasetQuery carries the optional knobs VCI dataset endpoints accept.
type datasetQuery struct {
	Period   string `json:"period,omitempty"`
	Lang     string `json:"lang,omitempty"`
	FilterBy string `json:"filter_by,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
}

// fetchDataset retrieves a row-oriented dataset and flattens it.
func (a *Adapter) fetchDataset(ctx context.Context, query *market.Query) (*market.Table, error) {
	pathTmpl, ok := datasetPaths[query.Report]
	if !ok {
		return nil, &providers.QueryError{
			Source:  string(market.SourceVCI),
			Message: fmt.Sprintf("unsupported report kind %q", query.Report),
		}
	}

	path := pathTmpl
	if query.Report != market.ReportPriceBoard {
		path = fmt.Sprintf(pathTmpl, query.Symbol)
	}

	body := &datasetQuery{
		Period:   query.Options.Period,
		Lang:     query.Options.Lang,
		FilterBy: query.Options.FilterBy,
		Limit:    query.Options.Limit,
		Start:    query.Range.Start,
		End:      query.Range.End,
	}

	var records []map[string]any
	url := fmt.Sprintf("%s/%s", a.Config().BaseURL, path)
	if err := a.DoJSONRequest(ctx, http.MethodPost, url, body, &records, nil); err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, &providers.SymbolNotFoundError{Source: string(market.SourceVCI), Symbol: query.Symbol}
	}

	return providers.TableFromRecords(records, preferredColumns[query.Report]), nil
}

// timeFrame maps gateway intervals to VCI chart time frames.
func timeFrame(interval market.Interval) string {
	switch interval {
	case market.IntervalWeekly:
		return "ONE_WEEK"
	case market.IntervalMonthly:
		return "ONE_MONTH"
	case market.IntervalMinute:
		return "ONE_MINUTE"
	case market.IntervalMinute5:
		return "FIVE_MINUTES"
	case market.IntervalMinute15:
		return "FIFTEEN_MINUTES"
	case market.IntervalMinute30:
		return "THIRTY_MINUTES"
	case market.IntervalHourly:
		return "ONE_HOUR"
	default:
		return "ONE_DAY"
	}
}

// rangeToUnix converts a canonical date range into the unix bounds VCI
// expects, end exclusive at the following midnight.
func rangeToUnix(r market.DateRange) (int64, int64, error) {
	if r.IsZero() {
		return 0, 0, fmt.Errorf("price history requires a date range")
	}
	start, err := time.Parse(market.DateLayout, r.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err := time.Parse(market.DateLayout, r.End)
	if err != nil {
		return 0, 0, err
	}
	return start.Unix(), end.Add(24 * time.Hour).Unix(), nil
}
