package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"vinalytics-hq/mekong/pkg/format"
	"vinalytics-hq/mekong/pkg/market"
)

// maxBodyBytes caps request body sizes; every request here is a small
// JSON document.
const maxBodyBytes = 1 << 20

// registerRequest is the body of POST /auth/register.
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *registerRequest) validate() error {
	if len(r.Username) < 3 {
		return fmt.Errorf("username must be at least 3 characters")
	}
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if len(r.Password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	return nil
}

// loginRequest is the body of POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// dataRequest is the shared body of the company, financial, and trading
// endpoint families. Fields beyond symbol and source apply only where the
// report kind uses them.
type dataRequest struct {
	Symbol    string `json:"symbol"`
	Source    string `json:"source"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Interval  string `json:"interval"`
	Period    string `json:"period"`
	Lang      string `json:"lang"`
	FilterBy  string `json:"filter_by"`
	Limit     int    `json:"limit"`

	DropNA         bool   `json:"dropna"`
	FlattenColumns bool   `json:"flatten_columns"`
	Separator      string `json:"separator"`
}

// formatOptions extracts the shaping options from the request.
func (d *dataRequest) formatOptions() format.Options {
	return format.Options{
		DropNA:         d.DropNA,
		FlattenColumns: d.FlattenColumns,
		Separator:      d.Separator,
	}
}

// toQuery builds the dispatch query for the given report kind.
func (d *dataRequest) toQuery(report market.ReportKind) (*market.Query, error) {
	source, err := market.ParseSource(d.Source)
	if err != nil {
		return nil, err
	}

	query := &market.Query{
		Source: source,
		Report: report,
		Options: market.QueryOptions{
			Period:   d.Period,
			Lang:     d.Lang,
			FilterBy: d.FilterBy,
			Limit:    d.Limit,
		},
	}

	if d.Symbol != "" || report != market.ReportPriceBoard {
		symbol, err := market.NormalizeSymbol(d.Symbol)
		if err != nil {
			return nil, err
		}
		query.Symbol = symbol
	}

	if d.StartDate != "" || d.EndDate != "" {
		r, err := market.NewDateRange(d.StartDate, d.EndDate)
		if err != nil {
			return nil, err
		}
		query.Range = r
	}

	if d.Interval != "" {
		interval, err := market.ParseInterval(d.Interval)
		if err != nil {
			return nil, err
		}
		query.Interval = interval
	}

	return query, nil
}

// downloadRequest is the body of the single-symbol download endpoints.
type downloadRequest struct {
	Symbol    string `json:"symbol"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Source    string `json:"source"`
	Interval  string `json:"interval"`
}

func (d *downloadRequest) toQuery() (*market.Query, error) {
	symbol, err := market.NormalizeSymbol(d.Symbol)
	if err != nil {
		return nil, err
	}
	source, err := market.ParseSource(d.Source)
	if err != nil {
		return nil, err
	}
	r, err := market.NewDateRange(d.StartDate, d.EndDate)
	if err != nil {
		return nil, err
	}
	interval, err := market.ParseInterval(d.Interval)
	if err != nil {
		return nil, err
	}

	return &market.Query{
		Symbol:   symbol,
		Source:   source,
		Report:   market.ReportPriceHistory,
		Range:    r,
		Interval: interval,
	}, nil
}

// multiDownloadRequest is the body of POST /api/v1/download/multiple.
type multiDownloadRequest struct {
	Symbols   []string `json:"symbols"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Source    string   `json:"source"`
	Interval  string   `json:"interval"`
	Combine   bool     `json:"combine"`
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("reading request body: %w", err)
	}
	if len(body) == 0 {
		return fmt.Errorf("request body is required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// companyReports maps company endpoint names to report kinds.
var companyReports = map[string]market.ReportKind{
	"overview":     market.ReportCompanyOverview,
	"shareholders": market.ReportCompanyShareholders,
	"officers":     market.ReportCompanyOfficers,
	"subsidiaries": market.ReportCompanySubsidiaries,
	"affiliate":    market.ReportCompanyAffiliate,
	"news":         market.ReportCompanyNews,
	"events":       market.ReportCompanyEvents,
}

// financialReports maps financial endpoint names to report kinds.
var financialReports = map[string]market.ReportKind{
	"balance-sheet":    market.ReportBalanceSheet,
	"income-statement": market.ReportIncomeStatement,
	"cash-flow":        market.ReportCashFlow,
	"ratios":           market.ReportFinancialRatios,
}

// tradingReports maps trading endpoint names to report kinds.
var tradingReports = map[string]market.ReportKind{
	"stats":         market.ReportTradingStats,
	"side-stats":    market.ReportSideStats,
	"price-board":   market.ReportPriceBoard,
	"price-history": market.ReportPriceHistory,
	"foreign-trade": market.ReportForeignTrade,
	"prop-trade":    market.ReportPropTrade,
	"insider-deal":  market.ReportInsiderDeal,
	"order-stats":   market.ReportOrderStats,
}
