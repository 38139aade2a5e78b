package market

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies an upstream market-data provider.
type Source string

// Supported data sources.
const (
	SourceVCI  Source = "vci"
	SourceTCBS Source = "tcbs"
	SourceMSN  Source = "msn"
)

// AllSources returns the supported source identifiers.
func AllSources() []Source {
	return []Source{SourceVCI, SourceTCBS, SourceMSN}
}

// ParseSource validates a source string (case-insensitive) and returns the
// canonical Source value.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(s)) {
	case SourceVCI:
		return SourceVCI, nil
	case SourceTCBS:
		return SourceTCBS, nil
	case SourceMSN:
		return SourceMSN, nil
	}
	return "", fmt.Errorf("source must be one of: vci, tcbs, msn (got %q)", s)
}

// Interval identifies a candle aggregation window for historical quotes.
type Interval string

// Supported intervals, matching the upstream chart APIs.
const (
	IntervalDaily     Interval = "D"
	IntervalWeekly    Interval = "1W"
	IntervalMonthly   Interval = "1M"
	IntervalMinute    Interval = "1m"
	IntervalMinute5   Interval = "5m"
	IntervalMinute15  Interval = "15m"
	IntervalMinute30  Interval = "30m"
	IntervalHourly    Interval = "1H"
)

// ParseInterval validates an interval string and returns the canonical value.
// An empty string defaults to daily.
func ParseInterval(s string) (Interval, error) {
	if s == "" {
		return IntervalDaily, nil
	}
	switch Interval(s) {
	case IntervalDaily, IntervalWeekly, IntervalMonthly,
		IntervalMinute, IntervalMinute5, IntervalMinute15, IntervalMinute30,
		IntervalHourly:
		return Interval(s), nil
	}
	return "", fmt.Errorf("interval must be one of: D, 1W, 1M, 1m, 5m, 15m, 30m, 1H (got %q)", s)
}

// ReportKind names the typed dataset a query asks a provider for.
type ReportKind string

// Report kinds grouped by API family.
const (
	// Historical quotes (download endpoints).
	ReportPriceHistory ReportKind = "price_history"

	// Company datasets.
	ReportCompanyOverview     ReportKind = "company_overview"
	ReportCompanyShareholders ReportKind = "company_shareholders"
	ReportCompanyOfficers     ReportKind = "company_officers"
	ReportCompanySubsidiaries ReportKind = "company_subsidiaries"
	ReportCompanyAffiliate    ReportKind = "company_affiliate"
	ReportCompanyNews         ReportKind = "company_news"
	ReportCompanyEvents       ReportKind = "company_events"

	// Financial statements.
	ReportBalanceSheet    ReportKind = "balance_sheet"
	ReportIncomeStatement ReportKind = "income_statement"
	ReportCashFlow        ReportKind = "cash_flow"
	ReportFinancialRatios ReportKind = "financial_ratios"

	// Trading datasets.
	ReportTradingStats ReportKind = "trading_stats"
	ReportSideStats    ReportKind = "side_stats"
	ReportPriceBoard   ReportKind = "price_board"
	ReportForeignTrade ReportKind = "foreign_trade"
	ReportPropTrade    ReportKind = "prop_trade"
	ReportInsiderDeal  ReportKind = "insider_deal"
	ReportOrderStats   ReportKind = "order_stats"
)

// DateLayout is the canonical date format used throughout the gateway.
const DateLayout = "2006-01-02"

// dateLayoutDMY is the legacy day-first layout still accepted on input.
const dateLayoutDMY = "02-01-2006"

// maxDateRange caps a historical query's span.
const maxDateRange = 5 * 365 * 24 * time.Hour

// NormalizeDate parses a date in YYYY-MM-DD or DD-MM-YYYY form and returns
// it in canonical YYYY-MM-DD form.
func NormalizeDate(s string) (string, error) {
	if t, err := time.Parse(dateLayoutDMY, s); err == nil {
		return t.Format(DateLayout), nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.Format(DateLayout), nil
	}
	return "", fmt.Errorf("invalid date %q: use DD-MM-YYYY or YYYY-MM-DD", s)
}

// DateRange is an inclusive start/end pair in canonical form.
type DateRange struct {
	Start string
	End   string
}

// NewDateRange normalizes and validates a start/end pair: both dates must
// parse, end must not precede start, and the span must not exceed 5 years.
func NewDateRange(start, end string) (DateRange, error) {
	s, err := NormalizeDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := NormalizeDate(end)
	if err != nil {
		return DateRange{}, err
	}

	st, _ := time.Parse(DateLayout, s)
	et, _ := time.Parse(DateLayout, e)
	if et.Before(st) {
		return DateRange{}, fmt.Errorf("end date %s precedes start date %s", e, s)
	}
	if et.Sub(st) > maxDateRange {
		return DateRange{}, fmt.Errorf("date range exceeds 5 years")
	}

	return DateRange{Start: s, End: e}, nil
}

// IsZero reports whether the range is unset.
func (r DateRange) IsZero() bool {
	return r.Start == "" && r.End == ""
}

// QueryOptions carries the optional, endpoint-specific knobs a provider may
// honor when building its upstream request.
type QueryOptions struct {
	// Period selects "quarter" or "annual" for financial statements.
	Period string

	// Lang selects the label language ("vi" or "en") for financial reports.
	Lang string

	// FilterBy narrows officer/subsidiary listings ("all", "working", ...).
	FilterBy string

	// Limit caps the number of rows for trading statistics.
	Limit int
}

// Query is the immutable, per-request description of one typed fetch from
// one source. Multi-symbol requests fan out into independent per-symbol
// queries; a Query never names more than one symbol or source.
type Query struct {
	// Symbol is the stock ticker, uppercase, at least 3 characters.
	Symbol string

	// Source names the upstream provider to dispatch to.
	Source Source

	// Report selects the dataset to fetch.
	Report ReportKind

	// Range bounds historical queries; zero for point-in-time datasets.
	Range DateRange

	// Interval selects the candle window for price history.
	Interval Interval

	// Options carries endpoint-specific knobs.
	Options QueryOptions
}

// NormalizeSymbol validates and canonicalizes a ticker symbol.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if len(s) < 3 {
		return "", fmt.Errorf("symbol must be at least 3 characters (got %q)", symbol)
	}
	return s, nil
}

// Validate checks the query's mandatory fields.
func (q *Query) Validate() error {
	if _, err := NormalizeSymbol(q.Symbol); err != nil {
		// Price board queries aggregate multiple symbols upstream and may
		// carry an empty symbol.
		if q.Report != ReportPriceBoard {
			return err
		}
	}
	if _, err := ParseSource(string(q.Source)); err != nil {
		return err
	}
	if q.Report == "" {
		return fmt.Errorf("report kind is required")
	}
	return nil
}
