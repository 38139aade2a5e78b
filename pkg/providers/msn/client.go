package msn

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"vinalytics-hq/mekong/pkg/market"
	"vinalytics-hq/mekong/pkg/providers"
)

// DefaultBaseURL is MSN Money's asset API endpoint.
const DefaultBaseURL = "https://assets.msn.com/service/Finance"

// defaultAPIKey is the public key MSN's own web client ships; operators
// can override it in configuration when MSN rotates it.
const defaultAPIKey = "0QfOX3Vn51YCzitbLaRkTTBadtWpgTN8NZLW0C1SEM"

// Adapter is the MSN source adapter. It implements providers.Adapter.
type Adapter struct {
	*providers.HTTPAdapter
}

// NewAdapter creates an MSN adapter from the given configuration.
func NewAdapter(config providers.AdapterConfig) (*Adapter, error) {
	config.Source = market.SourceMSN
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.APIKey == "" {
		config.APIKey = defaultAPIKey
	}

	a := &Adapter{
		HTTPAdapter: providers.NewHTTPAdapter(config),
	}

	slog.Info("MSN adapter initialized", "base_url", config.BaseURL)
	return a, nil
}

// chartPoint is one candle in MSN's chart series.
type chartPoint struct {
	TimeStamp string  `json:"timeStamp"`
	OpenPrice float64 `json:"openPrice"`
	HighPrice float64 `json:"highPrice"`
	LowPrice  float64 `json:"lowPrice"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
}

// chartResponse wraps MSN's chart payload.
type chartResponse struct {
	Charts []struct {
		Series []chartPoint `json:"series"`
	} `json:"charts"`
}

// Fetch executes one typed query against MSN. Only quote history and the
// price board are available; filings-style reports fail permanently so the
// dispatcher does not burn retries on them.
func (a *Adapter) Fetch(ctx context.Context, query *market.Query) (*market.Table, error) {
	if err := query.Validate(); err != nil {
		return nil, &providers.QueryError{Source: string(market.SourceMSN), Message: err.Error()}
	}

	switch query.Report {
	case market.ReportPriceHistory, market.ReportPriceBoard:
		return a.fetchChart(ctx, query)
	default:
		return nil, &providers.QueryError{
			Source:  string(market.SourceMSN),
			Message: fmt.Sprintf("MSN does not serve report kind %q", query.Report),
		}
	}
}

// fetchChart retrieves the candle series for a symbol.
func (a *Adapter) fetchChart(ctx context.Context, query *market.Query) (*market.Table, error) {
	params := url.Values{}
	params.Set("apikey", a.Config().APIKey)
	params.Set("ids", query.Symbol)
	params.Set("type", "All")
	params.Set("timeframe", "1")
	if !query.Range.IsZero() {
		params.Set("startTime", query.Range.Start)
		params.Set("endTime", query.Range.End)
	}

	var resp chartResponse
	endpoint := fmt.Sprintf("%s/Charts/TimeRange?%s", a.Config().BaseURL, params.Encode())
	if err := a.DoJSONRequest(ctx, http.MethodGet, endpoint, nil, &resp, nil); err != nil {
		return nil, err
	}

	if len(resp.Charts) == 0 || len(resp.Charts[0].Series) == 0 {
		return nil, &providers.SymbolNotFoundError{Source: string(market.SourceMSN), Symbol: query.Symbol}
	}

	return seriesTable(resp.Charts[0].Series, query.Range), nil
}

// seriesTable converts MSN chart points to the normalized history table,
// keeping only points inside the requested range when one was given.
func seriesTable(series []chartPoint, r market.DateRange) *market.Table {
	table := market.NewTable(providers.HistoryColumns...)
	for _, p := range series {
		day := pointDay(p.TimeStamp)
		if !r.IsZero() && (day < r.Start || day > r.End) {
			continue
		}
		table.Rows = append(table.Rows, []string{
			day,
			strconv.FormatFloat(p.OpenPrice, 'f', -1, 64),
			strconv.FormatFloat(p.HighPrice, 'f', -1, 64),
			strconv.FormatFloat(p.LowPrice, 'f', -1, 64),
			strconv.FormatFloat(p.Price, 'f', -1, 64),
			strconv.FormatFloat(p.Volume, 'f', -1, 64),
		})
	}
	return table
}

// pointDay trims MSN's timestamp ("2024-01-02T00:00:00") to a date.
func pointDay(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return s
}
