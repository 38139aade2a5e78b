package vci

import (
	"strconv"
	"time"

	"vinalytics-hq/mekong/pkg/market"
	"vinalytics-hq/mekong/pkg/providers"
)

// candleTable converts VCI's column-oriented chart payload into the
// normalized history table. The t/o/h/l/c/v arrays must be row-aligned;
// a length mismatch means a truncated upstream response.
func candleTable(resp *chartResponse, interval market.Interval) (*market.Table, error) {
	n := len(resp.T)
	if len(resp.O) != n || len(resp.H) != n || len(resp.L) != n || len(resp.C) != n || len(resp.V) != n {
		return nil, &providers.ParseError{
			Source: string(market.SourceVCI),
			Cause:  errMisalignedArrays,
		}
	}

	table := market.NewTable(providers.HistoryColumns...)
	for i := 0; i < n; i++ {
		table.Rows = append(table.Rows, []string{
			formatCandleTime(resp.T[i], interval),
			formatPrice(resp.O[i]),
			formatPrice(resp.H[i]),
			formatPrice(resp.L[i]),
			formatPrice(resp.C[i]),
			strconv.FormatFloat(resp.V[i], 'f', -1, 64),
		})
	}
	return table, nil
}

// errMisalignedArrays flags a chart payload whose value arrays disagree
// in length.
var errMisalignedArrays = &misalignedError{}

type misalignedError struct{}

func (*misalignedError) Error() string {
	return "chart arrays have mismatched lengths"
}

// formatCandleTime renders a unix timestamp as a date for daily and
// coarser intervals, and as a full timestamp for intraday ones.
func formatCandleTime(unix int64, interval market.Interval) string {
	t := time.Unix(unix, 0).UTC()
	switch interval {
	case market.IntervalDaily, market.IntervalWeekly, market.IntervalMonthly:
		return t.Format(market.DateLayout)
	default:
		return t.Format("2006-01-02 15:04:05")
	}
}

// formatPrice renders a price without exponent notation or trailing zeros.
func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
