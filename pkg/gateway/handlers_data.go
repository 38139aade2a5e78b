package gateway

import (
	"net/http"

	"vinalytics-hq/mekong/pkg/dispatch"
	"vinalytics-hq/mekong/pkg/format"
	"vinalytics-hq/mekong/pkg/market"
)

// handleReport serves one endpoint of the company, financial, or trading
// family. The three families share request shape and response shape; only
// the report kind differs.
func (s *Server) handleReport(report market.ReportKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dataRequest
		if err := decodeBody(r, &req); err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		query, err := req.toQuery(report)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		outcome := s.dispatcher.Dispatch(r.Context(), query)
		if outcome.Status != dispatch.StatusSuccess {
			writeOutcomeError(w, outcome)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"symbol": query.Symbol,
			"source": string(query.Source),
			"data":   format.JSON(outcome.Table, req.formatOptions()),
		})
	}
}
