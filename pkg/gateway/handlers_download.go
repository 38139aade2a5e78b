package gateway

import (
	"fmt"
	"net/http"

	"vinalytics-hq/mekong/pkg/dispatch"
	"vinalytics-hq/mekong/pkg/format"
	"vinalytics-hq/mekong/pkg/market"
)

// handleDownloadCSV streams one symbol's price history as a CSV
// attachment. POST /api/v1/download/csv.
func (s *Server) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	query, err := req.toQuery()
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome := s.dispatcher.Dispatch(r.Context(), query)
	if outcome.Status != dispatch.StatusSuccess {
		writeOutcomeError(w, outcome)
		return
	}

	csvData, err := format.WriteCSV(format.Tag(outcome.Table, query.Symbol))
	if err != nil {
		s.logger.Error("encoding csv failed", "symbol", query.Symbol, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	filename := fmt.Sprintf("%s_%s_%s.csv", query.Symbol, query.Range.Start, query.Range.End)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(csvData)); err != nil {
		s.logger.Debug("writing csv body failed", "error", err)
	}
}

// handleDownloadCSVText returns one symbol's price history as a CSV
// string inside a JSON envelope. POST /api/v1/download/csv-text.
func (s *Server) handleDownloadCSVText(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	query, err := req.toQuery()
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome := s.dispatcher.Dispatch(r.Context(), query)
	if outcome.Status != dispatch.StatusSuccess {
		writeOutcomeError(w, outcome)
		return
	}

	csvData, err := format.WriteCSV(format.Tag(outcome.Table, query.Symbol))
	if err != nil {
		s.logger.Error("encoding csv failed", "symbol", query.Symbol, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":    query.Symbol,
		"source":    string(query.Source),
		"csv_data":  csvData,
		"data_size": len(csvData),
	})
}

// handleDownloadMultiple fans a price-history request out over several
// symbols against one source. POST /api/v1/download/multiple.
//
// With combine=true the per-symbol tables merge into one table tagged by
// the ticket column; any symbol failure fails the whole request. With
// combine=false each symbol yields an independent csv_data entry, and a
// failed symbol yields a null entry instead of failing the rest.
func (s *Server) handleDownloadMultiple(w http.ResponseWriter, r *http.Request) {
	var req multiDownloadRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Symbols) == 0 {
		writeDetail(w, http.StatusBadRequest, "at least one symbol is required")
		return
	}

	base := downloadRequest{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Source:    req.Source,
		Interval:  req.Interval,
	}

	queries := make([]*market.Query, 0, len(req.Symbols))
	for _, symbol := range req.Symbols {
		dr := base
		dr.Symbol = symbol
		query, err := dr.toQuery()
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		queries = append(queries, query)
	}

	if req.Combine {
		s.downloadCombined(w, r, queries)
		return
	}
	s.downloadPerSymbol(w, r, queries)
}

// downloadCombined merges all symbols into one ticket-tagged CSV
// attachment.
func (s *Server) downloadCombined(w http.ResponseWriter, r *http.Request, queries []*market.Query) {
	results := make([]format.SymbolTable, 0, len(queries))
	for _, query := range queries {
		outcome := s.dispatcher.Dispatch(r.Context(), query)
		if outcome.Status != dispatch.StatusSuccess {
			writeOutcomeError(w, outcome)
			return
		}
		results = append(results, format.SymbolTable{Symbol: query.Symbol, Table: outcome.Table})
	}

	combined, err := format.Combine(results)
	if err != nil {
		s.logger.Error("combining tables failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	csvData, err := format.WriteCSV(combined)
	if err != nil {
		s.logger.Error("encoding csv failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	rng := queries[0].Range
	filename := fmt.Sprintf("combined_%s_%s.csv", rng.Start, rng.End)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(csvData)); err != nil {
		s.logger.Debug("writing csv body failed", "error", err)
	}
}

// downloadPerSymbol returns an independent CSV string per symbol. A
// failed symbol maps to null so one bad ticker cannot sink the batch.
func (s *Server) downloadPerSymbol(w http.ResponseWriter, r *http.Request, queries []*market.Query) {
	csvData := make(map[string]any, len(queries))
	symbols := make([]string, 0, len(queries))
	for _, query := range queries {
		symbols = append(symbols, query.Symbol)

		outcome := s.dispatcher.Dispatch(r.Context(), query)
		if outcome.Status == dispatch.StatusCancelled {
			return
		}
		if outcome.Status != dispatch.StatusSuccess {
			s.logger.Warn("symbol fetch failed",
				"symbol", query.Symbol,
				"source", string(query.Source),
				"error", outcome.Err)
			csvData[query.Symbol] = nil
			continue
		}

		encoded, err := format.WriteCSV(format.Tag(outcome.Table, query.Symbol))
		if err != nil {
			s.logger.Error("encoding csv failed", "symbol", query.Symbol, "error", err)
			csvData[query.Symbol] = nil
			continue
		}
		csvData[query.Symbol] = encoded
	}

	rng := queries[0].Range
	writeJSON(w, http.StatusOK, map[string]any{
		"source":        string(queries[0].Source),
		"symbols":       symbols,
		"start_date":    rng.Start,
		"end_date":      rng.End,
		"csv_data":      csvData,
		"total_symbols": len(queries),
	})
}
