package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"vinalytics-hq/mekong/pkg/dispatch"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("writing response failed", "error", err)
	}
}

// writeDetail writes the gateway's uniform error body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeOutcomeError maps a failed dispatch outcome to an HTTP error.
// Permanent failures are the caller's fault (bad symbol, unsupported
// report) and map to 400; transient exhaustion means the upstream kept
// failing and maps to 502. Cancelled outcomes get no response: the client
// is gone or the timeout middleware already answered.
func writeOutcomeError(w http.ResponseWriter, outcome dispatch.Outcome) {
	switch outcome.Status {
	case dispatch.StatusCancelled:
		return
	case dispatch.StatusFailure:
		if outcome.Kind == dispatch.ErrorKindTransient {
			writeDetail(w, http.StatusBadGateway, "Upstream data source unavailable, please retry")
			return
		}
		writeDetail(w, http.StatusBadRequest, outcome.Err.Error())
	}
}
