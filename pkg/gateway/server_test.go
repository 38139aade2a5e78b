package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vinalytics-hq/mekong/pkg/auth"
	"vinalytics-hq/mekong/pkg/config"
	"vinalytics-hq/mekong/pkg/dispatch"
	"vinalytics-hq/mekong/pkg/market"
	"vinalytics-hq/mekong/pkg/providers"
	"vinalytics-hq/mekong/pkg/store"
	"vinalytics-hq/mekong/pkg/symbols"
)

type fakeAdapter struct {
	source market.Source
	fetch  func(ctx context.Context, query *market.Query) (*market.Table, error)
}

func (f *fakeAdapter) Fetch(ctx context.Context, query *market.Query) (*market.Table, error) {
	return f.fetch(ctx, query)
}

func (f *fakeAdapter) Source() market.Source { return f.source }

func (f *fakeAdapter) HealthCheck(context.Context) error { return nil }

func (f *fakeAdapter) IsHealthy() bool { return true }

func (f *fakeAdapter) Health() providers.AdapterHealth {
	return providers.AdapterHealth{Healthy: true}
}

func (f *fakeAdapter) Close() error { return nil }

// historyTable builds a two-row price history table for a symbol.
func historyTable() *market.Table {
	table := market.NewTable(providers.HistoryColumns...)
	table.AppendRow("2024-01-02", "85000", "86000", "84500", "85500", "1200000")
	table.AppendRow("2024-01-03", "85500", "87000", "85000", "86800", "1500000")
	return table
}

func newTestServer(t *testing.T, fetch func(ctx context.Context, query *market.Query) (*market.Table, error)) *Server {
	t.Helper()

	tokens, err := auth.NewTokenService("test-secret-please-rotate", 0)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	// Nanosecond backoff keeps retry paths instant in tests.
	policy := dispatch.Policy{
		MaxAttempts:    2,
		BackoffBase:    1,
		BackoffCap:     1,
		MaxTotalWait:   time.Second,
		AttemptTimeout: time.Second,
	}
	dispatcher, err := dispatch.New(policy, nil)
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}
	dispatcher.Register(&fakeAdapter{source: market.SourceVCI, fetch: fetch})

	server, err := NewServer(Options{
		Config:     config.GatewayConfig{},
		Version:    "test",
		Users:      store.NewMemoryStore(),
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Catalog:    symbols.NewCatalog(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return server
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return body
}

// TestRegisterLoginDownloadFlow walks the primary user journey: register,
// duplicate register, login, profile lookup, CSV download.
func TestRegisterLoginDownloadFlow(t *testing.T) {
	server := newTestServer(t, func(_ context.Context, _ *market.Query) (*market.Table, error) {
		return historyTable(), nil
	})
	handler := server.Handler()

	register := map[string]string{"username": "alice", "email": "a@x.com", "password": "pw12345"}
	rec := doJSON(t, handler, http.MethodPost, "/auth/register", "", register)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); body["username"] != "alice" {
		t.Errorf("register username = %v, want alice", body["username"])
	}

	rec = doJSON(t, handler, http.MethodPost, "/auth/register", "", register)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register status = %d, want 400", rec.Code)
	}
	if body := decodeJSON(t, rec); body["detail"] != "Username already registered" {
		t.Errorf("duplicate register detail = %v", body["detail"])
	}

	rec = doJSON(t, handler, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice", "password": "pw12345",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	loginBody := decodeJSON(t, rec)
	token, _ := loginBody["access_token"].(string)
	if token == "" {
		t.Fatal("login returned no access_token")
	}
	if loginBody["token_type"] != "bearer" {
		t.Errorf("token_type = %v, want bearer", loginBody["token_type"])
	}

	rec = doJSON(t, handler, http.MethodGet, "/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); body["username"] != "alice" || body["email"] != "a@x.com" {
		t.Errorf("me body = %v", body)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/download/csv", token, map[string]string{
		"symbol": "VCB", "start_date": "2024-01-01", "end_date": "2024-01-31",
		"source": "vci", "interval": "D",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=VCB_2024-01-01_2024-01-31.csv" {
		t.Errorf("Content-Disposition = %q", got)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if lines[0] != "time,ticket,open,high,low,close,volume" {
		t.Errorf("csv header = %q", lines[0])
	}
	if len(lines) != 3 {
		t.Errorf("csv line count = %d, want 3", len(lines))
	}
}

func TestProtectedRoutesRejectWithoutToken(t *testing.T) {
	server := newTestServer(t, func(_ context.Context, _ *market.Query) (*market.Table, error) {
		t.Error("dispatch reached without authentication")
		return nil, nil
	})
	handler := server.Handler()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/auth/me"},
		{http.MethodPost, "/api/v1/download/csv"},
		{http.MethodPost, "/api/v1/company/overview"},
		{http.MethodGet, "/api/v1/symbols"},
	}
	for _, p := range paths {
		rec := doJSON(t, handler, p.method, p.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", p.method, p.path, rec.Code)
		}
		if got := rec.Header().Get("WWW-Authenticate"); got != "Bearer" {
			t.Errorf("%s %s WWW-Authenticate = %q", p.method, p.path, got)
		}
	}
}

func TestLoginBadCredentials(t *testing.T) {
	server := newTestServer(t, nil)
	handler := server.Handler()

	register := map[string]string{"username": "bob", "email": "b@x.com", "password": "secret1"}
	if rec := doJSON(t, handler, http.MethodPost, "/auth/register", "", register); rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d", rec.Code)
	}

	cases := []map[string]string{
		{"username": "bob", "password": "wrong"},
		{"username": "nobody", "password": "secret1"},
	}
	for _, c := range cases {
		rec := doJSON(t, handler, http.MethodPost, "/auth/login", "", c)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("login %v status = %d, want 401", c["username"], rec.Code)
		}
		if body := decodeJSON(t, rec); body["detail"] != "Incorrect username or password" {
			t.Errorf("login %v detail = %v", c["username"], body["detail"])
		}
	}
}

func login(t *testing.T, handler http.Handler) string {
	t.Helper()
	register := map[string]string{"username": "carol", "email": "c@x.com", "password": "secret1"}
	if rec := doJSON(t, handler, http.MethodPost, "/auth/register", "", register); rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d (body %s)", rec.Code, rec.Body.String())
	}
	rec := doJSON(t, handler, http.MethodPost, "/auth/login", "", register)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	token, _ := decodeJSON(t, rec)["access_token"].(string)
	return token
}

func TestReportEndpointShapesResponse(t *testing.T) {
	var gotQuery *market.Query
	server := newTestServer(t, func(_ context.Context, query *market.Query) (*market.Table, error) {
		gotQuery = query
		table := market.NewTable("symbol", "exchange", "industry")
		table.AppendRow("FPT", "HOSE", "Technology")
		return table, nil
	})
	handler := server.Handler()
	token := login(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/company/overview", token, map[string]string{
		"symbol": "fpt", "source": "vci",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	if gotQuery.Symbol != "FPT" || gotQuery.Report != market.ReportCompanyOverview {
		t.Errorf("query = %+v", gotQuery)
	}

	body := decodeJSON(t, rec)
	if body["symbol"] != "FPT" || body["source"] != "vci" {
		t.Errorf("envelope = %v", body)
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("data is %T, want object", body["data"])
	}
	if got, _ := data["exchange"].([]any); len(got) != 1 || got[0] != "HOSE" {
		t.Errorf("data.exchange = %v", data["exchange"])
	}
}

func TestUnknownReportReturns404(t *testing.T) {
	server := newTestServer(t, nil)
	handler := server.Handler()
	token := login(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/company/nonsense", token, map[string]string{
		"symbol": "VCB", "source": "vci",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestValidationErrorsReject(t *testing.T) {
	server := newTestServer(t, func(_ context.Context, _ *market.Query) (*market.Table, error) {
		t.Error("dispatch reached for an invalid request")
		return nil, nil
	})
	handler := server.Handler()
	token := login(t, handler)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"short symbol", map[string]string{"symbol": "VC", "start_date": "2024-01-01", "end_date": "2024-01-31", "source": "vci", "interval": "D"}},
		{"bad source", map[string]string{"symbol": "VCB", "start_date": "2024-01-01", "end_date": "2024-01-31", "source": "bloomberg", "interval": "D"}},
		{"bad interval", map[string]string{"symbol": "VCB", "start_date": "2024-01-01", "end_date": "2024-01-31", "source": "vci", "interval": "2H"}},
		{"reversed range", map[string]string{"symbol": "VCB", "start_date": "2024-02-01", "end_date": "2024-01-01", "source": "vci", "interval": "D"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/v1/download/csv", token, c.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTransientExhaustionReturns502(t *testing.T) {
	calls := 0
	server := newTestServer(t, func(_ context.Context, _ *market.Query) (*market.Table, error) {
		calls++
		return nil, &providers.UpstreamError{Source: "vci", StatusCode: http.StatusServiceUnavailable, Message: "maintenance"}
	})
	handler := server.Handler()
	token := login(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/download/csv-text", token, map[string]string{
		"symbol": "VCB", "start_date": "2024-01-01", "end_date": "2024-01-31",
		"source": "vci", "interval": "D",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 (body %s)", rec.Code, rec.Body.String())
	}
	if calls != 2 {
		t.Errorf("attempts = %d, want 2", calls)
	}
	if body := decodeJSON(t, rec); body["detail"] != "Upstream data source unavailable, please retry" {
		t.Errorf("detail = %v", body["detail"])
	}
}

func TestPermanentFailureReturns400(t *testing.T) {
	server := newTestServer(t, func(_ context.Context, query *market.Query) (*market.Table, error) {
		return nil, &providers.SymbolNotFoundError{Source: "vci", Symbol: query.Symbol}
	})
	handler := server.Handler()
	token := login(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/download/csv", token, map[string]string{
		"symbol": "ZZZ", "start_date": "2024-01-01", "end_date": "2024-01-31",
		"source": "vci", "interval": "D",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestUnregisteredSourceReturns400(t *testing.T) {
	server := newTestServer(t, nil)
	handler := server.Handler()
	token := login(t, handler)

	// tcbs is a valid source but no adapter is registered for it.
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/download/csv", token, map[string]string{
		"symbol": "VCB", "start_date": "2024-01-01", "end_date": "2024-01-31",
		"source": "tcbs", "interval": "D",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestDownloadCSVText(t *testing.T) {
	server := newTestServer(t, func(_ context.Context, _ *market.Query) (*market.Table, error) {
		return historyTable(), nil
	})
	handler := server.Handler()
	token := login(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/download/csv-text", token, map[string]string{
		"symbol": "VCB", "start_date": "2024-01-01", "end_date": "2024-01-31",
		"source": "vci", "interval": "D",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	csvData, _ := body["csv_data"].(string)
	if !strings.HasPrefix(csvData, "time,ticket,open") {
		t.Errorf("csv_data = %q", csvData)
	}
	// data_size reports the character count of the CSV payload.
	if body["data_size"] != float64(len(csvData)) {
		t.Errorf("data_size = %v, want %d", body["data_size"], len(csvData))
	}
}

func TestDownloadMultipleCombined(t *testing.T) {
	server := newTestServer(t, func(_ context.Context, _ *market.Query) (*market.Table, error) {
		return historyTable(), nil
	})
	handler := server.Handler()
	token := login(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/download/multiple", token, map[string]any{
		"symbols": []string{"VCB", "FPT"}, "start_date": "2024-01-01", "end_date": "2024-01-31",
		"source": "vci", "interval": "D", "combine": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=combined_2024-01-01_2024-01-31.csv" {
		t.Errorf("Content-Disposition = %q", got)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("csv line count = %d, want 5 (header + 2 rows per symbol)", len(lines))
	}
	tickets := map[string]int{}
	for _, line := range lines[1:] {
		fields := strings.Split(line, ",")
		tickets[fields[1]]++
	}
	if tickets["VCB"] != 2 || tickets["FPT"] != 2 {
		t.Errorf("ticket distribution = %v", tickets)
	}
}

func TestDownloadMultiplePerSymbolNullsFailures(t *testing.T) {
	server := newTestServer(t, func(_ context.Context, query *market.Query) (*market.Table, error) {
		if query.Symbol == "BAD" {
			return nil, &providers.SymbolNotFoundError{Source: "vci", Symbol: query.Symbol}
		}
		return historyTable(), nil
	})
	handler := server.Handler()
	token := login(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/download/multiple", token, map[string]any{
		"symbols": []string{"VCB", "BAD"}, "start_date": "2024-01-01", "end_date": "2024-01-31",
		"source": "vci", "interval": "D", "combine": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}

	body := decodeJSON(t, rec)
	if body["total_symbols"] != float64(2) {
		t.Errorf("total_symbols = %v, want 2", body["total_symbols"])
	}
	if body["start_date"] != "2024-01-01" || body["end_date"] != "2024-01-31" {
		t.Errorf("date echo = %v..%v", body["start_date"], body["end_date"])
	}
	symbols, _ := body["symbols"].([]any)
	if len(symbols) != 2 || symbols[0] != "VCB" || symbols[1] != "BAD" {
		t.Errorf("symbols = %v", body["symbols"])
	}
	csvData, _ := body["csv_data"].(map[string]any)
	if csvData["BAD"] != nil {
		t.Errorf("csv_data.BAD = %v, want null", csvData["BAD"])
	}
	if encoded, _ := csvData["VCB"].(string); !strings.HasPrefix(encoded, "time,ticket,") {
		t.Errorf("csv_data.VCB = %v", csvData["VCB"])
	}
}

func TestPublicEndpoints(t *testing.T) {
	server := newTestServer(t, nil)
	handler := server.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if body := decodeJSON(t, rec); body["status"] != "ok" {
		t.Errorf("health status field = %v", body["status"])
	}

	rec = doJSON(t, handler, http.MethodGet, "/ready", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ready status = %d (body %s)", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); body["providers_healthy"] != float64(1) {
		t.Errorf("providers_healthy = %v", body["providers_healthy"])
	}

	rec = doJSON(t, handler, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("root status = %d", rec.Code)
	}
	if body := decodeJSON(t, rec); body["endpoints"] == nil {
		t.Error("root response has no endpoint map")
	}

	rec = doJSON(t, handler, http.MethodGet, "/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
}

func TestSymbolsEndpoint(t *testing.T) {
	server := newTestServer(t, nil)
	handler := server.Handler()
	token := login(t, handler)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/symbols", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["count"] != float64(len(symbols.DefaultSymbols)) {
		t.Errorf("count = %v, want %d", body["count"], len(symbols.DefaultSymbols))
	}
}

func TestProvidersEndpoint(t *testing.T) {
	server := newTestServer(t, nil)
	handler := server.Handler()
	token := login(t, handler)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/providers", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	providersMap, _ := body["providers"].(map[string]any)
	entry, ok := providersMap["vci"].(map[string]any)
	if !ok {
		t.Fatalf("providers = %v", body["providers"])
	}
	if entry["healthy"] != true {
		t.Errorf("vci healthy = %v", entry["healthy"])
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	server := newTestServer(t, nil)
	handler := server.Handler()
	token := login(t, handler)

	rec := doJSON(t, handler, http.MethodGet, "/auth/me", token+"x", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if body := decodeJSON(t, rec); body["detail"] != "Could not validate credentials" {
		t.Errorf("detail = %v", body["detail"])
	}
}

func TestRegisterValidation(t *testing.T) {
	server := newTestServer(t, nil)
	handler := server.Handler()

	cases := []map[string]string{
		{"username": "ab", "email": "a@x.com", "password": "secret1"},
		{"username": "alice", "email": "", "password": "secret1"},
		{"username": "alice", "email": "a@x.com", "password": "short"},
	}
	for i, c := range cases {
		rec := doJSON(t, handler, http.MethodPost, "/auth/register", "", c)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("case %d status = %d, want 400", i, rec.Code)
		}
	}
}
