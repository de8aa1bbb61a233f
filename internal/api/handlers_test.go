package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mapadevsports/uwbv2/internal/db"
	"github.com/mapadevsports/uwbv2/internal/ingest"
	"github.com/mapadevsports/uwbv2/internal/observability"
	"github.com/mapadevsports/uwbv2/internal/version"
	"github.com/prometheus/client_golang/prometheus"
)

const testLine = "AT+RANGE=tid:4,mask:01,seq:218,range:(100,110,103,0,0,0,0,0),kx:152.75,ky:101.3,cmd:2,user:user1"

func newTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	database := db.NewTestDB(t)
	orch := ingest.New(database, ingest.Config{
		Offset:          40.0,
		CalibrationTags: []string{"62"},
	})
	return NewServer(database, orch, nil), database
}

func postJSON(t *testing.T, mux *http.ServeMux, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeSummary(t *testing.T, rr *httptest.ResponseRecorder) ingest.BatchSummary {
	t.Helper()
	var sum ingest.BatchSummary
	if err := json.Unmarshal(rr.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decoding summary from %q: %v", rr.Body.String(), err)
	}
	return sum
}

func TestIngestRawEndpointStringPayload(t *testing.T) {
	srv, database := newTestServer(t)
	mux := srv.ServeMux()

	body, _ := json.Marshal(map[string]string{
		"payload": testLine + "\n" + "not telemetry",
	})
	rr := postJSON(t, mux, "/dados-crus/ingest", string(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rr.Code, rr.Body.String())
	}

	sum := decodeSummary(t, rr)
	if sum.Saved != 1 || sum.SkippedInvalid != 1 {
		t.Errorf("summary = %+v, want saved=1 invalid=1", sum)
	}

	n, err := database.CountReadings(context.Background(), "4")
	if err != nil {
		t.Fatalf("CountReadings failed: %v", err)
	}
	if n != 1 {
		t.Errorf("stored rows = %d, want 1", n)
	}
}

func TestIngestRawEndpointListPayload(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()

	body, _ := json.Marshal(map[string][]string{
		"payload": {testLine, testLine},
	})
	rr := postJSON(t, mux, "/dados-crus/ingest", string(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rr.Code, rr.Body.String())
	}
	if sum := decodeSummary(t, rr); sum.Saved != 2 {
		t.Errorf("Saved = %d, want 2", sum.Saved)
	}
}

func TestIngestEndpointsRejectEmptyBatch(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()

	for _, path := range []string{"/dados-crus/ingest", "/processamento-crus/ingest"} {
		for _, body := range []string{`{"payload": ""}`, `{"payload": []}`, `{"payload": "\n\n"}`} {
			rr := postJSON(t, mux, path, body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("POST %s %s: status = %d, want 400", path, body, rr.Code)
			}
		}
	}
}

func TestIngestEndpointRejectsMalformedJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()

	for _, body := range []string{"not json", `{"payload": 42}`} {
		rr := postJSON(t, mux, "/dados-crus/ingest", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rr.Code)
		}
	}
}

func TestProcessEndpointStoresPositions(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()

	body, _ := json.Marshal(map[string]string{"payload": testLine})
	rr := postJSON(t, mux, "/processamento-crus/ingest", string(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rr.Code, rr.Body.String())
	}
	if sum := decodeSummary(t, rr); sum.Saved != 1 {
		t.Errorf("Saved = %d, want 1", sum.Saved)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/positions", nil)
	lrr := httptest.NewRecorder()
	mux.ServeHTTP(lrr, req)
	if lrr.Code != http.StatusOK {
		t.Fatalf("GET /api/positions status = %d", lrr.Code)
	}
	var rows []db.Position
	if err := json.Unmarshal(lrr.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decoding positions: %v", err)
	}
	if len(rows) != 1 || rows[0].TagNumber != "4" {
		t.Errorf("positions = %+v, want one row for tag 4", rows)
	}
}

func TestListReadingsLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()

	lines := make([]string, 5)
	for i := range lines {
		lines[i] = testLine
	}
	body, _ := json.Marshal(map[string][]string{"payload": lines})
	if rr := postJSON(t, mux, "/dados-crus/ingest", string(body)); rr.Code != http.StatusOK {
		t.Fatalf("seeding readings: status = %d", rr.Code)
	}

	cases := []struct {
		query string
		want  int
	}{
		{"", 5},          // default limit is large enough
		{"?limit=2", 2},  // explicit cap
		{"?limit=0", 5},  // out of range, falls back to default
		{"?limit=-3", 5}, // out of range, falls back to default
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/readings"+tc.query, nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("GET /api/readings%s status = %d", tc.query, rr.Code)
		}
		var rows []db.Reading
		if err := json.Unmarshal(rr.Body.Bytes(), &rows); err != nil {
			t.Fatalf("decoding readings: %v", err)
		}
		if len(rows) != tc.want {
			t.Errorf("limit %q returned %d rows, want %d", tc.query, len(rows), tc.want)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()

	cases := []struct {
		method, path string
	}{
		{http.MethodGet, "/dados-crus/ingest"},
		{http.MethodGet, "/processamento-crus/ingest"},
		{http.MethodPost, "/api/readings"},
		{http.MethodPost, "/api/positions"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader("{}"))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: status = %d, want 405", tc.method, tc.path, rr.Code)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding health body: %v", err)
	}
	if resp["status"] != "ok" || resp["version"] != version.Version {
		t.Errorf("health = %v", resp)
	}
}

func TestMetricsRouteRegistration(t *testing.T) {
	database := db.NewTestDB(t)
	orch := ingest.New(database, ingest.Config{Offset: 40.0})

	collector, err := observability.NewIngestCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewIngestCollector failed: %v", err)
	}
	withMetrics := NewServer(database, orch, collector)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	withMetrics.ServeMux().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("with collector: /metrics status = %d, want 200", rr.Code)
	}

	without := NewServer(database, orch, nil)
	rr = httptest.NewRecorder()
	without.ServeMux().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("without collector: /metrics status = %d, want 404", rr.Code)
	}
}
