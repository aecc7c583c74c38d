package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/luke0708/stock-analysis/internal/config"
	"github.com/luke0708/stock-analysis/internal/ingest"
	"github.com/luke0708/stock-analysis/internal/models"
	"github.com/luke0708/stock-analysis/internal/pipeline"
	"github.com/luke0708/stock-analysis/internal/publisher"
)

func testConfig() *config.Config {
	return &config.Config{
		MorningOpen:    "09:30",
		MorningClose:   "11:30",
		AfternoonOpen:  "13:00",
		AfternoonClose: "15:00",
		AuctionStart:   "09:15",
		AuctionEnd:     "09:25",

		LotSize:           100,
		DirectionDeadband: 0.0005,
		ExtremeJumpRatio:  5.0,

		LargeOrderPercentile: 90,
		LargeOrderMinAmount:  200000,
		LargeOrderTopK:       15,

		DefaultWindowMin: 5,
		ClipPercentile:   95,

		BurstSigma:    2.0,
		InflowIQRMult: 3.0,

		SummaryWindows:         20,
		SummaryWindowsExtended: 40,
	}
}

// capturePublisher records what the handler publishes, optionally failing.
type capturePublisher struct {
	published []*models.SessionResult
	fail      bool
}

func (p *capturePublisher) Publish(_ context.Context, result *models.SessionResult) error {
	if p.fail {
		return errors.New("cache unavailable")
	}
	p.published = append(p.published, result)
	return nil
}

func testHandler(t *testing.T, pub *capturePublisher) *AnalyzeHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	validator, err := ingest.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}
	pipe := pipeline.New(testConfig(), logger)

	var rp publisher.ResultPublisher
	if pub != nil {
		rp = pub
	}
	return NewAnalyzeHandler(validator, pipe, rp, nil, time.UTC, logger)
}

func postAnalyze(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const validBody = `{
	"symbol": "600519",
	"date": "2026-03-02",
	"current_day": true,
	"ticks": [
		{"time": "09:31:00", "price": 10, "volume": 1, "amount": 100, "side": "buy"},
		{"time": "09:32:00", "price": 10, "volume": 1, "amount": 50, "side": "sell"}
	]
}`

func TestAnalyzeEndpoint(t *testing.T) {
	rec := postAnalyze(t, testHandler(t, nil), validBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var result models.SessionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("response is not a session result: %v", err)
	}
	if result.Source != models.SourceTick {
		t.Errorf("source = %v, want tick", result.Source)
	}
	if result.Flow == nil || result.Flow.NetInflow != 50 {
		t.Errorf("flow = %+v, want net inflow 50", result.Flow)
	}
}

func TestAnalyzeEndpointFallbackBody(t *testing.T) {
	body := `{"symbol": "600519", "date": "2026-03-02", "current_day": true, "ticks": []}`
	rec := postAnalyze(t, testHandler(t, nil), body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result models.SessionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if result.Source != models.SourceMinute || result.FallbackReason != "no_tick_data" {
		t.Errorf("fallback = %v/%q", result.Source, result.FallbackReason)
	}
}

func TestAnalyzeEndpointRejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"schema_violation", `{"symbol": "600519", "current_day": true, "ticks": []}`, "invalid_request"},
		{"malformed_json", `{"symbol": `, "malformed_json"},
		{"impossible_date", `{"symbol": "600519", "date": "2026-13-02", "current_day": true, "ticks": []}`, "invalid_date"},
	}

	h := testHandler(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postAnalyze(t, h, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}

			var resp struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("error body decode failed: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestAnalyzeEndpointMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/analyze", nil)
	rec := httptest.NewRecorder()
	testHandler(t, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestAnalyzeEndpointPublishesResult(t *testing.T) {
	pub := &capturePublisher{}
	rec := postAnalyze(t, testHandler(t, pub), validBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published %d results, want 1", len(pub.published))
	}
	if pub.published[0].Symbol != "600519" {
		t.Errorf("published symbol = %q", pub.published[0].Symbol)
	}
}

func TestAnalyzeEndpointPublishFailureIsNotFatal(t *testing.T) {
	pub := &capturePublisher{fail: true}
	rec := postAnalyze(t, testHandler(t, pub), validBody)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 despite publish failure", rec.Code)
	}
}

func TestHealthCheckHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	HealthCheckHandler()(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != `{"status":"healthy"}` {
		t.Errorf("body = %s", body)
	}
}

func TestLoggingMiddlewareSetsRequestID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	wrapped := LoggingMiddleware(logger)(inner)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}
