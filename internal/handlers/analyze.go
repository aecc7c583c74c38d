package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/luke0708/stock-analysis/internal/ingest"
	"github.com/luke0708/stock-analysis/internal/instrumentation"
	"github.com/luke0708/stock-analysis/internal/models"
	"github.com/luke0708/stock-analysis/internal/pipeline"
	"github.com/luke0708/stock-analysis/internal/publisher"
)

// maxBodyBytes bounds the accepted batch payload (tens of thousands of
// ticks fit comfortably).
const maxBodyBytes = 64 << 20

// AnalyzeHandler handles POST /v1/analyze: one security, one trading date,
// one raw tick batch per request. Requests are independent; the handler is
// safe to serve concurrently.
type AnalyzeHandler struct {
	validator *ingest.Validator
	pipe      *pipeline.Pipeline
	publisher publisher.ResultPublisher // nil when publishing is disabled
	metrics   *instrumentation.Metrics
	location  *time.Location
	logger    *slog.Logger
}

// NewAnalyzeHandler creates the analyze handler.
func NewAnalyzeHandler(
	validator *ingest.Validator,
	pipe *pipeline.Pipeline,
	pub publisher.ResultPublisher,
	metrics *instrumentation.Metrics,
	location *time.Location,
	logger *slog.Logger,
) *AnalyzeHandler {
	return &AnalyzeHandler{
		validator: validator,
		pipe:      pipe,
		publisher: pub,
		metrics:   metrics,
		location:  location,
		logger:    logger.With("handler", "analyze"),
	}
}

// ServeHTTP handles the analyze request.
func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is supported")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "read_failed", "failed to read request body")
		return
	}

	req, err := h.validator.Decode(body)
	if err != nil {
		var ve *ingest.ValidationError
		if errors.As(err, &ve) {
			h.sendError(w, http.StatusBadRequest, "invalid_request", ve.Error())
		} else {
			h.sendError(w, http.StatusBadRequest, "malformed_json", err.Error())
		}
		if h.metrics != nil {
			h.metrics.RecordError("analyze", "invalid_request")
		}
		return
	}

	date, err := req.ParsedDate(h.location)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	start := time.Now()
	result, err := h.pipe.Run(pipeline.Request{
		Symbol:         req.Symbol,
		Date:           date,
		CurrentDay:     req.CurrentDay,
		WindowMin:      req.WindowMin,
		IncludeAuction: req.IncludeAuction,
		Ticks:          req.Ticks,
	})
	if err != nil {
		// Invariant violations are a defect class, not data quality:
		// the request fails rather than degrading.
		var iv *models.InvariantViolationError
		if errors.As(err, &iv) {
			h.logger.Error("pipeline_invariant_violation", "symbol", req.Symbol, "error", err)
			h.sendError(w, http.StatusInternalServerError, "invariant_violation", iv.Error())
		} else {
			h.sendError(w, http.StatusBadRequest, "pipeline_rejected", err.Error())
		}
		if h.metrics != nil {
			h.metrics.RecordError("pipeline", "run_failed")
		}
		return
	}

	h.recordMetrics(result, time.Since(start))

	if h.publisher != nil {
		// Best-effort: the cache is an external collaborator, a publish
		// failure never fails the analysis.
		if err := h.publisher.Publish(r.Context(), result); err != nil {
			h.logger.Warn("result_publish_failed", "symbol", req.Symbol, "error", err)
			if h.metrics != nil {
				h.metrics.RecordError("publisher", "publish_failed")
			}
		}
	}

	h.sendJSON(w, http.StatusOK, result)
}

func (h *AnalyzeHandler) recordMetrics(result *models.SessionResult, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}

	h.metrics.RecordSession(string(result.Source), float64(elapsed.Milliseconds()))

	if result.Clean != nil {
		h.metrics.RecordTicks(result.Clean.RawCount, map[string]int{
			"invalid":              result.Clean.DroppedInvalid,
			"unparsable_timestamp": result.Clean.DroppedUnparsable,
			"duplicate_seq":        result.Clean.DroppedDuplicates,
		})
	}
	for _, ev := range result.Anomalies {
		h.metrics.RecordAnomaly(string(ev.Kind))
	}
}

func (h *AnalyzeHandler) sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("response_encode_failed", "error", err)
	}
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *AnalyzeHandler) sendError(w http.ResponseWriter, status int, code, message string) {
	h.sendJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}
