package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gitsby/yarg/pkg/extraction"
	"github.com/gitsby/yarg/pkg/loaders"
	"github.com/gitsby/yarg/pkg/models/api"
	"github.com/gitsby/yarg/pkg/models/domain"
	"github.com/gitsby/yarg/pkg/runtime/terminal/export"
	reportsvc "github.com/gitsby/yarg/pkg/services/report"
	"github.com/gitsby/yarg/pkg/store/reports"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const defaultRunsLimit = 50

type Handler struct {
	reports reportsvc.Controller
}

func NewHandler(reports reportsvc.Controller) *Handler {
	return &Handler{reports: reports}
}

type ExtractRequest struct {
	Params map[string]interface{} `json:"params"`
}

func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	names, err := h.reports.ListReports(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(ctx, w, http.StatusOK, api.ReportsResponse{Reports: names})
}

func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	name := chi.URLParam(r, "report")

	var req ExtractRequest
	if r.Body != nil {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(ctx, w, http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
	}
	params, err := requestParams(req.Params)
	if err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	format := r.URL.Query().Get("format")
	reporter, err := export.NewReporter(format, w)
	if err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	out, err := h.reports.Extract(ctx, name, params)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	w.WriteHeader(http.StatusOK)
	if err := reporter.Handle(out); err != nil {
		logger.Error().
			Err(err).
			Str("report", name).
			Msg("failed to encode report")
	}
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(ctx, w, http.StatusBadRequest, api.ErrorResponse{Error: fmt.Sprintf("invalid limit %q", raw)})
			return
		}
		limit = n
	}

	runs, err := h.reports.ListRuns(ctx, r.URL.Query().Get("report"), limit)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	response := api.RunsResponse{Runs: make([]api.Run, 0, len(runs))}
	for _, run := range runs {
		response.Runs = append(response.Runs, api.FromRun(run))
	}
	writeJSON(ctx, w, http.StatusOK, response)
}

// requestParams converts JSON numbers to integers where they fit.
func requestParams(raw map[string]interface{}) (domain.Params, error) {
	for k, v := range raw {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			raw[k] = i
			continue
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", k, err)
		}
		raw[k] = f
	}
	return domain.ParamsFromNative(raw)
}

func statusOf(err error) int {
	var (
		missingParam *extraction.MissingParameterError
		missingLink  *extraction.MissingLinkFieldError
		cardinality  *extraction.CardinalityError
		orientation  *extraction.UnknownOrientationError
		definition   *domain.DefinitionError
		unconfigured *loaders.UnconfiguredBackendError
	)
	switch {
	case errors.Is(err, reports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, reportsvc.ErrHistoryDisabled):
		return http.StatusNotImplemented
	case errors.As(err, &missingParam):
		return http.StatusBadRequest
	case errors.As(err, &missingLink), errors.As(err, &cardinality),
		errors.As(err, &orientation), errors.As(err, &definition),
		errors.As(err, &unconfigured):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(ctx).Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(ctx, w, status, api.ErrorResponse{Error: err.Error()})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zerolog.Ctx(ctx).Error().
			Err(err).
			Msg("failed to encode response")
	}
}

func contentType(format string) string {
	switch format {
	case export.FormatMsgpack:
		return "application/msgpack"
	case export.FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}
