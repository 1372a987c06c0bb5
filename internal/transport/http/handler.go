// Package httptransport implements the HTTP transport layer
// for composite facility requests.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iliamunaev/facility-gateway/internal/facility"
	"github.com/iliamunaev/facility-gateway/internal/journal"
	"github.com/iliamunaev/facility-gateway/internal/model"
	"github.com/iliamunaev/facility-gateway/internal/requestid"
	"github.com/iliamunaev/facility-gateway/internal/validation"
)

const maxRequestBytes = 1 << 20

type facilityService interface {
	Create(ctx context.Context, p model.FacilityRequest) (facility.Result, error)
	Update(ctx context.Context, facilityID string, p model.FacilityRequest) (facility.Result, error)
	Validate(ctx context.Context, p model.FacilityRequest) ([]model.ValidationError, error)
	Submissions(ctx context.Context, facilityID string) ([]journal.Entry, error)
}

// Handler handles HTTP requests for composite facilities.
type Handler struct {
	facilities     facilityService
	fields         *validation.FieldValidator
	requestTimeout time.Duration
	logger         *slog.Logger
}

// New returns a Handler configured with the given facility service
// and request timeout.
//
// It panics if facilities is nil. If requestTimeout is non-positive,
// a default timeout is applied. A nil logger uses slog.Default.
func New(facilities facilityService, requestTimeout time.Duration, logger *slog.Logger) *Handler {
	if facilities == nil {
		panic("httptransport.New: nil facility service")
	}
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		facilities:     facilities,
		fields:         validation.NewFieldValidator(),
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

// HandleCreate creates a facility with all of its children.
//
// 201 carries the created identifiers. Any rejected part gives a 400 with
// every problem found, addressed by entity and index.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	res, err := h.facilities.Create(ctx, req)
	h.writeResult(w, r, http.StatusCreated, res, err)
}

// HandleUpdate amends the facility named in the path and creates the
// children in the body. The path identifier wins over the body's.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "facilityIdentifier")

	req, ok := h.decodeWith(w, r, func(p *model.FacilityRequest) { p.Overview.FacilityIdentifier = id })
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	res, err := h.facilities.Update(ctx, id, req)
	h.writeResult(w, r, http.StatusOK, res, err)
}

// HandleValidate runs validation only. Nothing is sent to the provider.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	errs, err := h.facilities.Validate(ctx, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{
			StatusCode:       http.StatusBadRequest,
			Message:          "facility validation failed",
			ValidationErrors: errs,
		})
		return
	}
	writeJSON(w, http.StatusOK, model.ValidateResponse{Valid: true})
}

// HandleSubmissions lists the recorded submission outcomes of a facility.
func (h *Handler) HandleSubmissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "facilityIdentifier")

	entries, err := h.facilities.Submissions(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleHealth reports liveness.
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (model.FacilityRequest, bool) {
	return h.decodeWith(w, r, nil)
}

// decodeWith reads a single JSON object, applies fix and runs the field
// checks. On failure the 400 has already been written.
func (h *Handler) decodeWith(w http.ResponseWriter, r *http.Request, fix func(*model.FacilityRequest)) (model.FacilityRequest, bool) {
	var req model.FacilityRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    "invalid JSON",
		})
		return req, false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    "invalid JSON",
		})
		return req, false
	}

	if fix != nil {
		fix(&req)
	}

	if errs := h.fields.Check(req); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{
			StatusCode:       http.StatusBadRequest,
			Message:          "facility request is malformed",
			ValidationErrors: errs,
		})
		return req, false
	}
	return req, true
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, okStatus int, res facility.Result, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	switch res.State {
	case facility.StateAllCreated:
		writeJSON(w, okStatus, res.Data)
	case facility.StateRejected:
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{
			StatusCode:       http.StatusBadRequest,
			Message:          "facility validation failed",
			ValidationErrors: res.Errors,
		})
	default:
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{
			StatusCode:       http.StatusBadRequest,
			Message:          "facility submission partially failed",
			ValidationErrors: res.Errors,
		})
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("request_id", requestid.From(r.Context())),
		slog.String("kind", errorKind(err)),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	writeJSON(w, status, model.ErrorResponse{
		StatusCode: status,
		Message:    errorMessage(err),
	})
}

// writeJSON writes v as a JSON response with the given status code.
// The Content-Type is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
