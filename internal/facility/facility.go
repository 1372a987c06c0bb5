// Package facility orchestrates composite facility requests: it validates
// the whole payload against provider reference data, fans the accepted
// payload out into one provider call per entity, and reconciles the
// responses into a single result.
package facility

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliamunaev/facility-gateway/internal/apperr"
	"github.com/iliamunaev/facility-gateway/internal/journal"
	"github.com/iliamunaev/facility-gateway/internal/model"
	"github.com/iliamunaev/facility-gateway/internal/provider"
	"github.com/iliamunaev/facility-gateway/internal/refdata"
	"github.com/iliamunaev/facility-gateway/internal/requestid"
	"github.com/iliamunaev/facility-gateway/internal/service/pool"
	"github.com/iliamunaev/facility-gateway/internal/validation"
)

// State is where a composite request ended up.
type State string

const (
	StateRejected        State = "rejected"
	StateAllCreated      State = "all_created"
	StatePartiallyFailed State = "partially_failed"
)

// Operation names the kind of composite request.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
)

// Provider submits facility entities. Calls never fail: a call without an
// HTTP response is reported with a synthetic 5xx status.
type Provider interface {
	CreateFacility(ctx context.Context, o model.FacilityOverview) provider.Response
	UpdateFacility(ctx context.Context, facilityID string, o model.FacilityOverview) provider.Response
	CreateCounterparty(ctx context.Context, facilityID string, cp model.Counterparty) provider.Response
	CreateObligation(ctx context.Context, facilityID string, o model.Obligation) provider.Response
	CreateRepaymentProfile(ctx context.Context, facilityID string, rp model.RepaymentProfile) provider.Response
	CreateFixedFee(ctx context.Context, facilityID string, f model.FixedFee) provider.Response
}

// OutcomeObserver is told the terminal state of every composite request.
type OutcomeObserver interface {
	ObserveOutcome(operation, state string)
}

// Result is the outcome of a composite request. Data is set only for
// StateAllCreated; Errors is non-empty for every other state.
type Result struct {
	State  State
	Data   *model.FacilityResponse
	Errors []model.ValidationError
}

// OK reports whether every part of the request was accepted.
func (r Result) OK() bool { return r.State == StateAllCreated }

// Config tunes the orchestrator.
type Config struct {
	// ParentFirst submits the facility before its children and threads the
	// identifier the provider returned into every child call. Children are
	// not submitted when the facility call fails.
	ParentFirst bool
}

// Service orchestrates composite facility requests.
type Service struct {
	provider Provider
	lookup   refdata.Lookup
	pool     *pool.Pool
	cfg      Config
	fields   *validation.FieldValidator

	journal journal.Journal
	obs     OutcomeObserver
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithJournal records every submission outcome in j.
func WithJournal(j journal.Journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithOutcomeObserver reports terminal states to obs.
func WithOutcomeObserver(obs OutcomeObserver) Option {
	return func(s *Service) { s.obs = obs }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service.
//
// It panics if p, l or pl is nil.
func New(p Provider, l refdata.Lookup, pl *pool.Pool, cfg Config, opts ...Option) *Service {
	if p == nil {
		panic("facility.New: nil provider")
	}
	if l == nil {
		panic("facility.New: nil reference lookup")
	}
	if pl == nil {
		panic("facility.New: nil pool")
	}

	s := &Service{
		provider: p,
		lookup:   l,
		pool:     pl,
		cfg:      cfg,
		fields:   validation.NewFieldValidator(),
		logger:   slog.Default(),
		tracer:   otel.Tracer("github.com/iliamunaev/facility-gateway/internal/facility"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate runs the pre-flight phase only: field checks, then reference
// data is fetched and every cross-entity rule is applied. Nothing is
// submitted. The error is non-nil only when reference data could not be
// loaded.
func (s *Service) Validate(ctx context.Context, p model.FacilityRequest) ([]model.ValidationError, error) {
	ctx, span := s.tracer.Start(ctx, "facility.validate")
	defer span.End()

	errs, err := s.validate(ctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reference data unavailable")
	}
	return errs, err
}

// validate reports field errors without touching the provider; lookups are
// only made for a payload whose codes are well formed.
func (s *Service) validate(ctx context.Context, p model.FacilityRequest) ([]model.ValidationError, error) {
	if errs := s.fields.Check(p); len(errs) > 0 {
		return errs, nil
	}
	ref, err := refdata.Fetch(ctx, s.lookup, p)
	if err != nil {
		return nil, err
	}
	return validation.Validate(p, ref), nil
}

// Create validates p and, when it is clean, creates the facility and all
// of its children.
func (s *Service) Create(ctx context.Context, p model.FacilityRequest) (Result, error) {
	return s.run(ctx, OpCreate, p)
}

// Update validates p, amends the facility facilityID and creates the
// children p carries. facilityID replaces p's own identifier.
func (s *Service) Update(ctx context.Context, facilityID string, p model.FacilityRequest) (Result, error) {
	p.Overview.FacilityIdentifier = facilityID
	return s.run(ctx, OpUpdate, p)
}

func (s *Service) run(ctx context.Context, op Operation, p model.FacilityRequest) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "facility."+string(op), trace.WithAttributes(
		attribute.String("facility.identifier", p.Overview.FacilityIdentifier),
		attribute.Int("facility.children", childCount(p)),
	))
	defer span.End()

	log := s.logger.With(
		slog.String("request_id", requestid.From(ctx)),
		slog.String("operation", string(op)),
		slog.String("facility_identifier", p.Overview.FacilityIdentifier),
	)

	errs, err := s.validate(ctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reference data unavailable")
		log.ErrorContext(ctx, "validation aborted", slog.String("error", err.Error()))
		return Result{}, err
	}
	if len(errs) > 0 {
		res := Result{State: StateRejected, Errors: errs}
		s.finish(ctx, log, span, op, p, res, nil)
		return res, nil
	}

	sub := s.submit(ctx, op, p)
	res := sub.result()
	s.finish(ctx, log, span, op, p, res, sub.created())
	return res, nil
}

func (s *Service) finish(ctx context.Context, log *slog.Logger, span trace.Span, op Operation, p model.FacilityRequest, res Result, created []journal.Created) {
	span.SetAttributes(attribute.String("facility.state", string(res.State)))
	if s.obs != nil {
		s.obs.ObserveOutcome(string(op), string(res.State))
	}

	level := slog.LevelInfo
	if !res.OK() {
		level = slog.LevelWarn
	}
	log.Log(ctx, level, "facility request finished",
		slog.String("state", string(res.State)),
		slog.Int("errors", len(res.Errors)),
		slog.Int("created", len(created)),
	)

	// Rejected requests never reached the provider.
	if res.State == StateRejected || s.journal == nil {
		return
	}
	facilityID := p.Overview.FacilityIdentifier
	if res.Data != nil && res.Data.FacilityIdentifier != "" {
		facilityID = res.Data.FacilityIdentifier
	}
	entry := journal.Entry{
		RequestID:          requestid.From(ctx),
		FacilityIdentifier: facilityID,
		Operation:          string(op),
		State:              string(res.State),
		Created:            created,
		Failures:           res.Errors,
		RecordedAt:         s.now(),
	}
	// The outcome is already decided; a journal failure must not change it.
	if err := s.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		log.ErrorContext(ctx, "journal record failed", slog.String("error", err.Error()))
	}
}

// Submissions lists the journal entries for facilityID. A facility with no
// recorded submission is apperr.ErrNotFound.
func (s *Service) Submissions(ctx context.Context, facilityID string) ([]journal.Entry, error) {
	if !validation.IsValidFormat(facilityID, validation.FacilityIdentifierFormat) {
		return nil, &apperr.InvalidError{Field: "facilityIdentifier", Reason: "must be exactly 10 digits"}
	}
	if s.journal == nil {
		return nil, fmt.Errorf("facility %s: %w", facilityID, apperr.ErrNotFound)
	}
	entries, err := s.journal.List(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("facility %s: %w", facilityID, apperr.ErrNotFound)
	}
	return entries, nil
}

func childCount(p model.FacilityRequest) int {
	return len(p.Counterparties) + len(p.Obligations) + len(p.RepaymentProfiles) + len(p.FixedFees)
}

func expectedRootStatus(op Operation) int {
	if op == OpUpdate {
		return http.StatusOK
	}
	return http.StatusCreated
}
