package facility

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliamunaev/facility-gateway/internal/apperr"
	"github.com/iliamunaev/facility-gateway/internal/journal"
	"github.com/iliamunaev/facility-gateway/internal/model"
	"github.com/iliamunaev/facility-gateway/internal/provider"
	"github.com/iliamunaev/facility-gateway/internal/service/pool"
	"github.com/iliamunaev/facility-gateway/internal/service/tracker"
)

// stubLookup serves fixed reference data.
type stubLookup struct {
	fail  bool
	calls int
	mu    sync.Mutex
}

func (l *stubLookup) hit() error {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	if l.fail {
		return errors.New("dial tcp: connection refused")
	}
	return nil
}

func (l *stubLookup) IsSupportedProductType(_ context.Context, code string) (bool, error) {
	if err := l.hit(); err != nil {
		return false, err
	}
	return code == "250", nil
}

func (l *stubLookup) SupportedCurrencies(context.Context) ([]string, error) {
	if err := l.hit(); err != nil {
		return nil, err
	}
	return []string{"GBP", "USD"}, nil
}

func (l *stubLookup) CounterpartyRoles(context.Context) ([]model.CounterpartyRole, error) {
	if err := l.hit(); err != nil {
		return nil, err
	}
	return []model.CounterpartyRole{
		{Code: "100", Name: "Exporter"},
		{Code: "500", Name: "Guarantor", HasSharePercentage: true},
	}, nil
}

func (l *stubLookup) ObligationSubtypes(context.Context) ([]model.ObligationSubtype, error) {
	if err := l.hit(); err != nil {
		return nil, err
	}
	return []model.ObligationSubtype{{Code: "OST001", ProductTypeCode: "250"}}, nil
}

type call struct {
	op         string
	facilityID string
	key        string
}

// stubProvider answers every call with respond(op, key), where key
// identifies the element. It records calls and their concurrency.
type stubProvider struct {
	mu      sync.Mutex
	calls   []call
	tr      tracker.Tracker
	delay   func(op, key string) time.Duration
	respond func(op, key string) provider.Response
}

func (p *stubProvider) do(ctx context.Context, op, facilityID, key string) provider.Response {
	end := p.tr.Begin()
	defer end()

	p.mu.Lock()
	p.calls = append(p.calls, call{op: op, facilityID: facilityID, key: key})
	p.mu.Unlock()

	if p.delay != nil {
		select {
		case <-time.After(p.delay(op, key)):
		case <-ctx.Done():
		}
	}
	if p.respond != nil {
		return p.respond(op, key)
	}
	return created(op, key)
}

func (p *stubProvider) recorded() []call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]call(nil), p.calls...)
}

func (p *stubProvider) count(op string) int {
	n := 0
	for _, c := range p.recorded() {
		if c.op == op {
			n++
		}
	}
	return n
}

func created(op, key string) provider.Response {
	status := http.StatusCreated
	if op == "update_facility" {
		status = http.StatusOK
	}
	body := map[string]string{
		"facility":          `{"facilityIdentifier":"0030000321","dealIdentifier":"0020000123"}`,
		"update_facility":   `{"facilityIdentifier":"0030000321"}`,
		"counterparty":      fmt.Sprintf(`{"counterpartyIdentifier":"CP-%s"}`, key),
		"obligation":        fmt.Sprintf(`{"obligationIdentifier":"OB-%s"}`, key),
		"repayment_profile": fmt.Sprintf(`{"repaymentProfileIdentifier":"RP-%s"}`, key),
		"fixed_fee":         fmt.Sprintf(`{"fixedFeeIdentifier":"FF-%s"}`, key),
	}[op]
	return provider.Response{Status: status, Data: json.RawMessage(body)}
}

func rejected(msg string) provider.Response {
	return provider.Response{
		Status: http.StatusBadRequest,
		Data:   json.RawMessage(fmt.Sprintf(`{"message":%q,"validationErrors":[{"path":["amount"],"message":"invalid"}]}`, msg)),
	}
}

func (p *stubProvider) CreateFacility(ctx context.Context, o model.FacilityOverview) provider.Response {
	return p.do(ctx, "facility", "", o.FacilityIdentifier)
}

func (p *stubProvider) UpdateFacility(ctx context.Context, id string, o model.FacilityOverview) provider.Response {
	return p.do(ctx, "update_facility", id, o.FacilityIdentifier)
}

func (p *stubProvider) CreateCounterparty(ctx context.Context, id string, cp model.Counterparty) provider.Response {
	return p.do(ctx, "counterparty", id, cp.PartyIdentifier)
}

func (p *stubProvider) CreateObligation(ctx context.Context, id string, o model.Obligation) provider.Response {
	return p.do(ctx, "obligation", id, o.Amount.String())
}

func (p *stubProvider) CreateRepaymentProfile(ctx context.Context, id string, rp model.RepaymentProfile) provider.Response {
	return p.do(ctx, "repayment_profile", id, rp.Name)
}

func (p *stubProvider) CreateFixedFee(ctx context.Context, id string, f model.FixedFee) provider.Response {
	return p.do(ctx, "fixed_fee", id, f.Description)
}

type outcomes struct {
	mu   sync.Mutex
	seen []string
}

func (o *outcomes) ObserveOutcome(op, state string) {
	o.mu.Lock()
	o.seen = append(o.seen, op+":"+state)
	o.mu.Unlock()
}

func share(v int64) *model.Percentage {
	return model.NewPercentage(decimal.NewFromInt(v))
}

func obligation(amount int64) model.Obligation {
	return model.Obligation{
		SubtypeCode:   "OST001",
		Currency:      "GBP",
		Amount:        decimal.NewFromInt(amount),
		EffectiveDate: "2025-01-01",
		MaturityDate:  "2026-01-01",
	}
}

func validPayload() model.FacilityRequest {
	return model.FacilityRequest{
		Overview: model.FacilityOverview{
			FacilityIdentifier: "0030000321",
			DealIdentifier:     "0020000123",
			ProductTypeCode:    "250",
			Currency:           "GBP",
			EffectiveDate:      "2025-01-01",
			ExpiryDate:         "2030-01-01",
			Amount:             decimal.NewFromInt(1_000_000),
		},
		Counterparties: []model.Counterparty{
			{PartyIdentifier: "00000001", RoleCode: "100", StartDate: "2025-01-01", ExitDate: "2030-01-01"},
			{PartyIdentifier: "00000002", RoleCode: "500", SharePercentage: share(40), StartDate: "2025-01-01", ExitDate: "2030-01-01"},
		},
		Obligations: []model.Obligation{obligation(100), obligation(200), obligation(300)},
		RepaymentProfiles: []model.RepaymentProfile{{
			Name:     "Quarterly",
			Currency: "GBP",
			Allocations: []model.Allocation{
				{Amount: decimal.NewFromInt(10), DueDate: "2025-04-01"},
				{Amount: decimal.NewFromInt(10), DueDate: "2025-07-01"},
			},
		}},
		FixedFees: []model.FixedFee{{
			Description:   "Arrangement",
			Currency:      "GBP",
			Amount:        decimal.NewFromInt(250),
			EffectiveDate: "2025-01-01",
			ExpiryDate:    "2026-01-01",
		}},
	}
}

type fixture struct {
	svc      *Service
	provider *stubProvider
	lookup   *stubLookup
	journal  *journal.Memory
	outcomes *outcomes
}

func newFixture(t *testing.T, cfg Config, poolSize int) *fixture {
	t.Helper()

	f := &fixture{
		provider: &stubProvider{},
		lookup:   &stubLookup{},
		journal:  journal.NewMemory(),
		outcomes: &outcomes{},
	}
	f.svc = New(f.provider, f.lookup, pool.New(poolSize), cfg,
		WithJournal(f.journal),
		WithOutcomeObserver(f.outcomes),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return f
}

func TestNewPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { New(nil, &stubLookup{}, pool.New(1), Config{}) })
	assert.Panics(t, func() { New(&stubProvider{}, nil, pool.New(1), Config{}) })
	assert.Panics(t, func() { New(&stubProvider{}, &stubLookup{}, nil, Config{}) })
}

func TestCreate_RejectedMakesNoProviderCalls(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, 4)
	p := validPayload()
	p.Overview.Currency = "XAF"
	p.Counterparties[1].SharePercentage = nil

	res, err := f.svc.Create(context.Background(), p)

	require.NoError(t, err)
	assert.Equal(t, StateRejected, res.State)
	assert.False(t, res.OK())
	assert.Nil(t, res.Data)
	assert.Equal(t, []string{
		"overview.currency is not supported (XAF)",
		"counterparties.1.sharePercentage must be a number between 1 and 100 for role 500",
	}, model.Messages(res.Errors))
	assert.Empty(t, f.provider.recorded())

	entries, err := f.journal.List(context.Background(), p.Overview.FacilityIdentifier)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, []string{"create:rejected"}, f.outcomes.seen)
}

func TestCreate_MalformedCodesNeverSubmitted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*model.FacilityRequest)
		want   []string
	}{
		{
			name:   "product_type_letters",
			mutate: func(p *model.FacilityRequest) { p.Overview.ProductTypeCode = "ABC" },
			want:   []string{"overview.productTypeCode must be exactly 3 digits"},
		},
		{
			name:   "product_type_short",
			mutate: func(p *model.FacilityRequest) { p.Overview.ProductTypeCode = "12" },
			want:   []string{"overview.productTypeCode must be exactly 3 digits"},
		},
		{
			name:   "overview_currency_lowercase",
			mutate: func(p *model.FacilityRequest) { p.Overview.Currency = "xaf" },
			want:   []string{"overview.currency must be 3 uppercase letters"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, Config{}, 4)
			p := validPayload()
			tt.mutate(&p)

			res, err := f.svc.Create(context.Background(), p)

			require.NoError(t, err)
			assert.Equal(t, StateRejected, res.State)
			assert.Equal(t, tt.want, model.Messages(res.Errors))
			assert.Empty(t, f.provider.recorded())
			assert.Zero(t, f.lookup.calls)
		})
	}
}

func TestCreate_UpstreamUnavailableIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, 4)
	f.lookup.fail = true

	res, err := f.svc.Create(context.Background(), validPayload())

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, f.provider.recorded())
	assert.Empty(t, f.outcomes.seen)
}

func TestCreate_AllCreated(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, 8)
	// Later elements answer first; the response must still follow input order.
	f.provider.delay = func(op, key string) time.Duration {
		switch key {
		case "100":
			return 30 * time.Millisecond
		case "200":
			return 15 * time.Millisecond
		}
		return 0
	}

	res, err := f.svc.Create(context.Background(), validPayload())

	require.NoError(t, err)
	require.True(t, res.OK(), "errors: %v", model.Messages(res.Errors))
	assert.Empty(t, res.Errors)
	assert.Equal(t, &model.FacilityResponse{
		FacilityIdentifier: "0030000321",
		DealIdentifier:     "0020000123",
		Counterparties: []model.CreatedEntity{
			{Index: 0, Identifier: "CP-00000001"},
			{Index: 1, Identifier: "CP-00000002"},
		},
		Obligations: []model.CreatedEntity{
			{Index: 0, Identifier: "OB-100"},
			{Index: 1, Identifier: "OB-200"},
			{Index: 2, Identifier: "OB-300"},
		},
		RepaymentProfiles: []model.CreatedEntity{{Index: 0, Identifier: "RP-Quarterly"}},
		FixedFees:         []model.CreatedEntity{{Index: 0, Identifier: "FF-Arrangement"}},
	}, res.Data)

	assert.Len(t, f.provider.recorded(), 8)
	assert.Greater(t, f.provider.tr.Peak(), int64(1), "entities should be submitted concurrently")
	assert.Equal(t, []string{"create:all_created"}, f.outcomes.seen)
}

func TestCreate_UnreadableCreatedBodyStillCounts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, 8)
	f.provider.respond = func(op, key string) provider.Response {
		if op == "obligation" && key == "200" {
			return provider.Response{Status: http.StatusCreated, Unreadable: true}
		}
		return created(op, key)
	}

	res, err := f.svc.Create(context.Background(), validPayload())

	require.NoError(t, err)
	assert.Equal(t, StateAllCreated, res.State)
	require.NotNil(t, res.Data)
	assert.Equal(t, model.CreatedEntity{Index: 1}, res.Data.Obligations[1])

	entries, err := f.journal.List(context.Background(), "0030000321")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Created, journal.Created{EntityName: model.Obligations, Index: 1})
	assert.Len(t, entries[0].Created, 8)
}

func TestCreate_PartialFailureKeepsSiblings(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, 8)
	f.provider.respond = func(op, key string) provider.Response {
		if op == "obligation" && key == "200" {
			return rejected("Bad request")
		}
		return created(op, key)
	}

	res, err := f.svc.Create(context.Background(), validPayload())

	require.NoError(t, err)
	assert.Equal(t, StatePartiallyFailed, res.State)
	assert.Nil(t, res.Data)
	require.Len(t, res.Errors, 1)
	rec := res.Errors[0]
	assert.Equal(t, model.Obligations, rec.EntityName)
	require.NotNil(t, rec.Index)
	assert.Equal(t, 1, *rec.Index)
	assert.Equal(t, http.StatusBadRequest, rec.Status)
	assert.Equal(t, "Bad request", rec.Message)
	assert.Len(t, rec.ValidationErrors, 1)

	// Every obligation was sent and nothing was undone.
	assert.Equal(t, 3, f.provider.count("obligation"))
	assert.Len(t, f.provider.recorded(), 8)

	entries, err := f.journal.List(context.Background(), "0030000321")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, string(StatePartiallyFailed), e.State)
	assert.Equal(t, "create", e.Operation)
	assert.Len(t, e.Failures, 1)

	var obligations []journal.Created
	for _, c := range e.Created {
		if c.EntityName == model.Obligations {
			obligations = append(obligations, c)
		}
	}
	assert.Equal(t, []journal.Created{
		{EntityName: model.Obligations, Index: 0, Identifier: "OB-100"},
		{EntityName: model.Obligations, Index: 2, Identifier: "OB-300"},
	}, obligations)
	assert.Len(t, e.Created, 7)
}

func TestCreate_ReportsEveryFailureInEntityOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, 8)
	f.provider.respond = func(op, key string) provider.Response {
		switch {
		case op == "fixed_fee":
			return rejected("fee")
		case op == "counterparty" && key == "00000002":
			return rejected("cp")
		case op == "obligation" && key != "200":
			return rejected("ob" + key)
		case op == "facility":
			return provider.Response{Status: http.StatusGatewayTimeout, Data: json.RawMessage(`{"message":"provider call timed out"}`)}
		}
		return created(op, key)
	}

	res, err := f.svc.Create(context.Background(), validPayload())

	require.NoError(t, err)
	assert.Equal(t, StatePartiallyFailed, res.State)
	assert.Equal(t, []string{"provider call timed out", "cp", "ob100", "ob300", "fee"}, model.Messages(res.Errors))

	var where []string
	for _, e := range res.Errors {
		where = append(where, fmt.Sprintf("%s.%d", e.EntityName, *e.Index))
	}
	assert.Equal(t, []string{"facility.0", "counterparties.1", "obligations.0", "obligations.2", "fixedFees.0"}, where)
}

func TestCreate_PoolBoundsConcurrency(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, 2)
	f.provider.delay = func(string, string) time.Duration { return 5 * time.Millisecond }

	res, err := f.svc.Create(context.Background(), validPayload())

	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.LessOrEqual(t, f.provider.tr.Peak(), int64(2))
	assert.Len(t, f.provider.recorded(), 8)
}

func TestCreate_ParentFirstThreadsIdentifier(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{ParentFirst: true}, 8)
	f.provider.respond = func(op, key string) provider.Response {
		if op == "facility" {
			return provider.Response{Status: http.StatusCreated, Data: json.RawMessage(`{"facilityIdentifier":"0099999999"}`)}
		}
		return created(op, key)
	}

	res, err := f.svc.Create(context.Background(), validPayload())

	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, "0099999999", res.Data.FacilityIdentifier)
	assert.Equal(t, "0020000123", res.Data.DealIdentifier)

	calls := f.provider.recorded()
	require.Len(t, calls, 8)
	assert.Equal(t, "facility", calls[0].op)
	for _, c := range calls[1:] {
		assert.Equal(t, "0099999999", c.facilityID, c.op)
	}
}

func TestCreate_ParentFirstRootFailureSkipsChildren(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{ParentFirst: true}, 8)
	f.provider.respond = func(op, key string) provider.Response {
		if op == "facility" {
			return rejected("duplicate facility")
		}
		return created(op, key)
	}

	res, err := f.svc.Create(context.Background(), validPayload())

	require.NoError(t, err)
	assert.Equal(t, StatePartiallyFailed, res.State)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, model.Facility, res.Errors[0].EntityName)
	assert.Equal(t, "duplicate facility", res.Errors[0].Message)
	assert.Len(t, f.provider.recorded(), 1)
}

func TestUpdate_AmendsRootAndCreatesChildren(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, 8)
	p := validPayload()
	p.Overview.FacilityIdentifier = "0000000000"

	res, err := f.svc.Update(context.Background(), "0030000321", p)

	require.NoError(t, err)
	require.True(t, res.OK(), "errors: %v", model.Messages(res.Errors))
	assert.Equal(t, "0030000321", res.Data.FacilityIdentifier)
	assert.Equal(t, 1, f.provider.count("update_facility"))
	assert.Zero(t, f.provider.count("facility"))
	for _, c := range f.provider.recorded() {
		assert.Equal(t, "0030000321", c.facilityID, c.op)
	}
	assert.Equal(t, []string{"update:all_created"}, f.outcomes.seen)
}

func TestUpdate_CreatedStatusIsNotSuccessForRoot(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, 8)
	f.provider.respond = func(op, key string) provider.Response {
		if op == "update_facility" {
			return provider.Response{Status: http.StatusCreated}
		}
		return created(op, key)
	}

	res, err := f.svc.Update(context.Background(), "0030000321", validPayload())

	require.NoError(t, err)
	assert.Equal(t, StatePartiallyFailed, res.State)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, model.Facility, res.Errors[0].EntityName)
	assert.Equal(t, "Created", res.Errors[0].Message)
}

func TestValidate_DryRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, 4)

	errs, err := f.svc.Validate(context.Background(), validPayload())
	require.NoError(t, err)
	assert.Empty(t, errs)

	p := validPayload()
	p.RepaymentProfiles[0].Allocations[1].DueDate = "2025-04-01"
	errs, err = f.svc.Validate(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"repaymentProfiles.allocations.dueDate values must be unique"}, model.Messages(errs))

	assert.Empty(t, f.provider.recorded())
	assert.Empty(t, f.outcomes.seen)
}

func TestCreate_CanceledBeforeSubmission(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, 1)
	// Hold the only slot so every submission waits on the pool.
	require.NoError(t, f.svc.pool.Acquire(context.Background()))
	defer f.svc.pool.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Reference data is fetched before the deadline; only the pool wait expires.
	res, err := f.svc.Create(ctx, validPayload())

	require.NoError(t, err)
	assert.Equal(t, StatePartiallyFailed, res.State)
	assert.Len(t, res.Errors, 8)
	for _, e := range res.Errors {
		assert.Equal(t, http.StatusGatewayTimeout, e.Status)
		assert.Equal(t, "request deadline reached before submission", e.Message)
	}
	assert.Empty(t, f.provider.recorded())
}

func TestSubmissions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, 4)
	_, err := f.svc.Create(context.Background(), validPayload())
	require.NoError(t, err)

	entries, err := f.svc.Submissions(context.Background(), "0030000321")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(StateAllCreated), entries[0].State)

	_, err = f.svc.Submissions(context.Background(), "0030000999")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var invalid *apperr.InvalidError
	_, err = f.svc.Submissions(context.Background(), "12")
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "bad_request", invalid.Kind())

	bare := New(&stubProvider{}, &stubLookup{}, pool.New(1), Config{})
	_, err = bare.Submissions(context.Background(), "0030000321")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSubmissions_RejectedIsNotRecorded(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, 4)
	p := validPayload()
	p.Overview.Currency = "XAF"

	res, err := f.svc.Create(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, StateRejected, res.State)

	_, err = f.svc.Submissions(context.Background(), p.Overview.FacilityIdentifier)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"named key", `{"obligationIdentifier":"OB1","id":"x"}`, "OB1"},
		{"identifier fallback", `{"identifier":"X1"}`, "X1"},
		{"numeric id", `{"id":42}`, "42"},
		{"null", `{"obligationIdentifier":null}`, ""},
		{"empty", ``, ""},
		{"not an object", `[1,2]`, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := provider.Response{Status: 201, Data: json.RawMessage(tt.body)}
			assert.Equal(t, tt.want, identifier(r, obligationKey))
		})
	}
}
