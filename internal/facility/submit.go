package facility

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/iliamunaev/facility-gateway/internal/journal"
	"github.com/iliamunaev/facility-gateway/internal/model"
	"github.com/iliamunaev/facility-gateway/internal/outcome"
	"github.com/iliamunaev/facility-gateway/internal/provider"
)

// Keys under which the provider returns the identifier it assigned.
const (
	facilityKey         = "facilityIdentifier"
	dealKey             = "dealIdentifier"
	counterpartyKey     = "counterpartyIdentifier"
	obligationKey       = "obligationIdentifier"
	repaymentProfileKey = "repaymentProfileIdentifier"
	fixedFeeKey         = "fixedFeeIdentifier"
)

// submission holds every provider response of one composite request.
// Response i of a collection always belongs to element i of that
// collection.
type submission struct {
	op         Operation
	payload    model.FacilityRequest
	facilityID string

	root            provider.Response
	childrenSkipped bool

	counterparties    []provider.Response
	obligations       []provider.Response
	repaymentProfiles []provider.Response
	fixedFees         []provider.Response
}

// submit sends every entity of p and waits for all of them. A rejected
// call never cancels its siblings, and nothing already accepted is undone.
func (s *Service) submit(ctx context.Context, op Operation, p model.FacilityRequest) *submission {
	sub := &submission{op: op, payload: p, facilityID: p.Overview.FacilityIdentifier}

	sendRoot := func(ctx context.Context) provider.Response {
		if op == OpUpdate {
			return s.provider.UpdateFacility(ctx, p.Overview.FacilityIdentifier, p.Overview)
		}
		return s.provider.CreateFacility(ctx, p.Overview)
	}

	var g errgroup.Group

	if s.cfg.ParentFirst {
		sub.root = s.call(ctx, sendRoot)
		if sub.root.Status != expectedRootStatus(op) {
			sub.childrenSkipped = true
			return sub
		}
		if id := identifier(sub.root, facilityKey); id != "" {
			sub.facilityID = id
		}
	} else {
		g.Go(func() error {
			sub.root = s.call(ctx, sendRoot)
			return nil
		})
	}

	id := sub.facilityID
	sub.counterparties = fanOut(ctx, &g, s, p.Counterparties, func(ctx context.Context, cp model.Counterparty) provider.Response {
		return s.provider.CreateCounterparty(ctx, id, cp)
	})
	sub.obligations = fanOut(ctx, &g, s, p.Obligations, func(ctx context.Context, o model.Obligation) provider.Response {
		return s.provider.CreateObligation(ctx, id, o)
	})
	sub.repaymentProfiles = fanOut(ctx, &g, s, p.RepaymentProfiles, func(ctx context.Context, rp model.RepaymentProfile) provider.Response {
		return s.provider.CreateRepaymentProfile(ctx, id, rp)
	})
	sub.fixedFees = fanOut(ctx, &g, s, p.FixedFees, func(ctx context.Context, f model.FixedFee) provider.Response {
		return s.provider.CreateFixedFee(ctx, id, f)
	})

	_ = g.Wait()
	return sub
}

// fanOut starts one call per item on g. The returned slice is filled by
// index and must not be read before g.Wait returns.
func fanOut[T any](ctx context.Context, g *errgroup.Group, s *Service, items []T, send func(context.Context, T) provider.Response) []provider.Response {
	out := make([]provider.Response, len(items))
	for i, item := range items {
		g.Go(func() error {
			out[i] = s.call(ctx, func(ctx context.Context) provider.Response { return send(ctx, item) })
			return nil
		})
	}
	return out
}

// call runs send under a pool slot. A call that could not get a slot
// before ctx ended is reported like a provider call that never answered.
func (s *Service) call(ctx context.Context, send func(context.Context) provider.Response) provider.Response {
	var resp provider.Response
	if err := s.pool.Do(ctx, func() { resp = send(ctx) }); err != nil {
		return notSubmitted(err)
	}
	return resp
}

func notSubmitted(err error) provider.Response {
	status := http.StatusServiceUnavailable
	msg := "request canceled before submission"
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
		msg = "request deadline reached before submission"
	}
	data, _ := json.Marshal(map[string]string{"message": msg})
	return provider.Response{Status: status, Data: data}
}

func (sub *submission) batches() []outcome.Batch {
	out := []outcome.Batch{{
		EntityName: model.Facility,
		Expected:   expectedRootStatus(sub.op),
		Responses:  []provider.Response{sub.root},
	}}
	if sub.childrenSkipped {
		return out
	}
	return append(out,
		outcome.Batch{EntityName: model.Counterparties, Expected: http.StatusCreated, Responses: sub.counterparties},
		outcome.Batch{EntityName: model.Obligations, Expected: http.StatusCreated, Responses: sub.obligations},
		outcome.Batch{EntityName: model.RepaymentProfiles, Expected: http.StatusCreated, Responses: sub.repaymentProfiles},
		outcome.Batch{EntityName: model.FixedFees, Expected: http.StatusCreated, Responses: sub.fixedFees},
	)
}

func (sub *submission) result() Result {
	if errs := outcome.MapAll(sub.batches()); len(errs) > 0 {
		return Result{State: StatePartiallyFailed, Errors: errs}
	}

	deal := identifier(sub.root, dealKey)
	if deal == "" {
		deal = sub.payload.Overview.DealIdentifier
	}
	return Result{
		State: StateAllCreated,
		Data: &model.FacilityResponse{
			FacilityIdentifier: sub.facilityID,
			DealIdentifier:     deal,
			Counterparties:     createdEntities(sub.counterparties, counterpartyKey),
			Obligations:        createdEntities(sub.obligations, obligationKey),
			RepaymentProfiles:  createdEntities(sub.repaymentProfiles, repaymentProfileKey),
			FixedFees:          createdEntities(sub.fixedFees, fixedFeeKey),
		},
	}
}

// created lists every entity the provider accepted, including those whose
// siblings were rejected.
func (sub *submission) created() []journal.Created {
	var out []journal.Created
	if sub.root.Status == expectedRootStatus(sub.op) {
		out = append(out, journal.Created{EntityName: model.Facility, Identifier: sub.facilityID})
	}
	add := func(entity, key string, responses []provider.Response) {
		for i, r := range responses {
			if r.Status == http.StatusCreated {
				out = append(out, journal.Created{EntityName: entity, Index: i, Identifier: identifier(r, key)})
			}
		}
	}
	add(model.Counterparties, counterpartyKey, sub.counterparties)
	add(model.Obligations, obligationKey, sub.obligations)
	add(model.RepaymentProfiles, repaymentProfileKey, sub.repaymentProfiles)
	add(model.FixedFees, fixedFeeKey, sub.fixedFees)
	return out
}

func createdEntities(responses []provider.Response, key string) []model.CreatedEntity {
	out := make([]model.CreatedEntity, len(responses))
	for i, r := range responses {
		out[i] = model.CreatedEntity{Index: i, Identifier: identifier(r, key)}
	}
	return out
}

// identifier reads key from a response body, falling back to "identifier"
// and "id". Numeric identifiers are returned in their JSON text form.
func identifier(r provider.Response, key string) string {
	var body map[string]json.RawMessage
	if len(r.Data) == 0 || json.Unmarshal(r.Data, &body) != nil {
		return ""
	}
	for _, k := range []string{key, "identifier", "id"} {
		raw, ok := body[k]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
		if text := strings.TrimSpace(string(raw)); text != "null" {
			return text
		}
	}
	return ""
}
