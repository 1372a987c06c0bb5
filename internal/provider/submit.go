package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/iliamunaev/facility-gateway/internal/model"
)

// CreateFacility creates the root facility. The provider answers 201.
func (c *Client) CreateFacility(ctx context.Context, o model.FacilityOverview) Response {
	return c.submit(ctx, "create_facility", http.MethodPost, "/facilities", o)
}

// UpdateFacility amends the root facility. The provider answers 200.
func (c *Client) UpdateFacility(ctx context.Context, facilityID string, o model.FacilityOverview) Response {
	return c.submit(ctx, "update_facility", http.MethodPut, facilityPath(facilityID), o)
}

// CreateCounterparty adds a counterparty to a facility.
func (c *Client) CreateCounterparty(ctx context.Context, facilityID string, cp model.Counterparty) Response {
	return c.submit(ctx, "create_counterparty", http.MethodPost, facilityPath(facilityID)+"/counterparties", cp)
}

// CreateObligation adds an obligation to a facility.
func (c *Client) CreateObligation(ctx context.Context, facilityID string, o model.Obligation) Response {
	return c.submit(ctx, "create_obligation", http.MethodPost, facilityPath(facilityID)+"/obligations", o)
}

// CreateRepaymentProfile adds a repayment profile to a facility.
func (c *Client) CreateRepaymentProfile(ctx context.Context, facilityID string, rp model.RepaymentProfile) Response {
	return c.submit(ctx, "create_repayment_profile", http.MethodPost, facilityPath(facilityID)+"/repayment-profiles", rp)
}

// CreateFixedFee adds a fixed fee to a facility.
func (c *Client) CreateFixedFee(ctx context.Context, facilityID string, f model.FixedFee) Response {
	return c.submit(ctx, "create_fixed_fee", http.MethodPost, facilityPath(facilityID)+"/fixed-fees", f)
}

func facilityPath(id string) string {
	return "/facilities/" + url.PathEscape(id)
}

// submit never fails: a call that produced no HTTP response is reported as
// 504 when it timed out and 502 otherwise, so callers classify it like any
// other provider rejection. A status that arrived with an unreadable body is
// kept, since the provider has already acted on the call.
func (c *Client) submit(ctx context.Context, op, method, path string, body any) Response {
	resp, err := c.do(ctx, op, method, path, body)
	if err == nil || resp.Status != 0 {
		return resp
	}

	status := http.StatusBadGateway
	msg := "provider unreachable"
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
		msg = "provider call timed out"
	}
	data, _ := json.Marshal(map[string]string{"message": msg})
	return Response{Status: status, Data: data}
}
