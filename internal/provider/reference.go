package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/iliamunaev/facility-gateway/internal/apperr"
	"github.com/iliamunaev/facility-gateway/internal/model"
)

type currency struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SupportedCurrencies returns the currency codes the provider accepts.
func (c *Client) SupportedCurrencies(ctx context.Context) ([]string, error) {
	var list []currency
	if err := c.getList(ctx, "currencies", "/currencies", &list); err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(list))
	for _, cur := range list {
		codes = append(codes, cur.Code)
	}
	return codes, nil
}

// IsSupportedProductType probes one product type code.
// The provider answers 200 for a supported code and 404 otherwise.
func (c *Client) IsSupportedProductType(ctx context.Context, code string) (bool, error) {
	const op = "product_type"
	resp, err := c.do(ctx, op, http.MethodGet, "/product-types/"+url.PathEscape(code), nil)
	if err != nil {
		return false, apperr.Upstream(op, err)
	}
	switch resp.Status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, apperr.Upstream(op, fmt.Errorf("unexpected status %d", resp.Status))
	}
}

// CounterpartyRoles returns every counterparty role.
func (c *Client) CounterpartyRoles(ctx context.Context) ([]model.CounterpartyRole, error) {
	var roles []model.CounterpartyRole
	if err := c.getList(ctx, "counterparty_roles", "/counterparty-roles", &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// ObligationSubtypes returns every obligation subtype, for all product types.
func (c *Client) ObligationSubtypes(ctx context.Context) ([]model.ObligationSubtype, error) {
	var subtypes []model.ObligationSubtype
	if err := c.getList(ctx, "obligation_subtypes", "/obligation-subtypes", &subtypes); err != nil {
		return nil, err
	}
	return subtypes, nil
}

func (c *Client) getList(ctx context.Context, op, path string, out any) error {
	resp, err := c.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return apperr.Upstream(op, err)
	}
	if resp.Status != http.StatusOK {
		return apperr.Upstream(op, fmt.Errorf("unexpected status %d", resp.Status))
	}
	if err := resp.Decode(out); err != nil {
		return apperr.Upstream(op, fmt.Errorf("decode: %w", err))
	}
	return nil
}
