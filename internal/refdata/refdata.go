// Package refdata gathers the provider enumerations a payload is validated
// against.
package refdata

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/iliamunaev/facility-gateway/internal/apperr"
	"github.com/iliamunaev/facility-gateway/internal/model"
	"github.com/iliamunaev/facility-gateway/internal/validation"
)

// Lookup reads reference data from the provider. Every method is a single
// round trip with no retries.
type Lookup interface {
	IsSupportedProductType(ctx context.Context, code string) (bool, error)
	SupportedCurrencies(ctx context.Context) ([]string, error)
	CounterpartyRoles(ctx context.Context) ([]model.CounterpartyRole, error)
	ObligationSubtypes(ctx context.Context) ([]model.ObligationSubtype, error)
}

// Fetch loads the reference data p needs, issuing the lookups concurrently.
//
// Lookups p cannot use are skipped: roles without counterparties, subtypes
// without obligations, and the product type probe when the code fails its
// format guard. Any lookup failure aborts the whole fetch with an
// UpstreamError; "could not check" is never reported as "unsupported".
func Fetch(ctx context.Context, l Lookup, p model.FacilityRequest) (model.ReferenceData, error) {
	var ref model.ReferenceData
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		currencies, err := l.SupportedCurrencies(ctx)
		if err != nil {
			return apperr.Upstream("currencies", err)
		}
		ref.SupportedCurrencies = currencies
		return nil
	})

	code := p.Overview.ProductTypeCode
	if validation.IsValidFormat(code, validation.ProductTypeCodeFormat) {
		g.Go(func() error {
			ok, err := l.IsSupportedProductType(ctx, code)
			if err != nil {
				return apperr.Upstream("product type", err)
			}
			ref.SupportedProductTypes = map[string]bool{code: ok}
			return nil
		})
	}

	if len(p.Counterparties) > 0 {
		g.Go(func() error {
			roles, err := l.CounterpartyRoles(ctx)
			if err != nil {
				return apperr.Upstream("counterparty roles", err)
			}
			ref.CounterpartyRoles = roles
			return nil
		})
	}

	if len(p.Obligations) > 0 {
		g.Go(func() error {
			subtypes, err := l.ObligationSubtypes(ctx)
			if err != nil {
				return apperr.Upstream("obligation subtypes", err)
			}
			ref.ObligationSubtypes = subtypes
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return model.ReferenceData{}, fmt.Errorf("reference data: %w", err)
	}
	return ref, nil
}
