// Package outcome classifies provider submission responses and turns the
// rejected ones into positionally addressed validation errors.
package outcome

import (
	"encoding/json"
	"net/http"

	"github.com/iliamunaev/facility-gateway/internal/model"
	"github.com/iliamunaev/facility-gateway/internal/provider"
)

// Indexed is a response paired with the position of the element that
// produced it.
type Indexed struct {
	Index    int
	Response provider.Response
}

// FilterInvalid returns the responses whose status is not expected, each
// with its original index. The status code is the only thing inspected.
func FilterInvalid(responses []provider.Response, expected int) []Indexed {
	var out []Indexed
	for i, r := range responses {
		if r.Status != expected {
			out = append(out, Indexed{Index: i, Response: r})
		}
	}
	return out
}

// failureBody is the provider's error payload.
type failureBody struct {
	Message          string                     `json:"message"`
	ValidationErrors []model.ProviderFieldError `json:"validationErrors"`
}

// MapToValidationErrorRecords builds one record per response in responses
// whose status is not expected. A record's index is the response's position
// in responses, which is the index of the element that was submitted.
func MapToValidationErrorRecords(entityName string, responses []provider.Response, expected int) []model.ValidationError {
	invalid := FilterInvalid(responses, expected)
	if len(invalid) == 0 {
		return nil
	}

	out := make([]model.ValidationError, 0, len(invalid))
	for _, in := range invalid {
		rec := model.Indexed(entityName, in.Index, "")
		rec.Status = in.Response.Status

		var body failureBody
		if len(in.Response.Data) > 0 && json.Unmarshal(in.Response.Data, &body) == nil {
			rec.Message = body.Message
			rec.ValidationErrors = body.ValidationErrors
		}
		if rec.Message == "" {
			rec.Message = defaultMessage(in.Response.Status)
		}
		out = append(out, rec)
	}
	return out
}

func defaultMessage(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "unexpected provider status"
}

// Batch is the set of responses for one entity kind.
type Batch struct {
	EntityName string
	Expected   int
	Responses  []provider.Response
}

var batchOrder = []string{
	model.Facility,
	model.Counterparties,
	model.Obligations,
	model.RepaymentProfiles,
	model.FixedFees,
}

// MapAll maps every batch and concatenates the records in entity order:
// facility, counterparties, obligations, repaymentProfiles, fixedFees.
// The order of batches does not matter. Batches for other entity names are
// appended afterwards in the order given.
func MapAll(batches []Batch) []model.ValidationError {
	byName := make(map[string][]Batch, len(batches))
	var extra []Batch
	known := make(map[string]bool, len(batchOrder))
	for _, name := range batchOrder {
		known[name] = true
	}
	for _, b := range batches {
		if known[b.EntityName] {
			byName[b.EntityName] = append(byName[b.EntityName], b)
		} else {
			extra = append(extra, b)
		}
	}

	var out []model.ValidationError
	for _, name := range batchOrder {
		for _, b := range byName[name] {
			out = append(out, MapToValidationErrorRecords(b.EntityName, b.Responses, b.Expected)...)
		}
	}
	for _, b := range extra {
		out = append(out, MapToValidationErrorRecords(b.EntityName, b.Responses, b.Expected)...)
	}
	return out
}
