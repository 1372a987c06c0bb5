package model

// ValidationError is one problem found in a composite payload, addressed by
// the collection it belongs to and its ordinal index in that collection.
// Index is nil for overview fields and for constraints spanning several
// elements.
type ValidationError struct {
	EntityName       string               `json:"entityName"`
	Index            *int                 `json:"index"`
	Message          string               `json:"message"`
	Status           int                  `json:"status,omitempty"`
	ValidationErrors []ProviderFieldError `json:"validationErrors,omitempty"`
}

// ProviderFieldError is a field-level complaint returned by the provider.
type ProviderFieldError struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// ErrorResponse describes an error response.
type ErrorResponse struct {
	StatusCode       int               `json:"statusCode"`
	Message          string            `json:"message"`
	ValidationErrors []ValidationError `json:"validationErrors,omitempty"`
}

// Indexed returns an error attributed to element i of entity.
func Indexed(entity string, i int, msg string) ValidationError {
	return ValidationError{EntityName: entity, Index: &i, Message: msg}
}

// Unindexed returns an error attributed to entity as a whole.
func Unindexed(entity, msg string) ValidationError {
	return ValidationError{EntityName: entity, Message: msg}
}

// Messages flattens errs to their messages, preserving order.
func Messages(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Message)
	}
	return out
}
