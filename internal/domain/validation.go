package domain

import "fmt"

// FieldError represents a single field's validation error.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

// ValidatePayload checks that a payload carries everything the webhook needs.
// The timestamp is not checked: malformed timestamps are forwarded as-is.
func ValidatePayload(p *ConversionPayload) []FieldError {
	var errs []FieldError
	if p.ActionID <= 0 {
		errs = append(errs, FieldError{"action_id", "required"})
	}
	if p.Gclid == "" {
		errs = append(errs, FieldError{"gclid", "required"})
	}
	if p.ConversionName == "" {
		errs = append(errs, FieldError{"conversion_name", "unknown action"})
	}
	return errs
}
