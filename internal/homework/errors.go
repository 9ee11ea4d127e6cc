package homework

import "fmt"

// ShapeError reports a payload that does not match the documented API shape.
type ShapeError struct {
	Field  string
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Field == "" {
		return "unexpected response shape: " + e.Reason
	}
	return fmt.Sprintf("unexpected response shape: %s: %s", e.Field, e.Reason)
}

// UnknownVerdictError reports a homework status outside the verdict table.
type UnknownVerdictError struct {
	Status string
}

func (e *UnknownVerdictError) Error() string {
	return fmt.Sprintf("unknown homework status: %q", e.Status)
}
