package homework

import (
	"encoding/json"
	"math"
)

const (
	fieldHomeworks   = "homeworks"
	fieldCurrentDate = "current_date"
)

// Response is a status payload that passed shape validation.
// Entries in Homeworks are still unchecked; see ParseStatus.
type Response struct {
	Homeworks   []any
	CurrentDate int64
}

// Validate checks a decoded status payload and extracts the homework list
// and the server-reported cursor.
func Validate(raw any) (Response, error) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return Response{}, &ShapeError{Reason: "response is not a JSON object"}
	}

	items, ok := doc[fieldHomeworks]
	if !ok {
		return Response{}, &ShapeError{Field: fieldHomeworks, Reason: "missing"}
	}
	rawDate, ok := doc[fieldCurrentDate]
	if !ok {
		return Response{}, &ShapeError{Field: fieldCurrentDate, Reason: "missing"}
	}

	homeworks, ok := items.([]any)
	if !ok {
		return Response{}, &ShapeError{Field: fieldHomeworks, Reason: "not a list"}
	}

	currentDate, ok := asInt64(rawDate)
	if !ok {
		return Response{}, &ShapeError{Field: fieldCurrentDate, Reason: "not an integer timestamp"}
	}

	return Response{Homeworks: homeworks, CurrentDate: currentDate}, nil
}

func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}
