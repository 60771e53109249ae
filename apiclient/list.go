package apiclient

import "encoding/json"

type page[T any] struct {
	Results *[]T `json:"results"`
}

// DecodeList accepts both DRF list shapes: a paginated {"count", "results": [...]}
// object or a bare array. ok is false when raw is neither.
func DecodeList[T any](raw json.RawMessage) (items []T, ok bool) {
	var p page[T]
	if err := json.Unmarshal(raw, &p); err == nil && p.Results != nil {
		return *p.Results, true
	}
	if err := json.Unmarshal(raw, &items); err == nil && items != nil {
		return items, true
	}
	return nil, false
}
