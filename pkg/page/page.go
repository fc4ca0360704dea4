// Package page implements the pagination envelope shared by every list
// endpoint: {startAt, maxResults, total, isLast, values}.
package page

// DefaultMaxResults is applied when a request does not specify maxResults.
const DefaultMaxResults = 50

// MaxMaxResults caps maxResults; larger requests are clamped, matching the
// behavior of the real API.
const MaxMaxResults = 100

// Page is the standard list response envelope.
type Page[T any] struct {
	StartAt    int  `json:"startAt"`
	MaxResults int  `json:"maxResults"`
	Total      int  `json:"total"`
	IsLast     bool `json:"isLast"`
	Values     []T  `json:"values"`
}

// Paginate slices items into a Page. Negative startAt is treated as 0;
// non-positive maxResults uses DefaultMaxResults; maxResults above
// MaxMaxResults is clamped.
func Paginate[T any](items []T, startAt, maxResults int) Page[T] {
	if startAt < 0 {
		startAt = 0
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults > MaxMaxResults {
		maxResults = MaxMaxResults
	}

	total := len(items)
	start := startAt
	if start > total {
		start = total
	}
	end := start + maxResults
	if end > total {
		end = total
	}

	values := make([]T, end-start)
	copy(values, items[start:end])

	return Page[T]{
		StartAt:    startAt,
		MaxResults: maxResults,
		Total:      total,
		IsLast:     end >= total,
		Values:     values,
	}
}
