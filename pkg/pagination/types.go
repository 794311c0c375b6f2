package pagination

import "context"

// PageInfo describes the position of a fetched page in the remote list.
type PageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

// Page is one response of the remote source.
type Page[T any] struct {
	Items    []T       `json:"items"`
	PageInfo *PageInfo `json:"pageInfo,omitempty"`
}

// next returns the continuation cursor and whether more items exist.
// A missing PageInfo means the list is exhausted.
func (p Page[T]) next() (cursor string, hasMore bool) {
	if p.PageInfo == nil {
		return "", false
	}
	if p.PageInfo.EndCursor != nil {
		cursor = *p.PageInfo.EndCursor
	}
	return cursor, p.PageInfo.HasNextPage
}

// FetchFunc fetches up to count items following cursor. An empty cursor
// starts from the beginning of the list. Implementations report the end of
// the list with HasNextPage=false rather than an error.
type FetchFunc[T any] func(ctx context.Context, cursor string, count int) (Page[T], error)

// View is the read-only state exposed to rendering code.
type View[T any] struct {
	// Items is the page window currently displayed
	Items []T

	// IsLoading is true while an operation is queued or running
	IsLoading bool

	// Err is the last fetch error; len(Items) == 0 means the initial load failed
	Err error

	HasMore              bool
	CurrentPage          int
	TotalPages           int
	IsInfiniteScrollMode bool
}
