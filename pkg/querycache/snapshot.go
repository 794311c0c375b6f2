package querycache

// Snapshot is the entire reconstructable pagination state of one list.
type Snapshot[T any] struct {
	// Items is the page window currently presented to the consumer.
	Items []T `json:"items"`

	// AllFetchedItems is every item fetched so far, in source order.
	AllFetchedItems []T `json:"all_fetched_items"`

	// Cursor is the continuation token for the next fetch ("" when none).
	Cursor string `json:"cursor"`

	// HasMore reports whether the source has further items.
	HasMore bool `json:"has_more"`

	// IsInfiniteScrollMode is false once the list switched to paged mode.
	IsInfiniteScrollMode bool `json:"is_infinite_scroll_mode"`

	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
}

// Clone returns a copy of the snapshot that shares no slice storage with s.
func (s *Snapshot[T]) Clone() *Snapshot[T] {
	if s == nil {
		return nil
	}
	c := *s
	c.Items = cloneSlice(s.Items)
	c.AllFetchedItems = cloneSlice(s.AllFetchedItems)
	return &c
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
