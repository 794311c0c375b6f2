package pagination

import "fmt"

// Config holds controller configuration.
type Config struct {
	// InitialPageSize is the number of items requested on first load
	InitialPageSize int

	// IncrementSize is the number of items requested per load-more
	IncrementSize int

	// MaxInfiniteScroll is the accumulated size at which the controller
	// switches from infinite-scroll to paged mode
	MaxInfiniteScroll int

	// FullPageSize is the page size in paged mode
	FullPageSize int

	// CacheKey enables query cache reads and writes when set
	CacheKey string
}

// DefaultConfig returns the default list configuration.
func DefaultConfig() Config {
	return Config{
		InitialPageSize:   5,
		IncrementSize:     5,
		MaxInfiniteScroll: 20,
		FullPageSize:      20,
	}
}

// withDefaults fills non-positive sizes from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.InitialPageSize <= 0 {
		c.InitialPageSize = def.InitialPageSize
	}
	if c.IncrementSize <= 0 {
		c.IncrementSize = def.IncrementSize
	}
	if c.MaxInfiniteScroll <= 0 {
		c.MaxInfiniteScroll = def.MaxInfiniteScroll
	}
	if c.FullPageSize <= 0 {
		c.FullPageSize = def.FullPageSize
	}
	return c
}

// Validate checks that the sizes describe a reachable mode transition.
func (c Config) Validate() error {
	if c.InitialPageSize <= 0 || c.IncrementSize <= 0 || c.MaxInfiniteScroll <= 0 || c.FullPageSize <= 0 {
		return fmt.Errorf("page sizes must be positive (initial=%d increment=%d max_infinite_scroll=%d full_page=%d)",
			c.InitialPageSize, c.IncrementSize, c.MaxInfiniteScroll, c.FullPageSize)
	}
	if c.MaxInfiniteScroll < c.InitialPageSize {
		return fmt.Errorf("max_infinite_scroll must be >= initial_page_size (got %d < %d)",
			c.MaxInfiniteScroll, c.InitialPageSize)
	}
	return nil
}
