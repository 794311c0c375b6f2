package pagination

import "sync"

// Sentinel turns visibility of the last displayed item into load-more
// requests. Rendering code reports visibility with Observe; the sentinel is
// attached only in infinite-scroll mode.
type Sentinel[T any] struct {
	c *Controller[T]

	mu      sync.Mutex
	visible bool
	target  int // index the visibility state refers to, -1 when detached
}

// Target returns the item the sentinel is attached to.
func (s *Sentinel[T]) Target() (index int, item T, ok bool) {
	s.c.mu.RLock()
	defer s.c.mu.RUnlock()

	if !s.c.st.infinite || len(s.c.st.items) == 0 {
		var zero T
		return -1, zero, false
	}
	index = len(s.c.st.items) - 1
	return index, s.c.st.items[index], true
}

// Attached reports whether a sentinel target exists.
func (s *Sentinel[T]) Attached() bool {
	_, _, ok := s.Target()
	return ok
}

// Observe reports whether the target is visible. A transition to visible
// for the current target triggers exactly one LoadMore; staying visible
// does not trigger again until the target changes or visibility is lost.
// The returned channel is closed once the triggered load has been applied.
func (s *Sentinel[T]) Observe(visible bool) <-chan struct{} {
	index, _, ok := s.Target()

	s.mu.Lock()
	if !ok {
		s.visible = false
		s.target = -1
		s.mu.Unlock()
		return closedChan()
	}

	if !visible {
		s.visible = false
		s.target = index
		s.mu.Unlock()
		return closedChan()
	}

	if s.visible && s.target == index {
		s.mu.Unlock()
		return closedChan()
	}
	s.visible = true
	s.target = index
	s.mu.Unlock()

	return s.c.LoadMore()
}
