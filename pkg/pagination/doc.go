// Package pagination provides the hybrid infinite-scroll / paged controller
// that backs scrollable lists (coin lists, creator lists, ranked feeds).
//
// A Controller fetches a cursor-paginated collection through a FetchFunc,
// grows a single window while the list is short (infinite-scroll mode) and
// switches once to fixed-size pages when the accumulated result set reaches
// MaxInfiniteScroll (paged mode). State is written to a querycache.Store
// after every successful fetch or page change, so a controller created
// later for the same CacheKey resumes without touching the network.
//
// Example usage:
//
//	store := querycache.NewMemoryStore[Coin]()
//	cfg := pagination.DefaultConfig()
//	cfg.CacheKey = querycache.Key{List: "coins/most-valuable"}.String()
//
//	ctrl, err := pagination.New(fetchCoins, cfg, pagination.WithStore(store))
//	if err != nil {
//		return err
//	}
//	defer ctrl.Close()
//
//	// Scroll reached the last item
//	ctrl.Sentinel().Observe(true)
//
//	// Later, in paged mode
//	<-ctrl.GoToPage(3)
//	view := ctrl.View()
//
// All operations are funnelled through one task queue served by a single
// worker goroutine, so at most one fetch is in flight per controller.
// LoadMore is single-flight: it is a no-op while any operation is pending.
// Fetch errors never escape the controller; they are exposed as View.Err
// and the previously visible items stay in place.
package pagination
