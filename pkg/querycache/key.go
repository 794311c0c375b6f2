package querycache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a logical list, e.g. "most valuable coins on base".
type Key struct {
	// List is the list name (e.g., "coins/most-valuable")
	List string

	// Params are the query parameters that change the list contents
	Params url.Values

	// Viewer scopes per-user lists ("" for public lists)
	Viewer string
}

// String generates a deterministic cache key string.
// Format: pager:list:param1=val1:param2=val2:viewer=abc
//
// Example:
//
//	pager:coins/most-valuable:chain=base
func (k Key) String() string {
	parts := []string{"pager"}

	list := strings.Trim(k.List, "/")
	if list != "" {
		parts = append(parts, list)
	}

	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			values := append([]string(nil), k.Params[name]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", name, strings.Join(values, ",")))
		}
	}

	if k.Viewer != "" {
		parts = append(parts, "viewer="+k.Viewer)
	}

	return strings.Join(parts, ":")
}
