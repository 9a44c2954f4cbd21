// Package utils holds tiny helpers shared across layers. Nothing here knows
// about the chat domain.
package utils

import "strconv"

// AtoiDefault parses s as an int, falling back to def when s is empty or not
// a valid integer. Handlers use it for optional numeric query parameters such
// as page and page_size, where a malformed value should mean "use the
// default" rather than an error.
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
