package domain

import "strings"

// RoomKey returns the canonical identifier for the two-party conversation
// between a and b: the usernames sorted lexicographically and joined with a
// hyphen. Both history lookup and delivery addressing depend on
// RoomKey(a, b) == RoomKey(b, a), so every code path that touches a room must
// go through this function.
func RoomKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "-" + b
}

// RoomMembers splits a canonical room key back into its two usernames.
// The second return value is false when the key is not a two-party room key.
// Usernames themselves never contain '-' (enforced at registration), so the
// split is unambiguous.
func RoomMembers(key string) (string, string, bool) {
	a, b, ok := strings.Cut(key, "-")
	if !ok || a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}
