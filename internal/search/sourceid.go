package search

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// SourceID computes spec.md §3's `source_id = sha256(normalize(url))`.
// Normalization lowercases scheme and host and strips a trailing slash, so
// two URLs differing only in case or a trailing slash resolve to the same
// id (the Source-id stability invariant in spec.md §8).
func SourceID(rawURL string) string {
	sum := sha256.Sum256([]byte(Normalize(rawURL)))
	return hex.EncodeToString(sum[:])
}

// Normalize lowercases scheme/host and strips a single trailing slash.
// Malformed URLs fall back to a lowercased, trailing-slash-trimmed copy of
// the raw string so SourceID never panics or errors.
func Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(rawURL)), "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	normalized := u.String()
	return strings.TrimSuffix(normalized, "/")
}
