// Package cache provides optional Redis-backed caching of ClinicalTrials.gov
// responses. The API serves no cache validators or expiry headers, so every
// entry lives for a caller-configured TTL and there is no conditional
// request layer.
package cache

import (
	"time"
)

// Entry represents a cached API response body.
type Entry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// CachedAt is when the response was stored
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry becomes stale (CachedAt + configured TTL)
	Expires time.Time `json:"expires"`
}

// IsExpired returns true if the cache entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
