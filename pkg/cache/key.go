package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached ClinicalTrials.gov response.
type Key struct {
	// Endpoint is the API path (e.g., "/studies")
	Endpoint string

	// Query are the request query parameters
	Query url.Values
}

// String generates a deterministic cache key string.
// Format: ctgov:endpoint:query1=val1:query2=val2
//
// Example:
//
//	ctgov:studies:pageSize=10:query.cond=Pompe Disease
func (k Key) String() string {
	parts := []string{"ctgov"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Query params sorted for determinism
	if len(k.Query) > 0 {
		queryKeys := make([]string, 0, len(k.Query))
		for key := range k.Query {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Query.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
