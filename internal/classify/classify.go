// Package classify maps failed upstream responses onto the sync error taxonomy.
//
// Matching is a heuristic over the current provider error shapes; callers depend
// only on Class, so the rules can change here without touching them.
package classify

import (
	"net/http"
	"strings"
)

type Class string

const (
	QuotaPending  Class = "quota_pending"
	AccessPending Class = "access_pending"
	NotFound      Class = "not_found"
	Other         Class = "other"
)

// Pending reports whether c is an expected, recoverable "not ready yet" state.
func (c Class) Pending() bool { return c == QuotaPending || c == AccessPending }

var quotaMarkers = []string{
	"resource_exhausted",
	"quota_limit_value",
	"quota limit value",
	"quota exceeded",
	"ratelimitexceeded",
	"over_query_limit",
}

var accessMarkers = []string{
	"not enabled",
	"access not configured",
	"accessnotconfigured",
	"service_disabled",
	"has not been used in project",
	"permission_denied",
	"permission denied",
	"request_denied",
	"not authorized to use this api",
}

// Classify is a pure function of the status code and response body.
func Classify(status int, body string) Class {
	low := strings.ToLower(body)
	switch {
	case containsAny(low, quotaMarkers):
		return QuotaPending
	case containsAny(low, accessMarkers):
		return AccessPending
	case status == http.StatusNotFound:
		return NotFound
	}
	return Other
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
