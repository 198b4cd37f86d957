package ratelimit

import "strings"

// KeyForProject builds the per-project limiter key. Cache hits count
// against the same key as upstream calls.
func KeyForProject(projectID string) string {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "p:" + projectID
}
