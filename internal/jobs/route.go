package jobs

import (
	"net/url"
	"strings"
)

// maxJobIDLen bounds identifiers accepted from the path.
const maxJobIDLen = 128

// ParseJobID extracts the job ID from a path like /api/ios/jobs/{jobId}.
// apiPrefix should include the trailing slash. ok is false when the path
// does not start with apiPrefix; an empty id with ok=true means the id
// segment was missing.
func ParseJobID(path, apiPrefix string) (jobID string, ok bool) {
	if !strings.HasPrefix(path, apiPrefix) {
		return "", false
	}
	rest := strings.Trim(strings.TrimPrefix(path, apiPrefix), "/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if unescaped, err := url.PathUnescape(rest); err == nil {
		rest = unescaped
	}
	return strings.TrimSpace(rest), true
}

// ValidJobID reports whether id is safe to forward to a provider.
func ValidJobID(id string) bool {
	if id == "" || len(id) > maxJobIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
