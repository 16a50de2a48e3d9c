package kafka

import "strings"

// IsConnectionError reports whether err looks like a broker connectivity
// problem.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(),
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"no route to host",
		"network is unreachable",
		"broker not available",
		"leader not available",
		"connection closed",
		"dial tcp",
	)
}

// IsRetryableError reports whether a write failing with err may succeed
// when retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if IsConnectionError(err) {
		return true
	}
	return containsAny(err.Error(),
		"temporary",
		"request timed out",
		"not enough replicas",
		"not leader for partition",
	)
}

func containsAny(s string, patterns ...string) bool {
	s = strings.ToLower(s)
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
