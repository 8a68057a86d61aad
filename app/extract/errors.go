package extract

import "strings"

// RateLimitError marks a failure the caller can wait out rather than
// abort on.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return "extraction rate limited: " + e.Err.Error()
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// IsRateLimit reports whether an error looks like upstream throttling:
// an explicit RateLimitError, an HTTP 429 mention, or quota language in
// the message.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*RateLimitError); ok {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") || strings.Contains(msg, "resource_exhausted")
}
