package remote

import "fmt"

// ErrorKind classifies a remote API failure for the retry policy.
type ErrorKind int

const (
	// KindTransport covers connectivity-level failures; retryable.
	KindTransport ErrorKind = iota
	// KindRetryable covers HTTP 5xx and 429; retried with backoff.
	KindRetryable
	// KindAuth covers rejected credentials; never retried, and the stored
	// credential is marked invalid until refreshed.
	KindAuth
	// KindClient covers every other failure (malformed request, unknown
	// API error); never retried.
	KindClient
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRetryable:
		return "retryable"
	case KindAuth:
		return "auth"
	default:
		return "client"
	}
}

// APIError is a classified remote API failure.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Reason     string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("remote api error (%s, http %d): %s", e.Kind, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("remote api error (%s, http %d)", e.Kind, e.StatusCode)
}

// Retryable reports whether the failure class is worth another attempt.
func (e *APIError) Retryable() bool {
	return e.Kind == KindTransport || e.Kind == KindRetryable
}

// Slack-style error strings that mean the token is no longer usable.
var authErrors = map[string]bool{
	"invalid_auth":     true,
	"not_authed":       true,
	"token_revoked":    true,
	"token_expired":    true,
	"account_inactive": true,
}

func classifyAPIReason(statusCode int, reason string) *APIError {
	kind := KindClient
	switch {
	case authErrors[reason]:
		kind = KindAuth
	case reason == "ratelimited" || statusCode == 429 || statusCode >= 500:
		kind = KindRetryable
	}
	return &APIError{Kind: kind, StatusCode: statusCode, Reason: reason}
}
