package backend

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind classifies a failed backend operation. The callback controller decides
// retry versus terminal behavior from the kind alone.
type Kind string

const (
	// KindMissingCode indicates the redirect lacked an authorization code.
	KindMissingCode Kind = "missing_code"
	// KindStateMismatch indicates the redirect state did not match the value
	// generated at redirect-initiation time (terminal only in strict mode).
	KindStateMismatch Kind = "state_mismatch"
	// KindNetwork indicates the request could not reach the backend
	// (timeout, DNS, connection refused).
	KindNetwork Kind = "network_error"
	// KindInvalidCode indicates the backend rejected the authorization code
	// (already consumed or expired). Retrying with the same code cannot succeed.
	KindInvalidCode Kind = "invalid_or_expired_code"
	// KindInsufficientScope indicates the user declined required permissions.
	KindInsufficientScope Kind = "insufficient_scope"
	// KindSessionExpired indicates the backend session is gone (status 401).
	KindSessionExpired Kind = "session_expired"
	// KindRefreshInvalid indicates the refresh token itself is invalid and a
	// full re-authentication is required.
	KindRefreshInvalid Kind = "refresh_token_invalid"
	// KindServer covers any other non-2xx response.
	KindServer Kind = "server_error"
)

// Error is the structured failure record surfaced to the session store and
// the callback controller. It doubles as the errorDetails state of the store.
type Error struct {
	Kind           Kind   `json:"kind"`
	Message        string `json:"message"`
	HTTPStatus     int    `json:"http_status,omitempty"`
	ResponseBody   string `json:"response_body,omitempty"`
	IsNetworkError bool   `json:"is_network_error"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retryable reports whether an automatic retry of the same operation can
// succeed. Only network-class and generic server failures qualify.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case KindNetwork, KindServer:
		return true
	default:
		return false
	}
}

// NetworkClass reports whether the failure is a connectivity problem, which
// warrants "server unreachable" guidance and growing backoff rather than a
// permissions fix.
func (e *Error) NetworkClass() bool {
	return e != nil && e.IsNetworkError
}

// errorMessageKeys is the field precedence used to pull a user-facing message
// out of a backend JSON error body.
var errorMessageKeys = []string{"error", "errorMessage", "error_description", "details"}

// messageFromBody extracts the user-facing message from a JSON error body,
// falling back to the provided generic message when no known field is present.
func messageFromBody(body []byte, fallback string) string {
	for _, key := range errorMessageKeys {
		if result := gjson.GetBytes(body, key); result.Exists() {
			if s := result.String(); s != "" {
				return s
			}
		}
	}
	return fallback
}

// scopeDenied reports whether an error body signals declined or missing
// consent scopes rather than a bad authorization code.
func scopeDenied(body []byte) bool {
	for _, key := range []string{"error", "error_description", "details"} {
		result := gjson.GetBytes(body, key)
		if !result.Exists() {
			continue
		}
		if containsScopeHint(result.String()) {
			return true
		}
	}
	return false
}

func containsScopeHint(s string) bool {
	s = strings.ToLower(s)
	for _, hint := range []string{"scope", "permission", "access_denied", "consent"} {
		if strings.Contains(s, hint) {
			return true
		}
	}
	return false
}
