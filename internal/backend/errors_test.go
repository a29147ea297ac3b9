package backend

import "testing"

func TestMessageFromBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		fallback string
		expected string
	}{
		{
			"error field wins",
			`{"error":"code already used","errorMessage":"other"}`,
			"fallback",
			"code already used",
		},
		{
			"errorMessage when error absent",
			`{"errorMessage":"token exchange failed"}`,
			"fallback",
			"token exchange failed",
		},
		{
			"error_description third",
			`{"error_description":"the code has expired","details":"ignored"}`,
			"fallback",
			"the code has expired",
		},
		{
			"details last",
			`{"details":"upstream rejected the request"}`,
			"fallback",
			"upstream rejected the request",
		},
		{
			"empty error falls through to next key",
			`{"error":"","errorMessage":"second choice"}`,
			"fallback",
			"second choice",
		},
		{
			"no known field uses fallback",
			`{"status":"error"}`,
			"something went wrong",
			"something went wrong",
		},
		{
			"non-JSON body uses fallback",
			`<html>502 Bad Gateway</html>`,
			"server error",
			"server error",
		},
		{
			"empty body uses fallback",
			``,
			"server error",
			"server error",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := messageFromBody([]byte(tt.body), tt.fallback)
			if got != tt.expected {
				t.Errorf("messageFromBody() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind      Kind
		retryable bool
	}{
		{KindMissingCode, false},
		{KindStateMismatch, false},
		{KindNetwork, true},
		{KindInvalidCode, false},
		{KindInsufficientScope, false},
		{KindSessionExpired, false},
		{KindRefreshInvalid, false},
		{KindServer, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()
			e := &Error{Kind: tt.kind}
			if got := e.Retryable(); got != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", got, tt.retryable)
			}
		})
	}

	var nilErr *Error
	if nilErr.Retryable() {
		t.Error("nil error should not be retryable")
	}
}

func TestScopeDenied(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		expected bool
	}{
		{"scope in error", `{"error":"insufficient scope granted"}`, true},
		{"access_denied", `{"error":"access_denied"}`, true},
		{"permission in description", `{"error_description":"user declined the permission"}`, true},
		{"consent in details", `{"details":"consent was not given"}`, true},
		{"plain invalid code", `{"error":"invalid authorization code"}`, false},
		{"no known fields", `{"message":"scope"}`, false},
		{"empty body", ``, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := scopeDenied([]byte(tt.body)); got != tt.expected {
				t.Errorf("scopeDenied() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	t.Parallel()

	withStatus := &Error{Kind: KindInvalidCode, Message: "code expired", HTTPStatus: 400}
	if got := withStatus.Error(); got != "invalid_or_expired_code (status 400): code expired" {
		t.Errorf("Error() = %q", got)
	}

	noStatus := &Error{Kind: KindNetwork, Message: "unreachable"}
	if got := noStatus.Error(); got != "network_error: unreachable" {
		t.Errorf("Error() = %q", got)
	}
}
