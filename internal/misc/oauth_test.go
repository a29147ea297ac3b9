package misc

import "testing"

func TestGenerateRandomState(t *testing.T) {
	t.Parallel()

	first, err := GenerateRandomState()
	if err != nil {
		t.Fatalf("GenerateRandomState() error: %v", err)
	}
	if len(first) != 32 {
		t.Errorf("state length = %d, want 32 hex chars", len(first))
	}

	second, err := GenerateRandomState()
	if err != nil {
		t.Fatalf("GenerateRandomState() error: %v", err)
	}
	if first == second {
		t.Error("two generated states should differ")
	}
}

func TestParseOAuthCallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected *OAuthCallback
		wantErr  bool
	}{
		{
			"full URL",
			"http://localhost:8090/auth/callback?code=abc123&state=xyz",
			&OAuthCallback{Code: "abc123", State: "xyz"},
			false,
		},
		{
			"bare query with question mark",
			"?code=abc123&state=xyz",
			&OAuthCallback{Code: "abc123", State: "xyz"},
			false,
		},
		{
			"bare query without question mark",
			"code=abc123&state=xyz",
			&OAuthCallback{Code: "abc123", State: "xyz"},
			false,
		},
		{
			"percent-encoded code is decoded once",
			"http://localhost/cb?code=ab%2Fcd%3D%3D&state=s",
			&OAuthCallback{Code: "ab/cd==", State: "s"},
			false,
		},
		{
			"provider error",
			"http://localhost/cb?error=access_denied&error_description=user%20declined",
			&OAuthCallback{Error: "access_denied", ErrorDescription: "user declined"},
			false,
		},
		{
			"description promoted when error missing",
			"http://localhost/cb?error_description=something%20failed",
			&OAuthCallback{Error: "something failed"},
			false,
		},
		{
			"empty input",
			"   ",
			nil,
			false,
		},
		{
			"garbage input",
			"not a url at all",
			nil,
			true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseOAuthCallback(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOAuthCallback() error: %v", err)
			}
			if tt.expected == nil {
				if got != nil {
					t.Fatalf("got %+v, want nil", got)
				}
				return
			}
			if *got != *tt.expected {
				t.Errorf("got %+v, want %+v", got, tt.expected)
			}
		})
	}
}
