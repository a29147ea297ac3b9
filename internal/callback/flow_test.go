package callback

import (
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func TestAwaitCallbackManualPaste(t *testing.T) {
	server := startServer(t)

	prompt := func(string) (string, error) {
		return server.RedirectURI() + "?code=pasted-code&state=pasted-state", nil
	}

	result, err := AwaitCallback(server, prompt, 5*time.Millisecond, time.Minute)
	if err != nil {
		t.Fatalf("AwaitCallback() error: %v", err)
	}
	if result.Code != "pasted-code" || result.State != "pasted-state" {
		t.Errorf("result = %+v, want pasted code and state", result)
	}
}

func TestAwaitCallbackEmptyPasteKeepsWaiting(t *testing.T) {
	server := startServer(t)

	prompted := make(chan struct{})
	prompt := func(string) (string, error) {
		close(prompted)
		return "", nil
	}

	go func() {
		<-prompted
		resp, errGet := http.Get(server.RedirectURI() + "?code=late-code&state=late-state")
		if errGet == nil {
			_ = resp.Body.Close()
		}
	}()

	result, err := AwaitCallback(server, prompt, 5*time.Millisecond, time.Minute)
	if err != nil {
		t.Fatalf("AwaitCallback() error: %v", err)
	}
	if result.Code != "late-code" {
		t.Errorf("code = %q, want the redirect that arrived after the declined paste", result.Code)
	}
}

func TestAwaitCallbackRedirectWinsOverPrompt(t *testing.T) {
	server := startServer(t)

	var promptCalls int32
	prompt := func(string) (string, error) {
		atomic.AddInt32(&promptCalls, 1)
		return "", nil
	}

	resp, err := http.Get(server.RedirectURI() + "?code=fast-code&state=fast-state")
	if err != nil {
		t.Fatalf("GET callback: %v", err)
	}
	_ = resp.Body.Close()

	result, err := AwaitCallback(server, prompt, time.Hour, time.Minute)
	if err != nil {
		t.Fatalf("AwaitCallback() error: %v", err)
	}
	if result.Code != "fast-code" {
		t.Errorf("code = %q, want the redirect result", result.Code)
	}
	if n := atomic.LoadInt32(&promptCalls); n != 0 {
		t.Errorf("prompt called %d times, want 0", n)
	}
}

func TestAwaitCallbackNoPromptTimesOut(t *testing.T) {
	server := startServer(t)

	if _, err := AwaitCallback(server, nil, time.Minute, 20*time.Millisecond); err == nil {
		t.Fatal("expected a timeout error without a redirect or prompt")
	}
}

func TestAwaitCallbackBadPasteFails(t *testing.T) {
	server := startServer(t)

	prompt := func(string) (string, error) {
		return "://not a url", nil
	}

	if _, err := AwaitCallback(server, prompt, 5*time.Millisecond, time.Minute); err == nil {
		t.Fatal("expected an error for an unparseable pasted URL")
	}
}
