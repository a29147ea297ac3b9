package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sanaa360/creator-cli/internal/backend"
	"github.com/sanaa360/creator-cli/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	api, err := backend.New(&config.Config{
		BackendBaseURL:        server.URL,
		AuthDir:               t.TempDir(),
		RequestTimeoutSeconds: 5,
	})
	if err != nil {
		t.Fatalf("backend.New() error: %v", err)
	}
	return New(api)
}

func TestCanPost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		scope    backend.ScopeList
		expected bool
	}{
		{"upload scope", backend.ScopeList{"user.info.basic", "video.upload"}, true},
		{"publish scope", backend.ScopeList{"video.publish"}, true},
		{"both", backend.ScopeList{"video.upload", "video.publish"}, true},
		{"neither", backend.ScopeList{"user.info.basic"}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CanPost(tt.scope); got != tt.expected {
				t.Errorf("CanPost(%v) = %v, want %v", tt.scope, got, tt.expected)
			}
		})
	}
}

func TestInitUpload(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/content/tiktok/post-video" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"publishId":"pub-1","uploadUrl":"https://upload.example/v1"}`))
	}))

	result, errInit := client.InitUpload(context.Background(), PostRequest{Title: "clip", FileSize: 1024})
	if errInit != nil {
		t.Fatalf("InitUpload() error: %v", errInit)
	}
	if result.PublishID != "pub-1" || result.UploadURL != "https://upload.example/v1" {
		t.Errorf("InitUpload() = %+v", result)
	}
}

func TestInitUploadSessionExpired(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"no session"}`))
	}))

	_, errInit := client.InitUpload(context.Background(), PostRequest{Title: "clip", FileSize: 1})
	if errInit == nil || errInit.Kind != backend.KindSessionExpired {
		t.Fatalf("got %v, want session-expired error", errInit)
	}
}

func TestUploadFileSendsContentRange(t *testing.T) {
	t.Parallel()

	payload := []byte("fake video bytes for the range header test")

	var gotRange, gotType string
	var gotLen int64
	upload := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		gotRange = r.Header.Get("Content-Range")
		gotType = r.Header.Get("Content-Type")
		gotLen = r.ContentLength
	}))
	t.Cleanup(upload.Close)

	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	if errUp := client.UploadFile(context.Background(), upload.URL, path); errUp != nil {
		t.Fatalf("UploadFile() error: %v", errUp)
	}

	wantRange := "bytes 0-41/42"
	if gotRange != wantRange {
		t.Errorf("Content-Range = %q, want %q", gotRange, wantRange)
	}
	if gotType != "video/mp4" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if gotLen != int64(len(payload)) {
		t.Errorf("ContentLength = %d, want %d", gotLen, len(payload))
	}
}

func TestUploadFileEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.mp4")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	if errUp := client.UploadFile(context.Background(), "http://127.0.0.1:1/unused", path); errUp == nil {
		t.Fatal("expected an error for an empty file")
	}
}

func TestCheckStatus(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/content/tiktok/check-upload-status/u1/pub-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"PUBLISHED"}`))
	}))

	status, errStatus := client.CheckStatus(context.Background(), "u1", "pub-1")
	if errStatus != nil {
		t.Fatalf("CheckStatus() error: %v", errStatus)
	}
	if status != StatusPublished {
		t.Errorf("status = %q, want PUBLISHED", status)
	}
}
