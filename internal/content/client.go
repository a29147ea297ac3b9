// Package content implements the TikTok video posting workflow against the
// SANAA360 backend: initialize the upload, stream the file to TikTok's upload
// URL, then poll the publish status until it settles.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/sanaa360/creator-cli/internal/backend"
)

// Scopes that allow posting video. Either one is sufficient.
const (
	ScopeVideoUpload  = "video.upload"
	ScopeVideoPublish = "video.publish"
)

// publish status values reported by the backend
const (
	StatusPublished = "PUBLISHED"
	StatusFailed    = "FAILED"
)

// pollInterval is how often the publish status is re-checked.
const pollInterval = 5 * time.Second

// PostRequest describes the video to publish.
type PostRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	FileSize    int64  `json:"fileSize"`
}

// InitResult is the backend's answer to an upload initialization: the publish
// handle to poll on and the direct upload URL the file bytes go to.
type InitResult struct {
	PublishID string
	UploadURL string
}

// Client drives the posting workflow. Backend API calls reuse the session
// client so the cookie travels with them; the file PUT goes to TikTok's
// upload host with a dedicated client because the transfer can far exceed
// the per-request API timeout.
type Client struct {
	api    *backend.Client
	upload *http.Client
}

// New builds a content client on top of an authenticated backend client.
func New(api *backend.Client) *Client {
	return &Client{
		api: api,
		upload: &http.Client{
			Transport: api.Transport(),
		},
	}
}

// CanPost reports whether the granted scopes allow posting video.
func CanPost(scope backend.ScopeList) bool {
	return scope.Has(ScopeVideoUpload) || scope.Has(ScopeVideoPublish)
}

// InitUpload registers the video with the backend and returns the publish
// handle and direct upload URL.
func (c *Client) InitUpload(ctx context.Context, req PostRequest) (*InitResult, *backend.Error) {
	body, status, netErr := c.api.DoJSON(ctx, http.MethodPost, "/content/tiktok/post-video", req)
	if netErr != nil {
		return nil, netErr
	}
	if status < 200 || status > 299 {
		return nil, backend.ClassifyAPIError(status, body)
	}

	var resp struct {
		PublishID string `json:"publishId"`
		UploadURL string `json:"uploadUrl"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.PublishID == "" || resp.UploadURL == "" {
		return nil, &backend.Error{
			Kind:         backend.KindServer,
			Message:      "backend returned an unreadable upload initialization response",
			HTTPStatus:   status,
			ResponseBody: string(body),
		}
	}
	return &InitResult{PublishID: resp.PublishID, UploadURL: resp.UploadURL}, nil
}

// UploadFile PUTs the video bytes directly to the upload URL. TikTok's upload
// endpoint requires a Content-Range covering the whole file even for a single
// chunk.
func (c *Client) UploadFile(ctx context.Context, uploadURL, path string) *backend.Error {
	f, err := os.Open(path)
	if err != nil {
		return &backend.Error{
			Kind:    backend.KindServer,
			Message: fmt.Sprintf("open video file failed: %v", err),
		}
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return &backend.Error{
			Kind:    backend.KindServer,
			Message: fmt.Sprintf("stat video file failed: %v", err),
		}
	}
	size := info.Size()
	if size == 0 {
		return &backend.Error{
			Kind:    backend.KindServer,
			Message: "video file is empty",
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, f)
	if err != nil {
		return &backend.Error{
			Kind:    backend.KindServer,
			Message: fmt.Sprintf("create upload request failed: %v", err),
		}
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "video/mp4")
	req.Header.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", size-1, size))

	log.Debugf("uploading %d bytes to TikTok", size)
	resp, err := c.upload.Do(req)
	if err != nil {
		return &backend.Error{
			Kind:           backend.KindNetwork,
			Message:        "upload connection failed",
			IsNetworkError: true,
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &backend.Error{
			Kind:         backend.KindServer,
			Message:      fmt.Sprintf("upload rejected (status %d)", resp.StatusCode),
			HTTPStatus:   resp.StatusCode,
			ResponseBody: string(raw),
		}
	}
	return nil
}

// CheckStatus fetches the current publish status for one upload.
func (c *Client) CheckStatus(ctx context.Context, userID, publishID string) (string, *backend.Error) {
	path := fmt.Sprintf("/content/tiktok/check-upload-status/%s/%s", userID, publishID)
	body, status, netErr := c.api.DoJSON(ctx, http.MethodGet, path, nil)
	if netErr != nil {
		return "", netErr
	}
	if status < 200 || status > 299 {
		return "", backend.ClassifyAPIError(status, body)
	}
	return gjson.GetBytes(body, "status").String(), nil
}

// WaitForPublish polls the publish status until it reaches a terminal value
// or the context is done. Transient network failures during polling are
// logged and retried on the next tick.
func (c *Client) WaitForPublish(ctx context.Context, userID, publishID string) (string, *backend.Error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.CheckStatus(ctx, userID, publishID)
		if err != nil && !err.IsNetworkError {
			return "", err
		}
		if err != nil {
			log.Warnf("publish status check failed, retrying: %v", err)
		} else {
			log.Debugf("publish %s status: %s", publishID, status)
			if status == StatusPublished || status == StatusFailed {
				return status, nil
			}
		}

		select {
		case <-ctx.Done():
			return "", &backend.Error{
				Kind:    backend.KindServer,
				Message: "gave up waiting for the publish result",
			}
		case <-ticker.C:
		}
	}
}
