package wordpress

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/ckough/pagesmith/internal/service/publisher"
)

// Config carries the credentials for one WordPress site.
type Config struct {
	BaseURL     string
	Username    string
	AppPassword string
	Timeout     time.Duration
}

// Client talks to the WordPress REST API (wp/v2) using application-password
// Basic auth. Read paths are retried; writes are issued exactly once.
type Client struct {
	cfg    Config
	client *http.Client
	auth   string
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
		auth:   "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.Username+":"+cfg.AppPassword)),
		logger: logger,
	}
}

type pageResponse struct {
	ID   int    `json:"id"`
	Link string `json:"link"`
}

type mediaResponse struct {
	ID        int    `json:"id"`
	SourceURL string `json:"source_url"`
}

// FindPageBySlug looks a page up by slug. Returns nil with no error when the
// slug has no remote page.
func (c *Client) FindPageBySlug(ctx context.Context, slug string) (*publisher.PageRef, error) {
	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/pages?slug=%s", c.base(), url.QueryEscape(slug))

	var pages []pageResponse
	err := retry.Do(
		func() error {
			return c.doJSON(ctx, "GET", "find page by slug", endpoint, nil, &pages)
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, nil
	}
	return &publisher.PageRef{ID: pages[0].ID, Link: pages[0].Link}, nil
}

// UpdatePage writes content (and optionally the title) onto an existing page.
func (c *Client) UpdatePage(ctx context.Context, id int, write publisher.PageWrite) (*publisher.PageRef, error) {
	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/pages/%d", c.base(), id)

	body := map[string]any{
		"content": write.Content,
		"status":  write.Status,
	}
	if write.SetTitle {
		body["title"] = write.Title
	}

	var page pageResponse
	if err := c.doJSON(ctx, "POST", "update page", endpoint, body, &page); err != nil {
		return nil, err
	}
	return &publisher.PageRef{ID: page.ID, Link: page.Link}, nil
}

// GetMedia fetches an existing remote media record.
func (c *Client) GetMedia(ctx context.Context, id int) (*publisher.MediaRef, error) {
	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/media/%d", c.base(), id)

	var media mediaResponse
	err := retry.Do(
		func() error {
			return c.doJSON(ctx, "GET", "get media", endpoint, nil, &media)
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return &publisher.MediaRef{ID: media.ID, SourceURL: media.SourceURL}, nil
}

// UploadMedia creates a media record from raw binary content.
func (c *Client) UploadMedia(ctx context.Context, filename, mime string, data []byte) (*publisher.MediaRef, error) {
	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/media", c.base())

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.auth)
	req.Header.Set("Content-Type", mime)
	req.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload media: %w", err)
	}
	defer resp.Body.Close()

	var media mediaResponse
	if err := decodeResponse(resp, "upload media", &media); err != nil {
		return nil, err
	}

	c.logger.Info("Media uploaded",
		zap.String("filename", filename),
		zap.Int("media_id", media.ID))

	return &publisher.MediaRef{ID: media.ID, SourceURL: media.SourceURL}, nil
}

// UpdateMediaMeta writes alt/title/caption metadata onto a media record.
func (c *Client) UpdateMediaMeta(ctx context.Context, id int, meta publisher.MediaMeta) error {
	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/media/%d", c.base(), id)

	body := map[string]any{
		"alt_text": meta.AltText,
	}
	if meta.Title != "" {
		body["title"] = meta.Title
	}
	if meta.Caption != "" {
		body["caption"] = meta.Caption
	}

	var media mediaResponse
	return c.doJSON(ctx, "POST", "update media metadata", endpoint, body, &media)
}

func (c *Client) base() string {
	return strings.TrimRight(c.cfg.BaseURL, "/")
}

func (c *Client) doJSON(ctx context.Context, method, op, endpoint string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request body: %w", op, err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Authorization", c.auth)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, op, out)
}

// decodeResponse surfaces non-2xx responses with the remote message field when
// present, otherwise the raw body, always prefixed with the status and the
// logical operation name.
func decodeResponse(resp *http.Response, op string, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		detail := strings.TrimSpace(string(raw))

		var remote struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &remote); err == nil && remote.Message != "" {
			detail = remote.Message
		}
		return &apiError{op: op, status: resp.StatusCode, detail: detail}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

type apiError struct {
	op     string
	status int
	detail string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.op, e.status, e.detail)
}

// isRetryable limits read-path retries to transport errors and 5xx responses.
func isRetryable(err error) bool {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.status >= 500
	}
	return true
}
