package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/xpanvictor/presenced/internal/domains/presence"
	"github.com/xpanvictor/presenced/pkg/Logger"
)

// Client is the remote presence API surface the engine writes to and
// resyncs from. All writes are idempotent overwrites.
type Client interface {
	SetPresence(ctx context.Context, p presence.Presence) error
	// SetStatus with a zero status clears the remote status.
	SetStatus(ctx context.Context, s presence.Status) error
	PauseNotifications(ctx context.Context, minutes int) error
	ResumeNotifications(ctx context.Context) error

	GetPresence(ctx context.Context) (presence.Presence, error)
	GetDNDActive(ctx context.Context) (bool, error)
}

const (
	defaultAttempts    = 3
	defaultBackoffBase = 2 * time.Second
)

// Config for the HTTP client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// HTTPClient talks to a Slack-shaped presence API. Writes get up to three
// attempts with exponential backoff (2s, 4s) on transport errors and
// retryable API failures; reads are single-shot since the next resync tick
// picks them up anyway.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *Logger.Logger

	mu    sync.RWMutex
	token string

	attempts    int
	backoffBase time.Duration
	sleep       func(time.Duration)
}

func NewHTTPClient(cfg Config, logger *Logger.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:     cfg.BaseURL,
		token:       cfg.Token,
		http:        &http.Client{Timeout: timeout},
		logger:      logger,
		attempts:    defaultAttempts,
		backoffBase: defaultBackoffBase,
		sleep:       time.Sleep,
	}
}

// SetToken swaps the credential after a config reload.
func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *HTTPClient) SetPresence(ctx context.Context, p presence.Presence) error {
	val := "away"
	if p == presence.PresenceActive {
		val = "auto"
	}
	return c.write(ctx, "users.setPresence", map[string]any{"presence": val})
}

func (c *HTTPClient) SetStatus(ctx context.Context, s presence.Status) error {
	return c.write(ctx, "users.profile.set", map[string]any{
		"profile": map[string]any{
			"status_emoji":      s.Emoji,
			"status_text":       s.Text,
			"status_expiration": s.ExpiresAt,
		},
	})
}

func (c *HTTPClient) PauseNotifications(ctx context.Context, minutes int) error {
	return c.write(ctx, "dnd.setSnooze", map[string]any{"num_minutes": minutes})
}

func (c *HTTPClient) ResumeNotifications(ctx context.Context) error {
	return c.write(ctx, "dnd.endSnooze", nil)
}

func (c *HTTPClient) GetPresence(ctx context.Context) (presence.Presence, error) {
	var resp struct {
		apiEnvelope
		Presence string `json:"presence"`
	}
	if err := c.call(ctx, "users.getPresence", nil, &resp); err != nil {
		return presence.PresenceUnknown, err
	}
	if resp.Presence == "active" || resp.Presence == "auto" {
		return presence.PresenceActive, nil
	}
	return presence.PresenceAway, nil
}

func (c *HTTPClient) GetDNDActive(ctx context.Context) (bool, error) {
	var resp struct {
		apiEnvelope
		SnoozeEnabled bool `json:"snooze_enabled"`
	}
	if err := c.call(ctx, "dnd.info", nil, &resp); err != nil {
		return false, err
	}
	return resp.SnoozeEnabled, nil
}

type apiEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (e *apiEnvelope) envelope() *apiEnvelope { return e }

type enveloped interface {
	envelope() *apiEnvelope
}

// write runs the retry loop around one idempotent write.
func (c *HTTPClient) write(ctx context.Context, method string, body map[string]any) error {
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			// 2s before the 2nd attempt, 4s before the 3rd.
			c.sleep(c.backoffBase << (attempt - 1))
		}
		var resp apiEnvelope
		err := c.call(ctx, method, body, &resp)
		if err == nil {
			return nil
		}
		lastErr = err
		if apiErr, ok := err.(*APIError); ok && !apiErr.Retryable() {
			return err
		}
		c.logger.Warnf("%s attempt %d/%d failed: %v", method, attempt+1, c.attempts, err)
	}
	return lastErr
}

// call performs a single API request and decodes the envelope.
func (c *HTTPClient) call(ctx context.Context, method string, body map[string]any, out enveloped) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return fmt.Errorf("failed to encode %s payload: %w", method, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/"+method, &payload)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	c.mu.RLock()
	req.Header.Set("Authorization", "Bearer "+c.token)
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Kind: KindTransport, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == 429 || resp.StatusCode >= 500 {
		return &APIError{Kind: KindRetryable, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return &APIError{Kind: KindAuth, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode != 200 {
		return &APIError{Kind: KindClient, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Kind: KindClient, StatusCode: resp.StatusCode, Reason: "undecodable response"}
	}
	env := out.envelope()
	if !env.OK {
		return classifyAPIReason(resp.StatusCode, env.Error)
	}
	return nil
}
