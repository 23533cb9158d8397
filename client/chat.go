// Package client is a Go client for the chat endpoints, including the polling loop
// a chat window runs to receive new messages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/cropverse/models"
)

const DefaultPollInterval = 2 * time.Second

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

type ChatClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func New(cfg Config) (*ChatClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &ChatClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
	}, nil
}

// MessagePage is one poll result. Cursor is the highest message id the server has returned.
type MessagePage struct {
	Items  []models.ChatMessage `json:"items"`
	Cursor uint                 `json:"cursor"`
}

// Messages fetches messages of a thread with ids greater than afterID.
func (c *ChatClient) Messages(ctx context.Context, threadID, afterID uint) (*MessagePage, error) {
	q := url.Values{}
	q.Set("thread_id", strconv.FormatUint(uint64(threadID), 10))
	q.Set("after_id", strconv.FormatUint(uint64(afterID), 10))

	var page MessagePage
	if err := c.do(ctx, http.MethodGet, "/api/chat/messages?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Send posts a text message and returns its id.
func (c *ChatClient) Send(ctx context.Context, threadID uint, text string) (uint, error) {
	var out struct {
		MessageID uint `json:"message_id"`
	}
	body := map[string]any{"thread_id": threadID, "message": text}
	if err := c.do(ctx, http.MethodPost, "/api/chat/send", body, &out); err != nil {
		return 0, err
	}
	return out.MessageID, nil
}

// CreateThread opens (or returns) the thread with the other party. A buyer passes a farmer id
// and a farmer passes a buyer id.
func (c *ChatClient) CreateThread(ctx context.Context, role string, otherID uint) (uint, error) {
	body := map[string]any{}
	if role == models.RoleBuyer {
		body["farmer_id"] = otherID
	} else {
		body["buyer_id"] = otherID
	}
	var out struct {
		Thread models.ChatThread `json:"thread"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/chat/thread", body, &out); err != nil {
		return 0, err
	}
	return out.Thread.ID, nil
}

func (c *ChatClient) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &apiErr)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

// Poller follows one thread. It keeps the highest message id seen and only asks for newer ones.
type Poller struct {
	mu       sync.Mutex
	client   *ChatClient
	threadID uint
	cursor   uint
	interval time.Duration
	logger   *logrus.Logger
}

func NewPoller(client *ChatClient, threadID uint, interval time.Duration, logger *logrus.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{client: client, threadID: threadID, interval: interval, logger: logger}
}

func (p *Poller) Cursor() uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Poll fetches the messages after the cursor and advances it past them.
func (p *Poller) Poll(ctx context.Context) ([]models.ChatMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	page, err := p.client.Messages(ctx, p.threadID, p.cursor)
	if err != nil {
		return nil, err
	}
	for _, m := range page.Items {
		if m.ID > p.cursor {
			p.cursor = m.ID
		}
	}
	return page.Items, nil
}

// Run polls every interval and hands each non-empty batch to deliver until ctx is done.
// Poll errors are logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context, deliver func([]models.ChatMessage)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		msgs, err := p.Poll(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			p.logger.WithError(err).WithField("thread_id", p.threadID).Warn("chat poll failed")
		case len(msgs) > 0:
			deliver(msgs)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
