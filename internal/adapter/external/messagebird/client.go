// Package messagebird delivers reminders over SMS through the MessageBird
// REST API.
package messagebird

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"remindbot/internal/platform/httpclient"
	"remindbot/internal/shared"
	"remindbot/internal/task"
)

const defaultBaseURL = "https://rest.messagebird.com"

// Client sends messages through the MessageBird /messages endpoint.
type Client struct {
	http       *httpclient.Client
	baseURL    string
	accessKey  string
	originator string
	log        *slog.Logger
}

// Options configures the MessageBird client.
type Options struct {
	// AccessKey is the live API key, sent as "AccessKey <key>".
	AccessKey string
	// Originator is the sender name or number shown to the recipient.
	Originator string
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
	// Timeout bounds a single send including retries.
	Timeout time.Duration
}

// New creates a MessageBird client over the shared HTTP platform client.
func New(opts Options, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Client{
		http: httpclient.New(
			httpclient.WithTimeout(opts.Timeout),
			httpclient.WithLogger(log),
			httpclient.WithRetries(2, 300*time.Millisecond),
			httpclient.WithRetryNonIdempotent(true),
		),
		baseURL:    opts.BaseURL,
		accessKey:  opts.AccessKey,
		originator: opts.Originator,
		log:        log,
	}
}

var _ task.Notifier = (*Client)(nil)

// messageRequest is the /messages request body.
type messageRequest struct {
	Originator string   `json:"originator"`
	Recipients []string `json:"recipients"`
	Body       string   `json:"body"`
}

// messageResponse carries the fields we care about from the API reply.
type messageResponse struct {
	ID     string `json:"id"`
	Errors []struct {
		Code        int    `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

// SendReminder delivers a reminder text to the recipient's phone.
func (c *Client) SendReminder(ctx context.Context, text string, to task.Recipient) error {
	return c.send(ctx, text, to)
}

// SendMessage delivers a plain notification, e.g. a snooze confirmation.
func (c *Client) SendMessage(ctx context.Context, text string, to task.Recipient) error {
	return c.send(ctx, text, to)
}

func (c *Client) send(ctx context.Context, text string, to task.Recipient) error {
	if to.Phone == "" {
		return shared.Wrap(shared.ErrValidation, "recipient has no phone number")
	}

	payload, err := json.Marshal(messageRequest{
		Originator: c.originator,
		Recipients: []string{to.Phone},
		Body:       text,
	})
	if err != nil {
		return shared.Wrap(err, "encode message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return shared.Wrap(err, "build message request")
	}
	req.Header.Set("Authorization", "AccessKey "+c.accessKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "send message")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return shared.Wrap(shared.MarkKind(
			fmt.Errorf("messagebird: status %d: %s", resp.StatusCode, truncate(body, 256)),
			shared.KindDependencyFailure), "send message")
	}

	var mr messageResponse
	if err := json.Unmarshal(body, &mr); err == nil && len(mr.Errors) > 0 {
		return shared.Wrap(shared.MarkKind(
			fmt.Errorf("messagebird: %s (code %d)", mr.Errors[0].Description, mr.Errors[0].Code),
			shared.KindDependencyFailure), "send message")
	}

	c.log.Debug("message sent", "message_id", mr.ID, "recipient", to.Phone)
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
