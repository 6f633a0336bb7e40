package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rowanhale/pulsefit/internal/model"
	"github.com/sethvargo/go-retry"
)

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendWelcome greets a newly registered member.
func (c *Client) SendWelcome(ctx context.Context, toEmail, name string) error {
	textBody := fmt.Sprintf("Hi %s,\n\nYour PulseFit account is ready. Sign in at %s to pick a plan, book classes, and set up Face ID check-in.\n", name, c.baseURL)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p>Your PulseFit account is ready. <a href="%s">Sign in</a> to pick a plan, book classes, and set up Face ID check-in.</p>`,
		name, c.baseURL,
	)
	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  "Welcome to PulseFit",
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
}

// SendReceipt confirms a paid order.
func (c *Client) SendReceipt(ctx context.Context, toEmail string, order *model.Order, plan *model.Plan) error {
	amount := fmt.Sprintf("$%.2f", float64(order.AmountCents)/100)
	textBody := fmt.Sprintf("Thanks for your purchase!\n\nOrder %s\n%s — %s\n\nSee your orders at %s/dashboard.\n", order.Reference, plan.Name, amount, c.baseURL)
	htmlBody := fmt.Sprintf(
		`<p>Thanks for your purchase!</p><p>Order <strong>%s</strong><br>%s — %s</p><p><a href="%s/dashboard">View your orders</a></p>`,
		order.Reference, plan.Name, amount, c.baseURL,
	)
	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  fmt.Sprintf("Your PulseFit receipt — %s", plan.Name),
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
}

// send posts to the Postmark API, retrying transient failures with
// exponential backoff. 4xx responses are permanent and not retried.
func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.postmarkapp.com/email", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Postmark-Server-Token", c.serverToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("send email: %w", err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("postmark returned %d", resp.StatusCode))
		default:
			return fmt.Errorf("postmark returned %d", resp.StatusCode)
		}
	})
}
