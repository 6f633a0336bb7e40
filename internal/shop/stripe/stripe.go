package stripe

import (
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

// Configured returns true if the secret key is set.
func (c *Client) Configured() bool {
	return c.cfg.SecretKey != ""
}

// CreateCheckoutSession creates a checkout session for one shop item and
// returns the session ID and hosted URL. Recurring plans use subscription
// mode; everything else is a one-time payment. The member's email prefills
// the hosted checkout page.
func (c *Client) CreateCheckoutSession(priceID, interval, orderReference, customerEmail string) (id, url string, err error) {
	mode := stripe.CheckoutSessionModePayment
	if interval == "monthly" || interval == "annual" {
		mode = stripe.CheckoutSessionModeSubscription
	}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(mode)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(orderReference),
		SuccessURL:        stripe.String(c.cfg.SuccessURL),
		CancelURL:         stripe.String(c.cfg.CancelURL),
	}
	if customerEmail != "" {
		params.CustomerEmail = stripe.String(customerEmail)
	}
	sess, err := checksession.New(params)
	if err != nil {
		return "", "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.ID, sess.URL, nil
}

// VerifyWebhook validates the webhook signature and returns the event.
func (c *Client) VerifyWebhook(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, c.cfg.WebhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("verify webhook: %w", err)
	}
	return event, nil
}
