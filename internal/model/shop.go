package model

import "time"

// Order status constants
const (
	OrderStatusPending  = "pending"
	OrderStatusPaid     = "paid"
	OrderStatusCanceled = "canceled"
)

// Plan is a purchasable item in the shop: a membership plan, a class pack,
// or a personal-training bundle. Prices live in Stripe; we keep the price
// ID plus display fields.
type Plan struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	StripePriceID string    `json:"-"`
	PriceCents    int64     `json:"price_cents"`
	Interval      string    `json:"interval"` // "one_time", "monthly", "annual"
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

type Order struct {
	ID                      int64      `json:"id"`
	Reference               string     `json:"reference"`
	UserID                  int64      `json:"user_id"`
	PlanID                  int64      `json:"plan_id"`
	Status                  string     `json:"status"`
	AmountCents             int64      `json:"amount_cents"`
	StripeCheckoutSessionID string     `json:"-"`
	PaidAt                  *time.Time `json:"paid_at"`
	CreatedAt               time.Time  `json:"created_at"`
}
