package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/rowanhale/pulsefit/internal/auth"
	"github.com/rowanhale/pulsefit/internal/email"
	"github.com/rowanhale/pulsefit/internal/model"
	"github.com/rowanhale/pulsefit/internal/push"
	stripeclient "github.com/rowanhale/pulsefit/internal/shop/stripe"
	"github.com/rowanhale/pulsefit/internal/store"
	ws "github.com/rowanhale/pulsefit/internal/websocket"
)

type ShopHandler struct {
	plans       *store.PlanStore
	orders      *store.OrderStore
	users       *store.UserStore
	pushSubs    *store.PushStore
	stripe      *stripeclient.Client
	emailClient *email.Client
	pushSvc     *push.Service
	hub         *ws.Hub
	logger      *slog.Logger
}

func NewShopHandler(
	plans *store.PlanStore,
	orders *store.OrderStore,
	users *store.UserStore,
	pushSubs *store.PushStore,
	sc *stripeclient.Client,
	ec *email.Client,
	ps *push.Service,
	hub *ws.Hub,
	logger *slog.Logger,
) *ShopHandler {
	return &ShopHandler{
		plans:       plans,
		orders:      orders,
		users:       users,
		pushSubs:    pushSubs,
		stripe:      sc,
		emailClient: ec,
		pushSvc:     ps,
		hub:         hub,
		logger:      logger,
	}
}

// ListPlans handles GET /api/shop/plans.
func (h *ShopHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListActive()
	if err != nil {
		h.logger.Error("list plans", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

// Checkout handles POST /api/shop/checkout: creates a pending order and a
// Stripe checkout session for it.
func (h *ShopHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if !h.stripe.Configured() {
		writeError(w, http.StatusServiceUnavailable, "payments are not configured")
		return
	}
	ac, _ := auth.FromContext(r.Context())
	userID := ac.UserID

	var req struct {
		PlanID int64 `json:"plan_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	plan, err := h.plans.GetByID(req.PlanID)
	if err != nil {
		h.logger.Error("get plan", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if plan == nil || !plan.Active {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}

	order, err := h.orders.Create(userID, plan.ID, plan.PriceCents)
	if err != nil {
		h.logger.Error("create order", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	sessID, sessURL, err := h.stripe.CreateCheckoutSession(plan.StripePriceID, plan.Interval, order.Reference, ac.Email)
	if err != nil {
		h.logger.Error("create checkout session", "error", err, "order_id", order.ID)
		if cerr := h.orders.MarkCanceled(order.ID); cerr != nil {
			h.logger.Error("cancel order after checkout failure", "error", cerr, "order_id", order.ID)
		}
		writeError(w, http.StatusBadGateway, "could not start checkout")
		return
	}
	if err := h.orders.AttachCheckoutSession(order.ID, sessID); err != nil {
		h.logger.Error("attach checkout session", "error", err, "order_id", order.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"order":        order,
		"checkout_url": sessURL,
	})
}

// Orders handles GET /api/shop/orders.
func (h *ShopHandler) Orders(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	orders, err := h.orders.ByUser(userID)
	if err != nil {
		h.logger.Error("list orders", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// Webhook handles POST /api/shop/webhook from Stripe. The endpoint is
// public; authenticity comes from the signature check.
func (h *ShopHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	event, err := h.stripe.VerifyWebhook(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(event)
	case "checkout.session.expired":
		h.handleCheckoutExpired(event)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *ShopHandler) handleCheckoutCompleted(event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		h.logger.Error("webhook: unmarshal checkout session", "error", err)
		return
	}

	order, err := h.orders.GetByCheckoutSession(sess.ID)
	if err != nil {
		h.logger.Error("webhook: look up order", "error", err, "checkout_session", sess.ID)
		return
	}
	if order == nil {
		h.logger.Warn("webhook: no order for checkout session", "checkout_session", sess.ID)
		return
	}
	if err := h.orders.MarkPaid(order.ID); err != nil {
		h.logger.Error("webhook: mark order paid", "error", err, "order_id", order.ID)
		return
	}

	h.hub.Broadcast(ws.NewMessage(ws.EntityOrder, "paid", order.ID, map[string]any{"user_id": order.UserID}))
	go h.notifyPaid(order)
}

func (h *ShopHandler) handleCheckoutExpired(event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		h.logger.Error("webhook: unmarshal checkout session", "error", err)
		return
	}
	order, err := h.orders.GetByCheckoutSession(sess.ID)
	if err != nil || order == nil {
		return
	}
	if err := h.orders.MarkCanceled(order.ID); err != nil {
		h.logger.Error("webhook: cancel order", "error", err, "order_id", order.ID)
	}
}

// notifyPaid sends the receipt email and a push notification. Runs off
// the webhook request path so Stripe gets its 200 promptly.
func (h *ShopHandler) notifyPaid(order *model.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := h.users.GetByID(order.UserID)
	if err != nil || user == nil {
		h.logger.Error("notify paid: look up user", "error", err, "user_id", order.UserID)
		return
	}
	plan, err := h.plans.GetByID(order.PlanID)
	if err != nil || plan == nil {
		h.logger.Error("notify paid: look up plan", "error", err, "plan_id", order.PlanID)
		return
	}

	if h.emailClient.Configured() {
		if err := h.emailClient.SendReceipt(ctx, user.Email, order, plan); err != nil {
			h.logger.Error("send receipt", "error", err, "order_id", order.ID)
		}
	}

	if !h.pushSvc.Configured() {
		return
	}
	subs, err := h.pushSubs.ByUser(order.UserID)
	if err != nil {
		h.logger.Error("notify paid: list subscriptions", "error", err)
		return
	}
	payload := push.Payload{
		Title: "Payment received",
		Body:  plan.Name + " is now active. See you at the gym!",
		URL:   "/dashboard/orders",
		Tag:   model.NotifTypeOrderPaid,
		Badge: 1,
	}
	for _, sub := range subs {
		if err := h.pushSvc.Send(ctx, sub, payload); err != nil {
			if errors.Is(err, push.ErrExpired) {
				if derr := h.pushSubs.DeleteByEndpoint(sub.Endpoint); derr != nil {
					h.logger.Error("delete expired subscription", "error", derr)
				}
				continue
			}
			h.logger.Error("send push", "error", err, "subscription_id", sub.ID)
		}
	}
}
