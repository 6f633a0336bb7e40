package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rowanhale/pulsefit/internal/model"
)

type OrderStore struct {
	db *sql.DB
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

const orderCols = `id, reference, user_id, plan_id, status, amount_cents, stripe_checkout_session_id, paid_at, created_at`

func scanOrder(scanner interface{ Scan(...any) error }) (*model.Order, error) {
	var o model.Order
	err := scanner.Scan(&o.ID, &o.Reference, &o.UserID, &o.PlanID, &o.Status, &o.AmountCents, &o.StripeCheckoutSessionID, &o.PaidAt, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *OrderStore) Create(userID, planID, amountCents int64) (*model.Order, error) {
	reference := uuid.New().String()
	result, err := s.db.Exec(
		`INSERT INTO orders (reference, user_id, plan_id, status, amount_cents) VALUES (?, ?, ?, ?, ?)`,
		reference, userID, planID, model.OrderStatusPending, amountCents,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *OrderStore) GetByID(id int64) (*model.Order, error) {
	row := s.db.QueryRow(`SELECT `+orderCols+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *OrderStore) GetByCheckoutSession(checkoutSessionID string) (*model.Order, error) {
	row := s.db.QueryRow(`SELECT `+orderCols+` FROM orders WHERE stripe_checkout_session_id = ?`, checkoutSessionID)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order by checkout session: %w", err)
	}
	return o, nil
}

func (s *OrderStore) ByUser(userID int64) ([]*model.Order, error) {
	rows, err := s.db.Query(`SELECT `+orderCols+` FROM orders WHERE user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *OrderStore) AttachCheckoutSession(id int64, checkoutSessionID string) error {
	_, err := s.db.Exec(
		`UPDATE orders SET stripe_checkout_session_id = ? WHERE id = ?`,
		checkoutSessionID, id,
	)
	if err != nil {
		return fmt.Errorf("attach checkout session: %w", err)
	}
	return nil
}

// MarkPaid is idempotent: replaying a webhook for an already-paid order
// changes nothing.
func (s *OrderStore) MarkPaid(id int64) error {
	_, err := s.db.Exec(
		`UPDATE orders SET status = ?, paid_at = datetime('now') WHERE id = ? AND status = ?`,
		model.OrderStatusPaid, id, model.OrderStatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	return nil
}

func (s *OrderStore) MarkCanceled(id int64) error {
	_, err := s.db.Exec(
		`UPDATE orders SET status = ? WHERE id = ? AND status = ?`,
		model.OrderStatusCanceled, id, model.OrderStatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark order canceled: %w", err)
	}
	return nil
}
