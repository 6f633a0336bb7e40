package store

import (
	"database/sql"
	"fmt"

	"github.com/rowanhale/pulsefit/internal/model"
)

type PlanStore struct {
	db *sql.DB
}

func NewPlanStore(db *sql.DB) *PlanStore {
	return &PlanStore{db: db}
}

const planCols = `id, name, description, stripe_price_id, price_cents, interval, active, created_at`

func scanPlan(scanner interface{ Scan(...any) error }) (*model.Plan, error) {
	var p model.Plan
	err := scanner.Scan(&p.ID, &p.Name, &p.Description, &p.StripePriceID, &p.PriceCents, &p.Interval, &p.Active, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PlanStore) Create(name, description, stripePriceID string, priceCents int64, interval string) (*model.Plan, error) {
	result, err := s.db.Exec(
		`INSERT INTO plans (name, description, stripe_price_id, price_cents, interval) VALUES (?, ?, ?, ?, ?)`,
		name, description, stripePriceID, priceCents, interval,
	)
	if err != nil {
		return nil, fmt.Errorf("insert plan: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *PlanStore) GetByID(id int64) (*model.Plan, error) {
	row := s.db.QueryRow(`SELECT `+planCols+` FROM plans WHERE id = ?`, id)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

func (s *PlanStore) ListActive() ([]*model.Plan, error) {
	rows, err := s.db.Query(`SELECT ` + planCols + ` FROM plans WHERE active = 1 ORDER BY price_cents`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (s *PlanStore) SetActive(id int64, active bool) error {
	_, err := s.db.Exec(`UPDATE plans SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("set plan active: %w", err)
	}
	return nil
}
