package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StoredPlan is a meal plan as persisted for a user.
type StoredPlan struct {
	ID        int64         `json:"id"`
	UserID    string        `json:"userId"`
	Days      []MealPlanDay `json:"days"`
	CreatedAt time.Time     `json:"createdAt"`
}

// PlanRepository is a database-backed repository for meal plans.
type PlanRepository struct {
	db *sql.DB
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(d *sql.DB) *PlanRepository {
	return &PlanRepository{db: d}
}

// Save stores a new plan for the user and returns its ID.
func (r *PlanRepository) Save(ctx context.Context, userID string, days []MealPlanDay) (int64, error) {
	data, err := json.Marshal(days)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal meal plan: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO meal_plans (user_id, plan_data, created_at) VALUES (?, ?, ?)`,
		userID, string(data), time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert meal plan: %w", err)
	}
	return res.LastInsertId()
}

// Latest returns the user's most recent plan, or nil when there is none.
func (r *PlanRepository) Latest(ctx context.Context, userID string) (*StoredPlan, error) {
	var (
		p    StoredPlan
		data string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, plan_data, created_at FROM meal_plans WHERE user_id = ? ORDER BY id DESC LIMIT 1`,
		userID,
	).Scan(&p.ID, &p.UserID, &data, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest meal plan for user %s: %w", userID, err)
	}

	if err := json.Unmarshal([]byte(data), &p.Days); err != nil {
		return nil, fmt.Errorf("failed to unmarshal meal plan %d: %w", p.ID, err)
	}
	return &p, nil
}

// ListRecentByUserID returns up to limit of the user's plans, newest first.
func (r *PlanRepository) ListRecentByUserID(ctx context.Context, userID string, limit int) ([]StoredPlan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, plan_data, created_at FROM meal_plans WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent meal plans for user %s: %w", userID, err)
	}
	defer rows.Close()

	var plans []StoredPlan
	for rows.Next() {
		var (
			p    StoredPlan
			data string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &data, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meal plan: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &p.Days); err != nil {
			return nil, fmt.Errorf("failed to unmarshal meal plan %d: %w", p.ID, err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}
