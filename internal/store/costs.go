package store

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/prepcost/internal/models"
)

// Costs returns the per-gram cost of each requested item that has a
// breakdown on record.
func (db *DB) Costs(ctx context.Context, ids []string) (map[string]float64, error) {
	out := make(map[string]float64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	marks, args := placeholders(ids)
	rows, err := db.conn.QueryContext(ctx, `
		SELECT item_id, labor_cost_per_gram + food_cost_per_gram
		FROM cost_breakdowns WHERE item_id IN (`+marks+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: costs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   string
			cost float64
		)
		if err := rows.Scan(&id, &cost); err != nil {
			return nil, fmt.Errorf("store: scan cost: %w", err)
		}
		out[id] = cost
	}
	return out, rows.Err()
}

// Breakdown returns the labor/food split of every costed item.
func (db *DB) Breakdown(ctx context.Context) (map[string]models.CostBreakdown, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT item_id, labor_cost_per_gram, food_cost_per_gram FROM cost_breakdowns`)
	if err != nil {
		return nil, fmt.Errorf("store: breakdown: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.CostBreakdown)
	for rows.Next() {
		var (
			id string
			b  models.CostBreakdown
		)
		if err := rows.Scan(&id, &b.LaborCostPerGram, &b.FoodCostPerGram); err != nil {
			return nil, fmt.Errorf("store: scan breakdown: %w", err)
		}
		out[id] = b
	}
	return out, rows.Err()
}

// PutBreakdown records the cost split for an item.
func (db *DB) PutBreakdown(ctx context.Context, itemID string, b models.CostBreakdown) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cost_breakdowns (item_id, labor_cost_per_gram, food_cost_per_gram)
		VALUES (?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			labor_cost_per_gram = excluded.labor_cost_per_gram,
			food_cost_per_gram  = excluded.food_cost_per_gram
	`, itemID, b.LaborCostPerGram, b.FoodCostPerGram)
	if err != nil {
		return fmt.Errorf("store: put breakdown: %w", err)
	}
	return nil
}

// HistoryEntry is one row of the change history.
type HistoryEntry struct {
	ItemID     string    `json:"item_id"`
	Action     string    `json:"action"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Record appends a deprecation entry for each id.
func (db *DB) Record(ctx context.Context, ids []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO change_history (item_id, action, recorded_at) VALUES (?, 'deprecated', ?)`,
			id, now); err != nil {
			return fmt.Errorf("store: record history: %w", err)
		}
	}
	return tx.Commit()
}

// History returns the change history of an item, oldest first.
func (db *DB) History(ctx context.Context, itemID string) ([]HistoryEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT item_id, action, recorded_at FROM change_history WHERE item_id = ? ORDER BY id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ItemID, &e.Action, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("store: scan history: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
