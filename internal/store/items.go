package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/prepcost/internal/apperr"
	"github.com/starford/prepcost/internal/models"
)

const itemColumns = `id, name, kind, base_item_id, each_grams, yield_amount, yield_unit,
	yield_each_grams, wholesale, retail, notes, deprecation`

// Create inserts it under a fresh id and returns the stored item.
func (db *DB) Create(ctx context.Context, it models.Item) (models.Item, error) {
	out := it.Clone()
	out.ID = uuid.NewString()
	out.Key = ""
	out.IsNew = false
	out.MarkedForDeletion = false
	out.Lines = nil
	if out.Deprecation == "" {
		out.Deprecation = models.DeprecationNone
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO items (id, name, kind, base_item_id, each_grams, yield_amount, yield_unit,
			yield_each_grams, wholesale, retail, notes, deprecation, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, out.ID, out.Name, string(out.Kind), out.BaseItemID, nullFloat(out.EachGrams),
		nullFloat(out.YieldAmount), out.YieldUnit, nullFloat(out.YieldEachGrams),
		nullFloat(out.Wholesale), nullFloat(out.Retail), out.Notes, string(out.Deprecation),
		time.Now().UTC())
	if err != nil {
		return models.Item{}, fmt.Errorf("store: create item: %w", err)
	}
	return out, nil
}

// Update overwrites the editable fields of an existing item. Lines are left
// alone; they change through ApplyBatch.
func (db *DB) Update(ctx context.Context, it models.Item) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE items SET
			name             = ?,
			kind             = ?,
			base_item_id     = ?,
			each_grams       = ?,
			yield_amount     = ?,
			yield_unit       = ?,
			yield_each_grams = ?,
			wholesale        = ?,
			retail           = ?,
			notes            = ?,
			updated_at       = ?
		WHERE id = ?
	`, it.Name, string(it.Kind), it.BaseItemID, nullFloat(it.EachGrams), nullFloat(it.YieldAmount),
		it.YieldUnit, nullFloat(it.YieldEachGrams), nullFloat(it.Wholesale), nullFloat(it.Retail),
		it.Notes, time.Now().UTC(), it.ID)
	if err != nil {
		return fmt.Errorf("store: update item: %w", err)
	}
	return expectRow(res, "item", it.ID)
}

// Deprecate retires an item and marks every item that uses it, at any depth,
// as indirectly deprecated.
func (db *DB) Deprecate(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.ExecContext(ctx,
		`UPDATE items SET deprecation = 'direct', updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store: deprecate item: %w", err)
	}
	if err := expectRow(res, "item", id); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		WITH RECURSIVE users(id) AS (
			SELECT parent_id FROM recipe_lines WHERE child_id = ?
			UNION
			SELECT rl.parent_id FROM recipe_lines rl JOIN users u ON rl.child_id = u.id
		)
		UPDATE items SET deprecation = 'indirect'
		WHERE deprecation = 'none' AND id IN (SELECT id FROM users)
	`, id)
	if err != nil {
		return fmt.Errorf("store: mark dependents: %w", err)
	}
	return tx.Commit()
}

// Delete removes an item together with its lines and breakdown.
func (db *DB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete item: %w", err)
	}
	return expectRow(res, "item", id)
}

// List returns items without their lines, in insertion order. A nil ids
// lists every item; otherwise only the given ones.
func (db *DB) List(ctx context.Context, ids []string) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	var args []any
	if ids != nil {
		if len(ids) == 0 {
			return []models.Item{}, nil
		}
		var marks string
		marks, args = placeholders(ids)
		query += ` WHERE id IN (` + marks + `)`
	}
	query += ` ORDER BY rowid`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list items: %w", err)
	}
	defer rows.Close()

	out := []models.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Get returns one item with its lines.
func (db *DB) Get(ctx context.Context, id string) (models.Item, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Item{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Item{}, fmt.Errorf("store: get item: %w", err)
	}
	lines, err := db.LinesByItem(ctx, []string{id})
	if err != nil {
		return models.Item{}, err
	}
	it.Lines = lines[id]
	return it, nil
}

// BaseItems returns every density record.
func (db *DB) BaseItems(ctx context.Context) ([]models.BaseItem, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name, specific_weight FROM base_items ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: base items: %w", err)
	}
	defer rows.Close()

	var out []models.BaseItem
	for rows.Next() {
		var (
			b  models.BaseItem
			sw sql.NullFloat64
		)
		if err := rows.Scan(&b.ID, &b.Name, &sw); err != nil {
			return nil, fmt.Errorf("store: scan base item: %w", err)
		}
		b.SpecificWeight = floatPtr(sw)
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpsertBaseItem inserts or replaces a density record.
func (db *DB) UpsertBaseItem(ctx context.Context, b models.BaseItem) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO base_items (id, name, specific_weight) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name            = excluded.name,
			specific_weight = excluded.specific_weight
	`, b.ID, b.Name, nullFloat(b.SpecificWeight))
	if err != nil {
		return fmt.Errorf("store: upsert base item: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (models.Item, error) {
	var (
		it                                     models.Item
		kind, deprecation                      string
		each, amount, perUnit, wholesale, retl sql.NullFloat64
	)
	err := s.Scan(&it.ID, &it.Name, &kind, &it.BaseItemID, &each, &amount, &it.YieldUnit,
		&perUnit, &wholesale, &retl, &it.Notes, &deprecation)
	if err != nil {
		return models.Item{}, err
	}
	it.Kind = models.ItemKind(kind)
	it.Deprecation = models.Deprecation(deprecation)
	it.EachGrams = floatPtr(each)
	it.YieldAmount = floatPtr(amount)
	it.YieldEachGrams = floatPtr(perUnit)
	it.Wholesale = floatPtr(wholesale)
	it.Retail = floatPtr(retl)
	return it, nil
}

// expectRow turns a write that touched nothing into apperr.ErrNotFound.
func expectRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: %s %s: %w", what, id, apperr.ErrNotFound)
	}
	return nil
}
