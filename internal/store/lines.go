package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/starford/prepcost/internal/models"
	"github.com/starford/prepcost/internal/session"
)

const lineColumns = `id, parent_id, kind, child_id, quantity, unit, vendor_mode,
	vendor_product_id, role, minutes`

// ApplyBatch writes every line operation in one transaction. Either all of
// them land or none do.
func (db *DB) ApplyBatch(ctx context.Context, b session.LineBatch) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if len(b.Creates) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO recipe_lines (id, parent_id, position, kind, child_id, quantity, unit,
				vendor_mode, vendor_product_id, role, minutes)
			VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM recipe_lines WHERE parent_id = ?),
				?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("store: prepare line insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range b.Creates {
			args := append([]any{uuid.NewString(), l.ParentID, l.ParentID}, payloadArgs(l)...)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("store: insert line: %w", err)
			}
		}
	}

	for _, l := range b.Updates {
		args := append(payloadArgs(l), l.ID)
		res, err := tx.ExecContext(ctx, `
			UPDATE recipe_lines SET
				kind              = ?,
				child_id          = ?,
				quantity          = ?,
				unit              = ?,
				vendor_mode       = ?,
				vendor_product_id = ?,
				role              = ?,
				minutes           = ?
			WHERE id = ?
		`, args...)
		if err != nil {
			return fmt.Errorf("store: update line: %w", err)
		}
		if err := expectRow(res, "line", l.ID); err != nil {
			return err
		}
	}

	for _, id := range b.Deletes {
		res, err := tx.ExecContext(ctx, `DELETE FROM recipe_lines WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("store: delete line: %w", err)
		}
		if err := expectRow(res, "line", id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// payloadArgs flattens the variant payload into the kind, child_id, quantity,
// unit, vendor_mode, vendor_product_id, role and minutes columns.
func payloadArgs(l models.RecipeLine) []any {
	var (
		childID, unit, vendorMode, vendorProduct, role string
		quantity, minutes                              any
	)
	if in := l.Ingredient; in != nil {
		childID, unit = in.ChildID, in.Unit
		vendorMode, vendorProduct = string(in.VendorMode), in.VendorProductID
		quantity = nullFloat(in.Quantity)
	}
	if lb := l.Labor; lb != nil {
		role = lb.Role
		minutes = nullFloat(lb.Minutes)
	}
	return []any{string(l.Kind), childID, quantity, unit, vendorMode, vendorProduct, role, minutes}
}

// LinesByItem returns the lines of each requested item in position order.
// Every requested id gets an entry, empty when the item has no lines.
func (db *DB) LinesByItem(ctx context.Context, ids []string) (map[string][]models.RecipeLine, error) {
	out := make(map[string][]models.RecipeLine, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	for _, id := range ids {
		out[id] = []models.RecipeLine{}
	}

	marks, args := placeholders(ids)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+lineColumns+` FROM recipe_lines WHERE parent_id IN (`+marks+`) ORDER BY parent_id, position`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("store: lines by item: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan line: %w", err)
		}
		out[l.ParentID] = append(out[l.ParentID], l)
	}
	return out, rows.Err()
}

func scanLine(s scanner) (models.RecipeLine, error) {
	var (
		l                                              models.RecipeLine
		kind, childID, unit, vendorMode, vendorProduct string
		role                                           string
		quantity, minutes                              sql.NullFloat64
	)
	err := s.Scan(&l.ID, &l.ParentID, &kind, &childID, &quantity, &unit, &vendorMode,
		&vendorProduct, &role, &minutes)
	if err != nil {
		return models.RecipeLine{}, err
	}
	l.Kind = models.LineKind(kind)
	switch l.Kind {
	case models.LineIngredient:
		l.Ingredient = &models.Ingredient{
			ChildID:         childID,
			Quantity:        floatPtr(quantity),
			Unit:            unit,
			VendorMode:      models.VendorMode(vendorMode),
			VendorProductID: vendorProduct,
		}
	case models.LineLabor:
		l.Labor = &models.Labor{Role: role, Minutes: floatPtr(minutes)}
	}
	return l, nil
}
