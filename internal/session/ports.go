package session

import (
	"context"

	"github.com/starford/prepcost/internal/models"
	"github.com/starford/prepcost/internal/recipe"
)

// ItemStore persists items. Items are retired with Deprecate; Delete only
// exists to undo creations made by a save that later failed.
type ItemStore interface {
	Create(ctx context.Context, item models.Item) (models.Item, error)
	Update(ctx context.Context, item models.Item) error
	Deprecate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	// List returns the items with the given ids, or every item when ids is nil.
	// Returned items carry no lines.
	List(ctx context.Context, ids []string) ([]models.Item, error)
	BaseItems(ctx context.Context) ([]models.BaseItem, error)
}

// LineBatch is one atomic set of recipe line writes.
type LineBatch struct {
	Creates []models.RecipeLine `json:"creates"`
	Updates []models.RecipeLine `json:"updates"`
	Deletes []string            `json:"deletes"`
}

// LineStore persists recipe lines. ApplyBatch either applies every
// operation or none.
type LineStore interface {
	ApplyBatch(ctx context.Context, batch LineBatch) error
	// LinesByItem returns an entry for every requested item id, empty when
	// the item has no lines.
	LinesByItem(ctx context.Context, itemIDs []string) (map[string][]models.RecipeLine, error)
}

// CostService is the authority on item costs. It walks the ingredient graph,
// including cycle detection; nothing in this module does.
type CostService interface {
	Costs(ctx context.Context, itemIDs []string) (map[string]float64, error)
	Breakdown(ctx context.Context) (map[string]models.CostBreakdown, error)
}

// SettingsService supplies the yield enforcement mode.
type SettingsService interface {
	ValidationMode(ctx context.Context) (recipe.Mode, error)
}

// HistoryRecorder is told which items a save deprecated.
type HistoryRecorder interface {
	Record(ctx context.Context, itemIDs []string) error
}

// Confirmer asks whether a save should continue past a yield violation.
type Confirmer interface {
	ConfirmYield(ctx context.Context, outcome recipe.Outcome) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, outcome recipe.Outcome) (bool, error)

// ConfirmYield calls f.
func (f ConfirmFunc) ConfirmYield(ctx context.Context, outcome recipe.Outcome) (bool, error) {
	return f(ctx, outcome)
}
