// Package recipediff compares an edited item collection against the snapshot
// taken when editing began and produces the minimal set of store operations
// that reconciles the two.
package recipediff

import "github.com/starford/prepcost/internal/models"

// Batch is the set of operations a save has to apply.
//
// Lines created for a new item carry the item's client key as ParentID; the
// caller rewrites it once the store has assigned the item an id.
type Batch struct {
	NewItems         []models.Item       `json:"new_items"`
	LineCreates      []models.RecipeLine `json:"line_creates"`
	LineUpdates      []models.RecipeLine `json:"line_updates"`
	LineDeletes      []string            `json:"line_deletes"`
	ItemFieldUpdates []models.Item       `json:"item_field_updates"`
}

// Empty reports whether the batch contains no operations.
func (b Batch) Empty() bool {
	return len(b.NewItems) == 0 &&
		len(b.LineCreates) == 0 &&
		len(b.LineUpdates) == 0 &&
		len(b.LineDeletes) == 0 &&
		len(b.ItemFieldUpdates) == 0
}

// HasLineOps reports whether any line operation is pending.
func (b Batch) HasLineOps() bool {
	return len(b.LineCreates) > 0 || len(b.LineUpdates) > 0 || len(b.LineDeletes) > 0
}

// Diff computes the operations that turn baseline into edited. Items marked
// for deletion are ignored; retiring them is not a line operation.
func Diff(baseline, edited []models.Item) Batch {
	baseItems := make(map[string]models.Item, len(baseline))
	baseLines := make(map[string]models.RecipeLine)
	for _, it := range baseline {
		if it.ID != "" {
			baseItems[it.ID] = it
		}
		for _, l := range it.Lines {
			if l.ID != "" {
				baseLines[l.ID] = l
			}
		}
	}

	var b Batch
	for _, it := range edited {
		if it.MarkedForDeletion {
			continue
		}
		if it.IsNew {
			diffNewItem(&b, it)
			continue
		}

		linesChanged := false
		for _, l := range it.Lines {
			switch {
			case l.IsNew:
				if l.MarkedForDeletion || !l.Complete() {
					continue
				}
				b.LineCreates = append(b.LineCreates, withParent(l, it.ID))
				linesChanged = true

			case l.MarkedForDeletion:
				if !l.Persisted() {
					continue
				}
				b.LineDeletes = append(b.LineDeletes, l.ID)
				linesChanged = true

			default:
				if !l.Persisted() || !l.Complete() {
					continue
				}
				if prev, ok := baseLines[l.ID]; ok && LinesEqual(prev, l) {
					continue
				}
				b.LineUpdates = append(b.LineUpdates, withParent(l, it.ID))
				linesChanged = true
			}
		}

		prev, known := baseItems[it.ID]
		if linesChanged || !known || !FieldsEqual(prev, it) {
			b.ItemFieldUpdates = append(b.ItemFieldUpdates, scalarOnly(it))
		}
	}
	return b
}

func diffNewItem(b *Batch, it models.Item) {
	b.NewItems = append(b.NewItems, scalarOnly(it))
	for _, l := range it.Lines {
		if l.MarkedForDeletion || !l.Complete() {
			continue
		}
		b.LineCreates = append(b.LineCreates, withParent(l, it.Key))
	}
}

func withParent(l models.RecipeLine, parent string) models.RecipeLine {
	out := l.Clone()
	out.ParentID = parent
	return out
}

func scalarOnly(it models.Item) models.Item {
	out := it.Clone()
	out.Lines = nil
	return out
}

// FieldsEqual compares the item fields a user can edit directly.
func FieldsEqual(a, b models.Item) bool {
	if a.Name != b.Name ||
		a.Kind != b.Kind ||
		a.YieldUnit != b.YieldUnit ||
		a.Notes != b.Notes ||
		!ptrEqual(a.YieldAmount, b.YieldAmount) ||
		!ptrEqual(a.Wholesale, b.Wholesale) ||
		!ptrEqual(a.Retail, b.Retail) {
		return false
	}
	if b.YieldsEach() && !ptrEqual(a.YieldEachGrams, b.YieldEachGrams) {
		return false
	}
	return true
}

// LinesEqual compares every semantic field of two lines.
func LinesEqual(a, b models.RecipeLine) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case models.LineIngredient:
		x, y := ingredientOrZero(a.Ingredient), ingredientOrZero(b.Ingredient)
		return x.ChildID == y.ChildID &&
			ptrEqual(x.Quantity, y.Quantity) &&
			x.Unit == y.Unit &&
			x.VendorMode == y.VendorMode &&
			x.VendorProductID == y.VendorProductID
	case models.LineLabor:
		x, y := laborOrZero(a.Labor), laborOrZero(b.Labor)
		return x.Role == y.Role && ptrEqual(x.Minutes, y.Minutes)
	}
	return true
}

func ingredientOrZero(in *models.Ingredient) models.Ingredient {
	if in == nil {
		return models.Ingredient{}
	}
	return *in
}

func laborOrZero(lb *models.Labor) models.Labor {
	if lb == nil {
		return models.Labor{}
	}
	return *lb
}

func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
