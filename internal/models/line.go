package models

// LineKind is the discriminant of a RecipeLine.
type LineKind string

// Line kinds.
const (
	LineIngredient LineKind = "ingredient"
	LineLabor      LineKind = "labor"
)

// VendorMode selects how the vendor for an ingredient is chosen.
type VendorMode string

// Vendor modes.
const (
	VendorLowest VendorMode = "lowest"
	VendorPinned VendorMode = "pinned"
)

// RecipeLine is one row of an item's bill of materials. Exactly one of
// Ingredient or Labor is set, matching Kind.
type RecipeLine struct {
	ID       string   `json:"id,omitempty"`
	Key      string   `json:"key,omitempty"`
	ParentID string   `json:"parent_id,omitempty"`
	Kind     LineKind `json:"kind"`

	Ingredient *Ingredient `json:"ingredient,omitempty"`
	Labor      *Labor      `json:"labor,omitempty"`

	IsNew             bool `json:"is_new,omitempty"`
	MarkedForDeletion bool `json:"marked_for_deletion,omitempty"`
}

// Ingredient is the payload of an ingredient line.
type Ingredient struct {
	ChildID         string     `json:"child_id,omitempty"`
	Quantity        *float64   `json:"quantity,omitempty"`
	Unit            string     `json:"unit,omitempty"`
	VendorMode      VendorMode `json:"vendor_mode,omitempty"`
	VendorProductID string     `json:"vendor_product_id,omitempty"`
}

// Labor is the payload of a labor line.
type Labor struct {
	Role    string   `json:"role,omitempty"`
	Minutes *float64 `json:"minutes,omitempty"`
}

// NewIngredientLine builds an ingredient line.
func NewIngredientLine(childID string, quantity float64, unit string) RecipeLine {
	return RecipeLine{
		Kind: LineIngredient,
		Ingredient: &Ingredient{
			ChildID:  childID,
			Quantity: &quantity,
			Unit:     unit,
		},
	}
}

// NewLaborLine builds a labor line.
func NewLaborLine(role string, minutes float64) RecipeLine {
	return RecipeLine{
		Kind:  LineLabor,
		Labor: &Labor{Role: role, Minutes: &minutes},
	}
}

// Persisted reports whether the store has assigned the line an id.
func (l RecipeLine) Persisted() bool {
	return l.ID != ""
}

// Complete reports whether every required field of the line's variant is set.
// An ingredient quantity must be positive.
func (l RecipeLine) Complete() bool {
	switch l.Kind {
	case LineIngredient:
		in := l.Ingredient
		return in != nil && in.ChildID != "" && in.Quantity != nil && *in.Quantity > 0 && in.Unit != ""
	case LineLabor:
		lb := l.Labor
		return lb != nil && lb.Role != "" && lb.Minutes != nil
	default:
		return false
	}
}

// Clone returns a deep copy of the line.
func (l RecipeLine) Clone() RecipeLine {
	out := l
	if l.Ingredient != nil {
		in := *l.Ingredient
		in.Quantity = clonePtr(l.Ingredient.Quantity)
		out.Ingredient = &in
	}
	if l.Labor != nil {
		lb := *l.Labor
		lb.Minutes = clonePtr(l.Labor.Minutes)
		out.Labor = &lb
	}
	return out
}
