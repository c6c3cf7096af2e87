// Package models defines the domain types for prepcost.
package models

import "github.com/starford/prepcost/internal/units"

// ItemKind distinguishes purchased ingredients from produced items.
type ItemKind string

// Item kinds.
const (
	KindRaw     ItemKind = "raw"
	KindPrepped ItemKind = "prepped"
)

// Deprecation is the retirement state of an item.
type Deprecation string

// Deprecation states. Direct items are retired themselves, indirect items
// depend on a retired item somewhere below them.
const (
	DeprecationNone     Deprecation = "none"
	DeprecationDirect   Deprecation = "direct"
	DeprecationIndirect Deprecation = "indirect"
)

// BaseItem is the density record backing a raw item.
type BaseItem struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	SpecificWeight *float64 `json:"specific_weight,omitempty" yaml:"specific_weight"` // g/ml
}

// Item is a raw ingredient or a prepped product.
//
// ID is empty until the store assigns one. Key is a client-side identity
// used to reference the item before that happens.
type Item struct {
	ID   string   `json:"id,omitempty"`
	Key  string   `json:"key,omitempty"`
	Name string   `json:"name"`
	Kind ItemKind `json:"kind"`

	// Raw items.
	BaseItemID string   `json:"base_item_id,omitempty"`
	EachGrams  *float64 `json:"each_grams,omitempty"`

	// Prepped items.
	YieldAmount    *float64 `json:"yield_amount,omitempty"`
	YieldUnit      string   `json:"yield_unit,omitempty"`
	YieldEachGrams *float64 `json:"yield_each_grams,omitempty"`
	Wholesale      *float64 `json:"wholesale,omitempty"`
	Retail         *float64 `json:"retail,omitempty"`

	Notes       string       `json:"notes,omitempty"`
	Deprecation Deprecation  `json:"deprecation,omitempty"`
	Lines       []RecipeLine `json:"lines,omitempty"`

	IsNew             bool `json:"is_new,omitempty"`
	MarkedForDeletion bool `json:"marked_for_deletion,omitempty"`
}

// Ref returns the persisted id, or the client key for unsaved items.
func (it Item) Ref() string {
	if it.ID != "" {
		return it.ID
	}
	return it.Key
}

// YieldsEach reports whether the item's output is counted rather than weighed.
func (it Item) YieldsEach() bool {
	return it.Kind == KindPrepped && it.YieldUnit == units.Each
}

// PerUnitGrams returns the declared weight of one "each" of the item.
func (it Item) PerUnitGrams() (float64, bool) {
	var w *float64
	switch it.Kind {
	case KindRaw:
		w = it.EachGrams
	case KindPrepped:
		if it.YieldsEach() {
			w = it.YieldEachGrams
		}
	}
	if w == nil || *w <= 0 {
		return 0, false
	}
	return *w, true
}

// IsPlaceholder reports whether the item is a new row nobody filled in.
func (it Item) IsPlaceholder() bool {
	if !it.IsNew || it.Name != "" {
		return false
	}
	for _, l := range it.Lines {
		if l.Complete() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the item and its lines.
func (it Item) Clone() Item {
	out := it
	out.EachGrams = clonePtr(it.EachGrams)
	out.YieldAmount = clonePtr(it.YieldAmount)
	out.YieldEachGrams = clonePtr(it.YieldEachGrams)
	out.Wholesale = clonePtr(it.Wholesale)
	out.Retail = clonePtr(it.Retail)
	if it.Lines != nil {
		out.Lines = make([]RecipeLine, len(it.Lines))
		for i, l := range it.Lines {
			out.Lines[i] = l.Clone()
		}
	}
	return out
}

// CloneItems deep-copies a collection of items.
func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

// Selectable returns the items that may be picked as new ingredients.
// Directly deprecated items are hidden; indirect ones stay visible.
func Selectable(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Deprecation == DeprecationDirect {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
