// Package recipe converts recipe quantities to grams and derives yield and
// cost metrics from them. Nothing here fails loudly: a quantity that cannot
// be converted contributes zero grams so totals stay defined while a recipe
// is half-edited.
package recipe

import (
	"github.com/starford/prepcost/internal/models"
	"github.com/starford/prepcost/internal/units"
)

// Catalog resolves the items and base records that recipe lines reference.
type Catalog interface {
	Item(ref string) (models.Item, bool)
	BaseItem(id string) (models.BaseItem, bool)
}

// MapCatalog is an in-memory Catalog indexed by item id and client key.
type MapCatalog struct {
	items map[string]models.Item
	bases map[string]models.BaseItem
}

// NewCatalog indexes items and base records.
func NewCatalog(items []models.Item, bases []models.BaseItem) *MapCatalog {
	c := &MapCatalog{
		items: make(map[string]models.Item, len(items)),
		bases: make(map[string]models.BaseItem, len(bases)),
	}
	for _, it := range items {
		if it.ID != "" {
			c.items[it.ID] = it
		}
		if it.Key != "" {
			c.items[it.Key] = it
		}
	}
	for _, b := range bases {
		c.bases[b.ID] = b
	}
	return c
}

// Item returns the item with the given id or client key.
func (c *MapCatalog) Item(ref string) (models.Item, bool) {
	it, ok := c.items[ref]
	return it, ok
}

// BaseItem returns the base record with the given id.
func (c *MapCatalog) BaseItem(id string) (models.BaseItem, bool) {
	b, ok := c.bases[id]
	return b, ok
}

// Normalizer converts line quantities into grams.
type Normalizer struct {
	catalog Catalog
}

// NewNormalizer creates a Normalizer backed by catalog.
func NewNormalizer(catalog Catalog) *Normalizer {
	return &Normalizer{catalog: catalog}
}

// ToGrams converts quantity of unit of the referenced item into grams.
// ok is false when the combination cannot be converted: an each unit on an
// item without a per-unit weight, a volume unit on a prepped item or on a raw
// item without density, or an unknown unit.
func (n *Normalizer) ToGrams(unit string, quantity float64, itemRef string) (grams float64, ok bool) {
	switch units.Classify(unit) {
	case units.Mass:
		g, _ := units.MassGrams(unit)
		return quantity * g, true

	case units.Count:
		it, found := n.catalog.Item(itemRef)
		if !found {
			return 0, false
		}
		w, known := it.PerUnitGrams()
		if !known {
			return 0, false
		}
		return quantity * w, true

	case units.Volume:
		it, found := n.catalog.Item(itemRef)
		if !found || it.Kind != models.KindRaw {
			return 0, false
		}
		base, found := n.catalog.BaseItem(it.BaseItemID)
		if !found || base.SpecificWeight == nil || *base.SpecificWeight <= 0 {
			return 0, false
		}
		l, _ := units.VolumeLiters(unit)
		return quantity * l * 1000 * *base.SpecificWeight, true
	}
	return 0, false
}

// TotalGrams sums the mass of every active, complete ingredient line.
// Labor lines, lines marked for deletion and unconvertible lines add nothing.
func (n *Normalizer) TotalGrams(lines []models.RecipeLine) float64 {
	var total float64
	for _, l := range lines {
		if l.MarkedForDeletion || l.Kind != models.LineIngredient || !l.Complete() {
			continue
		}
		g, ok := n.ToGrams(l.Ingredient.Unit, *l.Ingredient.Quantity, l.Ingredient.ChildID)
		if ok {
			total += g
		}
	}
	return total
}

// ValidUnits returns the units a line referencing itemRef may use.
func (n *Normalizer) ValidUnits(itemRef string) []string {
	it, found := n.catalog.Item(itemRef)
	if !found {
		return nil
	}
	hasDensity := false
	if it.Kind == models.KindRaw {
		if b, ok := n.catalog.BaseItem(it.BaseItemID); ok && b.SpecificWeight != nil && *b.SpecificWeight > 0 {
			hasDensity = true
		}
	}
	_, hasEach := it.PerUnitGrams()
	return units.ValidFor(it.Kind == models.KindRaw, hasDensity, hasEach)
}
