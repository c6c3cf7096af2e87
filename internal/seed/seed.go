// Package seed loads a recipe catalog from YAML and writes it to a store.
package seed

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/prepcost/internal/models"
	"github.com/starford/prepcost/internal/session"
)

// Catalog is the seed file layout. Items reference each other by Ref, a name
// local to the file; the store assigns the real ids.
type Catalog struct {
	BaseItems []models.BaseItem `yaml:"base_items"`
	Items     []Item            `yaml:"items"`
}

// Item is one catalog entry.
type Item struct {
	Ref       string   `yaml:"ref"`
	Name      string   `yaml:"name"`
	Kind      string   `yaml:"kind"`
	BaseItem  string   `yaml:"base_item"`
	EachGrams *float64 `yaml:"each_grams"`
	Yield     *Yield   `yaml:"yield"`
	Wholesale *float64 `yaml:"wholesale"`
	Retail    *float64 `yaml:"retail"`
	Notes     string   `yaml:"notes"`
	Cost      *Cost    `yaml:"cost"`
	Lines     []Line   `yaml:"lines"`
}

// Yield is a prepped item's declared output.
type Yield struct {
	Amount    float64  `yaml:"amount"`
	Unit      string   `yaml:"unit"`
	EachGrams *float64 `yaml:"each_grams"`
}

// Cost is the per-gram cost split recorded for the item.
type Cost struct {
	Labor float64 `yaml:"labor"`
	Food  float64 `yaml:"food"`
}

// Line is an ingredient line when Ingredient is set, a labor line otherwise.
type Line struct {
	Ingredient string   `yaml:"ingredient"`
	Quantity   *float64 `yaml:"quantity"`
	Unit       string   `yaml:"unit"`
	Vendor     string   `yaml:"vendor"`
	Labor      string   `yaml:"labor"`
	Minutes    *float64 `yaml:"minutes"`
}

// Validate validates the catalog.
func (c *Catalog) Validate() error {
	refs := make(map[string]struct{}, len(c.Items))
	for i := range c.Items {
		it := &c.Items[i]
		if err := validation.ValidateStruct(it,
			validation.Field(&it.Ref, validation.Required),
			validation.Field(&it.Name, validation.Required),
			validation.Field(&it.Kind, validation.Required,
				validation.In(string(models.KindRaw), string(models.KindPrepped))),
		); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if _, dup := refs[it.Ref]; dup {
			return fmt.Errorf("item %q: duplicate ref", it.Ref)
		}
		refs[it.Ref] = struct{}{}
	}
	for _, it := range c.Items {
		for j, l := range it.Lines {
			switch {
			case l.Ingredient != "" && l.Labor != "":
				return fmt.Errorf("item %q line %d: both ingredient and labor set", it.Ref, j)
			case l.Ingredient != "":
				if _, ok := refs[l.Ingredient]; !ok {
					return fmt.Errorf("item %q line %d: unknown ingredient %q", it.Ref, j, l.Ingredient)
				}
				if l.Quantity == nil || l.Unit == "" {
					return fmt.Errorf("item %q line %d: quantity and unit are required", it.Ref, j)
				}
				if *l.Quantity <= 0 {
					return fmt.Errorf("item %q line %d: quantity must be positive", it.Ref, j)
				}
			case l.Labor != "":
				if l.Minutes == nil {
					return fmt.Errorf("item %q line %d: minutes are required", it.Ref, j)
				}
			default:
				return fmt.Errorf("item %q line %d: neither ingredient nor labor set", it.Ref, j)
			}
		}
	}
	return nil
}

// Parse decodes and validates a seed file.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("seed: parse: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return &c, nil
}

// Target is where a catalog is written.
type Target interface {
	UpsertBaseItem(ctx context.Context, b models.BaseItem) error
	Create(ctx context.Context, it models.Item) (models.Item, error)
	ApplyBatch(ctx context.Context, b session.LineBatch) error
	PutBreakdown(ctx context.Context, itemID string, b models.CostBreakdown) error
}

// Import writes c to t and returns the id assigned to every ref. Items are
// created first so lines may reference items defined later in the file.
func Import(ctx context.Context, t Target, c *Catalog) (map[string]string, error) {
	for _, b := range c.BaseItems {
		if err := t.UpsertBaseItem(ctx, b); err != nil {
			return nil, err
		}
	}

	ids := make(map[string]string, len(c.Items))
	for _, it := range c.Items {
		saved, err := t.Create(ctx, it.model())
		if err != nil {
			return nil, fmt.Errorf("seed: create %q: %w", it.Ref, err)
		}
		ids[it.Ref] = saved.ID
	}

	var batch session.LineBatch
	for _, it := range c.Items {
		for _, l := range it.Lines {
			line := l.model(ids)
			line.ParentID = ids[it.Ref]
			batch.Creates = append(batch.Creates, line)
		}
	}
	if len(batch.Creates) > 0 {
		if err := t.ApplyBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("seed: lines: %w", err)
		}
	}

	for _, it := range c.Items {
		if it.Cost == nil {
			continue
		}
		bd := models.CostBreakdown{LaborCostPerGram: it.Cost.Labor, FoodCostPerGram: it.Cost.Food}
		if err := t.PutBreakdown(ctx, ids[it.Ref], bd); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (it Item) model() models.Item {
	out := models.Item{
		Name:       it.Name,
		Kind:       models.ItemKind(it.Kind),
		BaseItemID: it.BaseItem,
		EachGrams:  it.EachGrams,
		Wholesale:  it.Wholesale,
		Retail:     it.Retail,
		Notes:      it.Notes,
	}
	if it.Yield != nil {
		out.YieldAmount = models.Ptr(it.Yield.Amount)
		out.YieldUnit = it.Yield.Unit
		out.YieldEachGrams = it.Yield.EachGrams
	}
	return out
}

func (l Line) model(ids map[string]string) models.RecipeLine {
	if l.Ingredient == "" {
		return models.NewLaborLine(l.Labor, *l.Minutes)
	}
	line := models.NewIngredientLine(ids[l.Ingredient], *l.Quantity, l.Unit)
	line.Ingredient.VendorMode = models.VendorLowest
	if l.Vendor != "" {
		line.Ingredient.VendorMode = models.VendorPinned
		line.Ingredient.VendorProductID = l.Vendor
	}
	return line
}
