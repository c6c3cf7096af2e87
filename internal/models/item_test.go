package models

import "testing"

func TestRecipeLineComplete(t *testing.T) {
	l := NewIngredientLine("flour", 100, "g")
	if !l.Complete() {
		t.Fatal("full ingredient line should be complete")
	}
	l.Ingredient.Unit = ""
	if l.Complete() {
		t.Error("line without unit should be incomplete")
	}
	for _, qty := range []float64{0, -400} {
		if NewIngredientLine("flour", qty, "g").Complete() {
			t.Errorf("line with quantity %v should be incomplete", qty)
		}
	}
	if (RecipeLine{Kind: LineIngredient}).Complete() {
		t.Error("line without payload should be incomplete")
	}
	if !NewLaborLine("prep cook", 15).Complete() {
		t.Error("labor line should be complete")
	}
	if (RecipeLine{Kind: LineLabor, Labor: &Labor{Role: "baker"}}).Complete() {
		t.Error("labor line without minutes should be incomplete")
	}
}

func TestItemCloneIsDeep(t *testing.T) {
	orig := Item{
		ID:          "a",
		YieldAmount: Ptr(10.0),
		Lines:       []RecipeLine{NewIngredientLine("b", 5, "g")},
	}
	cp := orig.Clone()
	*cp.YieldAmount = 99
	*cp.Lines[0].Ingredient.Quantity = 42
	cp.Lines[0].Ingredient.Unit = "kg"

	if *orig.YieldAmount != 10 {
		t.Error("yield amount shared with clone")
	}
	if *orig.Lines[0].Ingredient.Quantity != 5 || orig.Lines[0].Ingredient.Unit != "g" {
		t.Error("line payload shared with clone")
	}
}

func TestPerUnitGrams(t *testing.T) {
	raw := Item{Kind: KindRaw, EachGrams: Ptr(50.0)}
	if w, ok := raw.PerUnitGrams(); !ok || w != 50 {
		t.Errorf("raw each weight = %v, %v", w, ok)
	}
	prepped := Item{Kind: KindPrepped, YieldUnit: "kg", YieldEachGrams: Ptr(50.0)}
	if _, ok := prepped.PerUnitGrams(); ok {
		t.Error("per-unit weight only applies to each yields")
	}
	prepped.YieldUnit = "each"
	if w, ok := prepped.PerUnitGrams(); !ok || w != 50 {
		t.Errorf("prepped each weight = %v, %v", w, ok)
	}
	prepped.YieldEachGrams = Ptr(0.0)
	if _, ok := prepped.PerUnitGrams(); ok {
		t.Error("zero weight is not a known weight")
	}
}

func TestSelectableHidesDirectOnly(t *testing.T) {
	items := []Item{
		{ID: "a", Deprecation: DeprecationNone},
		{ID: "b", Deprecation: DeprecationDirect},
		{ID: "c", Deprecation: DeprecationIndirect},
	}
	got := Selectable(items)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("Selectable = %+v", got)
	}
}

func TestIsPlaceholder(t *testing.T) {
	if !(Item{IsNew: true}).IsPlaceholder() {
		t.Error("empty new item is a placeholder")
	}
	if (Item{IsNew: true, Name: "Dough"}).IsPlaceholder() {
		t.Error("named item is not a placeholder")
	}
	if (Item{Name: ""}).IsPlaceholder() {
		t.Error("persisted item is never a placeholder")
	}
	withLine := Item{IsNew: true, Lines: []RecipeLine{NewIngredientLine("x", 1, "g")}}
	if withLine.IsPlaceholder() {
		t.Error("item with a complete line is not a placeholder")
	}
}
