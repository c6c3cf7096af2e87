package seed

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/starford/prepcost/internal/models"
	"github.com/starford/prepcost/internal/testutil"
)

func loadCatalog(t *testing.T) *Catalog {
	t.Helper()
	data, err := os.ReadFile("testdata/catalog.yaml")
	if err != nil {
		t.Fatal(err)
	}
	c, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return c
}

func TestParse(t *testing.T) {
	c := loadCatalog(t)
	if len(c.BaseItems) != 2 || len(c.Items) != 5 {
		t.Fatalf("catalog = %d bases, %d items", len(c.BaseItems), len(c.Items))
	}
	roll := c.Items[3]
	if roll.Yield == nil || roll.Yield.Unit != "each" || *roll.Yield.EachGrams != 45 {
		t.Errorf("roll yield = %+v", roll.Yield)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown kind":       "items:\n  - {ref: a, name: A, kind: frozen}\n",
		"duplicate ref":      "items:\n  - {ref: a, name: A, kind: raw}\n  - {ref: a, name: B, kind: raw}\n",
		"unknown ingredient": "items:\n  - ref: a\n    name: A\n    kind: prepped\n    lines:\n      - {ingredient: nope, quantity: 1, unit: g}\n",
		"missing unit":       "items:\n  - {ref: b, name: B, kind: raw}\n  - ref: a\n    name: A\n    kind: prepped\n    lines:\n      - {ingredient: b, quantity: 1}\n",
		"negative quantity":  "items:\n  - {ref: b, name: B, kind: raw}\n  - ref: a\n    name: A\n    kind: prepped\n    lines:\n      - {ingredient: b, quantity: -1, unit: g}\n",
		"empty line":         "items:\n  - ref: a\n    name: A\n    kind: prepped\n    lines:\n      - {unit: g}\n",
		"bad yaml":           "items: [",
	}
	for name, body := range cases {
		if _, err := Parse([]byte(body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestImport(t *testing.T) {
	db := testutil.TestDB(t)
	ctx := context.Background()

	ids, err := Import(ctx, db, loadCatalog(t))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(ids) != 5 {
		t.Fatalf("ids = %v", ids)
	}

	dough, err := db.Get(ctx, ids["dough"])
	if err != nil {
		t.Fatalf("Get dough: %v", err)
	}
	if len(dough.Lines) != 3 {
		t.Fatalf("dough lines = %d, want 3", len(dough.Lines))
	}
	milk := dough.Lines[1].Ingredient
	if milk.ChildID != ids["milk"] || milk.VendorMode != models.VendorPinned || milk.VendorProductID != "vp-dairy-1" {
		t.Errorf("milk line = %+v", milk)
	}
	if dough.Lines[0].Ingredient.VendorMode != models.VendorLowest {
		t.Errorf("default vendor mode = %q", dough.Lines[0].Ingredient.VendorMode)
	}

	// Lines may point at items defined later in the file.
	roll, _ := db.Get(ctx, ids["roll"])
	if len(roll.Lines) != 2 || roll.Lines[0].Ingredient.ChildID != ids["dough"] || roll.Lines[1].Kind != models.LineLabor {
		t.Errorf("roll lines = %+v", roll.Lines)
	}

	bd, _ := db.Breakdown(ctx)
	if len(bd) != 1 || bd[ids["roll"]].FoodCostPerGram != 0.006 {
		t.Errorf("breakdown = %v", bd)
	}
	bases, _ := db.BaseItems(ctx)
	if len(bases) != 2 {
		t.Errorf("bases = %v", bases)
	}
}

func TestImport_SeededCatalogValidates(t *testing.T) {
	db := testutil.TestDB(t)
	ctx := context.Background()
	ids, err := Import(ctx, db, loadCatalog(t))
	if err != nil {
		t.Fatal(err)
	}
	s := testutil.TestSession(t, db)

	dough, err := s.Item(ids["dough"])
	if err != nil {
		t.Fatal(err)
	}
	// 600 g flour + 300 ml milk at 1.03 g/ml + 2 eggs at 50 g = 1009 g.
	got := s.TotalGrams(dough.Lines)
	if got < 1008.99 || got > 1009.01 {
		t.Errorf("dough input = %v g, want 1009", got)
	}
	out := s.ValidateYield(ctx, dough, "block")
	if out.Violated() {
		t.Errorf("dough outcome = %+v", out)
	}
	if !strings.Contains(out.Message(), "1000") {
		t.Errorf("message = %q", out.Message())
	}
}
