// Package testutil provides shared test helpers for setting up stores and sessions.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/prepcost/internal/models"
	"github.com/starford/prepcost/internal/session"
	"github.com/starford/prepcost/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "prepcost-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Catalog holds the ids of the items SeedCatalog creates.
type Catalog struct {
	Flour, Water, Dough string
}

// SeedCatalog stores two raw items and a 1000 g dough made from 600 g flour
// and 400 g water, with a cost breakdown for the dough.
func SeedCatalog(t *testing.T, db *store.DB) Catalog {
	t.Helper()
	ctx := context.Background()
	create := func(it models.Item) string {
		saved, err := db.Create(ctx, it)
		if err != nil {
			t.Fatal(err)
		}
		return saved.ID
	}
	c := Catalog{
		Flour: create(models.Item{Name: "Flour", Kind: models.KindRaw}),
		Water: create(models.Item{Name: "Water", Kind: models.KindRaw}),
		Dough: create(models.Item{Name: "Dough", Kind: models.KindPrepped, YieldAmount: models.Ptr(1000.0), YieldUnit: "g"}),
	}
	flour := models.NewIngredientLine(c.Flour, 600, "g")
	flour.ParentID = c.Dough
	water := models.NewIngredientLine(c.Water, 400, "g")
	water.ParentID = c.Dough
	if err := db.ApplyBatch(ctx, session.LineBatch{Creates: []models.RecipeLine{flour, water}}); err != nil {
		t.Fatal(err)
	}
	if err := db.PutBreakdown(ctx, c.Dough, models.CostBreakdown{LaborCostPerGram: 0.002, FoodCostPerGram: 0.003}); err != nil {
		t.Fatal(err)
	}
	return c
}

// TestSession returns a loaded session backed by db.
func TestSession(t *testing.T, db *store.DB, opts ...session.Option) *session.Session {
	t.Helper()
	opts = append([]session.Option{session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	s := session.New(session.Deps{Items: db, Lines: db, Costs: db, History: db}, opts...)
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}
