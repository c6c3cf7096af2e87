package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/starford/prepcost/internal/apperr"
	"github.com/starford/prepcost/internal/models"
	"github.com/starford/prepcost/internal/recipe"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func storedLine(id, child string, grams float64) models.RecipeLine {
	l := models.NewIngredientLine(child, grams, "g")
	l.ID = id
	return l
}

// seededStore holds two raw items and a 1000 g dough made of 600 g flour and
// 400 g water.
func seededStore() *fakeStore {
	f := newFakeStore()
	f.putItem(models.Item{ID: "flour", Name: "Flour", Kind: models.KindRaw, Deprecation: models.DeprecationNone})
	f.putItem(models.Item{ID: "water", Name: "Water", Kind: models.KindRaw, Deprecation: models.DeprecationNone})
	f.putItem(models.Item{
		ID:          "dough",
		Name:        "Dough",
		Kind:        models.KindPrepped,
		YieldAmount: models.Ptr(1000.0),
		YieldUnit:   "g",
		Deprecation: models.DeprecationNone,
		Lines:       []models.RecipeLine{storedLine("l1", "flour", 600), storedLine("l2", "water", 400)},
	})
	f.costs["dough"] = 0.005
	f.breakdown["dough"] = models.CostBreakdown{LaborCostPerGram: 0.002, FoodCostPerGram: 0.003}
	return f
}

func newTestSession(t *testing.T, f *fakeStore, mode recipe.Mode, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	s := New(Deps{Items: f, Lines: f, Costs: f, Settings: fixedMode{mode: mode}, History: f}, opts...)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func openSession(t *testing.T, s *Session) []models.Item {
	t.Helper()
	items, err := s.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return items
}

func findItem(t *testing.T, items []models.Item, id string) *models.Item {
	t.Helper()
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	t.Fatalf("item %q not found", id)
	return nil
}

func TestLoad(t *testing.T) {
	s := newTestSession(t, seededStore(), recipe.ModeBlock)
	items := s.Items()
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	dough := findItem(t, items, "dough")
	if len(dough.Lines) != 2 {
		t.Errorf("dough lines = %d, want 2", len(dough.Lines))
	}
	if got := s.TotalGrams(dough.Lines); got != 1000 {
		t.Errorf("TotalGrams = %v, want 1000", got)
	}
	if s.Costs()["dough"] != 0.005 {
		t.Errorf("costs = %v", s.Costs())
	}
}

func TestLoad_BreakdownFailureDegrades(t *testing.T) {
	f := seededStore()
	f.failBreakdown = errors.New("cost service down")
	s := newTestSession(t, f, recipe.ModeBlock)

	if len(s.Breakdown()) != 0 {
		t.Errorf("breakdown = %v, want empty", s.Breakdown())
	}
	dough, _ := s.Item("dough")
	if p := s.Percentages(models.Ptr(10.0), dough, ""); p.Applicable() {
		t.Error("percentages should be not applicable without a breakdown")
	}
}

func TestPercentages_UsesBreakdown(t *testing.T) {
	s := newTestSession(t, seededStore(), recipe.ModeBlock)
	dough, err := s.Item("dough")
	if err != nil {
		t.Fatal(err)
	}
	p := s.Percentages(models.Ptr(10.0), dough, recipe.BasisKilogram)
	if !p.Applicable() || *p.LCOG < 49.999 || *p.LCOG > 50.001 {
		t.Errorf("percentages = %+v", p)
	}
	if _, err := s.Item("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing item err = %v", err)
	}
}

func TestSave_ScenarioA_PassesInEveryMode(t *testing.T) {
	for _, mode := range []recipe.Mode{recipe.ModeBlock, recipe.ModeNotify, recipe.ModePermit} {
		f := seededStore()
		s := newTestSession(t, f, mode)
		edited := openSession(t, s)
		findItem(t, edited, "dough").Notes = "rest overnight"

		res, err := s.Save(context.Background(), edited, nil)
		if err != nil {
			t.Fatalf("%s: Save: %v", mode, err)
		}
		if res.State != StateDone {
			t.Errorf("%s: state = %s", mode, res.State)
		}
		if got := f.writeLog(); !slices.Equal(got, []string{"update:dough"}) {
			t.Errorf("%s: writes = %v", mode, got)
		}
	}
}

func overYield(t *testing.T, s *Session) []models.Item {
	t.Helper()
	edited := openSession(t, s)
	dough := findItem(t, edited, "dough")
	dough.YieldAmount = models.Ptr(1001.0)
	dough.Lines[1].Ingredient.VendorMode = models.VendorPinned
	dough.Lines[1].Ingredient.VendorProductID = "vp-7"
	return edited
}

func TestSave_ScenarioB_BlockWritesNothing(t *testing.T) {
	f := seededStore()
	s := newTestSession(t, f, recipe.ModeBlock)

	res, err := s.Save(context.Background(), overYield(t, s), nil)
	if !errors.Is(err, apperr.ErrYieldViolation) {
		t.Fatalf("err = %v, want yield violation", err)
	}
	var ye *YieldError
	if !errors.As(err, &ye) || ye.Outcome.ItemRef != "dough" {
		t.Errorf("yield error = %+v", ye)
	}
	if res.State != StateAborted {
		t.Errorf("state = %s", res.State)
	}
	if w := f.writeLog(); len(w) != 0 {
		t.Errorf("writes = %v, want none", w)
	}
	if !s.IsOpen() {
		t.Error("a blocked save leaves the session open")
	}
}

func TestSave_ScenarioB_PermitProceeds(t *testing.T) {
	f := seededStore()
	s := newTestSession(t, f, recipe.ModePermit)

	res, err := s.Save(context.Background(), overYield(t, s), nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(f.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(f.batches))
	}
	b := f.batches[0]
	if len(b.Creates) != 0 || len(b.Deletes) != 0 || len(b.Updates) != 1 || b.Updates[0].ID != "l2" {
		t.Errorf("batch = %+v", b)
	}
	if got := f.writeLog(); !slices.Equal(got, []string{"batch", "update:dough"}) {
		t.Errorf("writes = %v, line batch must precede item update", got)
	}
	if !res.Outcomes[len(res.Outcomes)-1].Violated() {
		t.Error("outcome should still report the violation")
	}
	if s.IsOpen() {
		t.Error("session should close after a successful save")
	}
}

func TestSave_NotifyConfirmation(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		f := seededStore()
		s := newTestSession(t, f, recipe.ModeNotify)
		asked := 0
		confirm := ConfirmFunc(func(_ context.Context, o recipe.Outcome) (bool, error) {
			asked++
			return false, nil
		})
		_, err := s.Save(context.Background(), overYield(t, s), confirm)
		if !errors.Is(err, apperr.ErrSaveAborted) {
			t.Fatalf("err = %v, want aborted", err)
		}
		if asked != 1 || len(f.writeLog()) != 0 {
			t.Errorf("asked=%d writes=%v", asked, f.writeLog())
		}
	})

	t.Run("no confirmer declines", func(t *testing.T) {
		f := seededStore()
		s := newTestSession(t, f, recipe.ModeNotify)
		if _, err := s.Save(context.Background(), overYield(t, s), nil); !errors.Is(err, apperr.ErrSaveAborted) {
			t.Fatalf("err = %v, want aborted", err)
		}
	})

	t.Run("accepted", func(t *testing.T) {
		f := seededStore()
		s := newTestSession(t, f, recipe.ModeNotify)
		confirm := ConfirmFunc(func(context.Context, recipe.Outcome) (bool, error) { return true, nil })
		if _, err := s.Save(context.Background(), overYield(t, s), confirm); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if len(f.batches) != 1 {
			t.Errorf("batches = %d, want 1", len(f.batches))
		}
	})
}

func TestSave_SettingsFailureUsesDefaultMode(t *testing.T) {
	f := seededStore()
	s := New(Deps{Items: f, Lines: f, Costs: f, Settings: fixedMode{err: errors.New("offline")}, History: f},
		WithLogger(quietLogger()), WithDefaultMode(recipe.ModeBlock))
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(context.Background(), overYield(t, s), nil); !errors.Is(err, apperr.ErrYieldViolation) {
		t.Errorf("err = %v, want block from default mode", err)
	}
}

func newPizza(key string, lines ...models.RecipeLine) models.Item {
	for i := range lines {
		lines[i].IsNew = true
	}
	return models.Item{Key: key, Name: "Pizza", Kind: models.KindPrepped, IsNew: true, Lines: lines}
}

func TestSave_ScenarioE_RollbackOnBatchFailure(t *testing.T) {
	f := seededStore()
	s := newTestSession(t, f, recipe.ModeBlock)
	edited := openSession(t, s)
	edited = append(edited, newPizza("k-pizza", models.NewIngredientLine("dough", 500, "g")))

	rejected := errors.New("batch rejected")
	f.failBatch = rejected
	readsBefore := f.reads

	res, err := s.Save(context.Background(), edited, nil)
	if !errors.Is(err, rejected) {
		t.Fatalf("err = %v, want original rejection", err)
	}
	var se *SaveError
	if !errors.As(err, &se) || se.State != StateApplyingLines {
		t.Fatalf("save error = %+v", se)
	}
	if se.Message() == "" {
		t.Error("save error should carry a user-facing message")
	}
	if res.State != StateFailedRollback {
		t.Errorf("state = %s", res.State)
	}

	want := []string{"create:Pizza", "batch", "delete:item-1"}
	if got := f.writeLog(); !slices.Equal(got, want) {
		t.Errorf("writes = %v, want %v", got, want)
	}
	if f.reads <= readsBefore {
		t.Error("state should be refetched after rollback")
	}
	for _, it := range s.Items() {
		if it.Name == "Pizza" {
			t.Error("rolled back item still present locally")
		}
	}
	if !s.IsOpen() {
		t.Error("session should stay open for a retry")
	}
}

func TestSave_RollbackFailuresDoNotMaskError(t *testing.T) {
	f := seededStore()
	s := newTestSession(t, f, recipe.ModeBlock)
	edited := append(openSession(t, s), newPizza("k-pizza", models.NewIngredientLine("dough", 500, "g")))

	rejected := errors.New("batch rejected")
	f.failBatch = rejected
	f.failDelete = errors.New("delete failed too")
	f.failList = errors.New("list failed too")

	_, err := s.Save(context.Background(), edited, nil)
	if !errors.Is(err, rejected) {
		t.Fatalf("err = %v, want original rejection", err)
	}
	if errors.Is(err, f.failDelete) || errors.Is(err, f.failList) {
		t.Error("secondary failures must not replace the original error")
	}
}

func TestSave_CreateFailureRollsBackEarlierCreates(t *testing.T) {
	f := seededStore()
	s := newTestSession(t, f, recipe.ModeBlock)
	sauce := newPizza("k-sauce", models.NewIngredientLine("water", 100, "g"))
	sauce.Name = "Sauce"
	edited := append(openSession(t, s), sauce, newPizza("k-pizza", models.NewIngredientLine("dough", 500, "g")))
	f.failCreateAfter = 2

	_, err := s.Save(context.Background(), edited, nil)
	var se *SaveError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want SaveError", err)
	}
	want := []string{"create:Sauce", "create:Pizza", "delete:item-1"}
	if got := f.writeLog(); !slices.Equal(got, want) {
		t.Errorf("writes = %v, want %v", got, want)
	}
}

func TestSave_NewItemReferencesRewritten(t *testing.T) {
	f := seededStore()
	s := newTestSession(t, f, recipe.ModeBlock)
	sauce := newPizza("k-sauce", models.NewIngredientLine("water", 200, "g"))
	sauce.Name = "Sauce"
	pizza := newPizza("k-pizza",
		models.NewIngredientLine("dough", 500, "g"),
		models.NewIngredientLine("k-sauce", 100, "g"),
	)
	edited := append(openSession(t, s), sauce, pizza)

	res, err := s.Save(context.Background(), edited, nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	sauceID, pizzaID := res.Created["k-sauce"], res.Created["k-pizza"]
	if sauceID == "" || pizzaID == "" {
		t.Fatalf("created = %v", res.Created)
	}
	creates := f.batches[0].Creates
	if len(creates) != 3 {
		t.Fatalf("creates = %d, want 3", len(creates))
	}
	if creates[0].ParentID != sauceID || creates[1].ParentID != pizzaID || creates[2].ParentID != pizzaID {
		t.Errorf("parents = %q %q %q", creates[0].ParentID, creates[1].ParentID, creates[2].ParentID)
	}
	if creates[2].Ingredient.ChildID != sauceID {
		t.Errorf("child = %q, want %q", creates[2].Ingredient.ChildID, sauceID)
	}

	items := s.Items()
	if got := findItem(t, items, pizzaID); len(got.Lines) != 2 {
		t.Errorf("pizza lines after refetch = %d, want 2", len(got.Lines))
	}
}

func TestSave_DeprecatesInsteadOfDeleting(t *testing.T) {
	f := seededStore()
	s := newTestSession(t, f, recipe.ModeBlock)
	edited := openSession(t, s)
	findItem(t, edited, "flour").MarkedForDeletion = true
	edited = append(edited, models.Item{Key: "k-gone", Name: "Scratch", IsNew: true, MarkedForDeletion: true})

	res, err := s.Save(context.Background(), edited, nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := f.writeLog(); !slices.Equal(got, []string{"deprecate:flour"}) {
		t.Errorf("writes = %v", got)
	}
	if !slices.Equal(res.Deprecated, []string{"flour"}) {
		t.Errorf("deprecated = %v", res.Deprecated)
	}
	if len(f.recorded) != 1 || !slices.Equal(f.recorded[0], []string{"flour"}) {
		t.Errorf("history = %v", f.recorded)
	}
	if flour, _ := s.Item("flour"); flour.Deprecation != models.DeprecationDirect {
		t.Errorf("flour deprecation = %q", flour.Deprecation)
	}
}

func TestSave_ItemUpdateFailure(t *testing.T) {
	f := seededStore()
	s := newTestSession(t, f, recipe.ModeBlock)
	edited := openSession(t, s)
	findItem(t, edited, "dough").Name = "Pizza dough"
	updateErr := errors.New("update rejected")
	f.failUpdate = updateErr

	_, err := s.Save(context.Background(), edited, nil)
	var se *SaveError
	if !errors.As(err, &se) || se.State != StateApplyingItemFields || !errors.Is(err, updateErr) {
		t.Fatalf("err = %v", err)
	}
	for _, w := range f.writeLog() {
		if w != "update:dough" {
			t.Errorf("unexpected write %q", w)
		}
	}
}

func TestSave_RefetchKeepsUnaffectedLocalValues(t *testing.T) {
	f := seededStore()
	s := newTestSession(t, f, recipe.ModeBlock)
	edited := openSession(t, s)
	findItem(t, edited, "dough").Notes = "fresh"

	// Someone else renames water while we edit.
	f.mu.Lock()
	w := f.items["water"]
	w.Name = "Water (elsewhere)"
	f.items["water"] = w
	f.costs["dough"] = 0.007
	f.mu.Unlock()

	if _, err := s.Save(context.Background(), edited, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	items := s.Items()
	if got := findItem(t, items, "water").Name; got != "Water" {
		t.Errorf("unaffected item = %q, want local value", got)
	}
	if got := findItem(t, items, "dough").Notes; got != "fresh" {
		t.Errorf("affected item notes = %q", got)
	}
	if s.Costs()["dough"] != 0.007 {
		t.Errorf("affected cost = %v, want refreshed", s.Costs()["dough"])
	}
}

func TestSave_Idempotent(t *testing.T) {
	f := seededStore()
	s := newTestSession(t, f, recipe.ModePermit)
	edited := openSession(t, s)
	dough := findItem(t, edited, "dough")
	dough.Lines[0].MarkedForDeletion = true
	added := models.NewIngredientLine("flour", 650, "g")
	added.IsNew = true
	dough.Lines = append(dough.Lines, added)

	if _, err := s.Save(context.Background(), edited, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	again := openSession(t, s)
	b, err := s.Diff(again)
	if err != nil {
		t.Fatal(err)
	}
	if !b.Empty() {
		t.Errorf("diff after save = %+v, want empty", b)
	}
}

func TestSave_RequiresOpenSession(t *testing.T) {
	s := newTestSession(t, seededStore(), recipe.ModeBlock)
	if _, err := s.Save(context.Background(), s.Items(), nil); !errors.Is(err, apperr.ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
	if _, err := s.Diff(s.Items()); !errors.Is(err, apperr.ErrNoSession) {
		t.Errorf("diff err = %v, want ErrNoSession", err)
	}
}

func TestSave_RejectsConcurrentRun(t *testing.T) {
	f := seededStore()
	gate := make(chan struct{})
	f.batchGate = gate
	s := newTestSession(t, f, recipe.ModeBlock)
	edited := openSession(t, s)
	findItem(t, edited, "dough").Lines[0].Ingredient.Quantity = models.Ptr(700.0)

	done := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background(), edited, nil)
		done <- err
	}()

	deadline := time.Now().Add(time.Second)
	for !s.saving.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if _, err := s.Save(context.Background(), edited, nil); !errors.Is(err, apperr.ErrSaveInProgress) {
		t.Errorf("second save err = %v, want ErrSaveInProgress", err)
	}
	if _, err := s.Open(); !errors.Is(err, apperr.ErrSaveInProgress) {
		t.Errorf("open during save err = %v", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first save: %v", err)
	}
}

func TestCancelRestoresSnapshot(t *testing.T) {
	s := newTestSession(t, seededStore(), recipe.ModeBlock)
	before := s.Items()
	openSession(t, s)

	items, err := s.Cancel()
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(items) != len(before) || s.IsOpen() {
		t.Errorf("cancel restored %d items, open=%v", len(items), s.IsOpen())
	}
	if _, err := s.Cancel(); !errors.Is(err, apperr.ErrNoSession) {
		t.Errorf("second cancel err = %v", err)
	}
}

func TestSaveHook(t *testing.T) {
	var got []Result
	f := seededStore()
	s := newTestSession(t, f, recipe.ModeBlock, WithSaveHook(func(r Result) { got = append(got, r) }))
	edited := openSession(t, s)
	findItem(t, edited, "water").MarkedForDeletion = true
	if _, err := s.Save(context.Background(), edited, nil); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !slices.Equal(got[0].Deprecated, []string{"water"}) {
		t.Errorf("hook results = %+v", got)
	}
}

func TestDependents(t *testing.T) {
	line := func(child string) models.RecipeLine { return models.NewIngredientLine(child, 1, "g") }
	gone := line("salt")
	gone.MarkedForDeletion = true
	items := []models.Item{
		{ID: "flour"},
		{ID: "dough", Lines: []models.RecipeLine{line("flour")}},
		{ID: "pizza", Lines: []models.RecipeLine{line("dough"), line("cheese")}},
		{ID: "loaf", Lines: []models.RecipeLine{line("dough")}},
		{ID: "brine", Lines: []models.RecipeLine{gone}},
		{Key: "k-new", Lines: []models.RecipeLine{line("flour")}},
	}
	got := dependents(items, []string{"flour", "salt"})
	slices.Sort(got)
	if want := []string{"dough", "loaf", "pizza"}; !slices.Equal(got, want) {
		t.Errorf("dependents = %v, want %v", got, want)
	}
	if got := dependents(items, nil); got != nil {
		t.Errorf("no ids = %v", got)
	}
}
