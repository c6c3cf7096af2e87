package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/starford/prepcost/internal/models"
	"github.com/starford/prepcost/internal/recipe"
)

// fakeStore implements every port in memory and records the writes it sees.
type fakeStore struct {
	mu sync.Mutex

	items     map[string]models.Item
	itemOrder []string
	lines     map[string]models.RecipeLine
	lineOrder []string
	bases     []models.BaseItem
	costs     map[string]float64
	breakdown map[string]models.CostBreakdown
	seq       int

	writes   []string
	recorded [][]string
	batches  []LineBatch
	reads    int

	failCreateAfter int // fail the Nth create (1-based); 0 never
	creates         int
	failBatch       error
	failUpdate      error
	failDelete      error
	failBreakdown   error
	failList        error
	batchGate       chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:     map[string]models.Item{},
		lines:     map[string]models.RecipeLine{},
		costs:     map[string]float64{},
		breakdown: map[string]models.CostBreakdown{},
	}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeStore) putItem(it models.Item) {
	lines := it.Lines
	it.Lines = nil
	if _, ok := f.items[it.ID]; !ok {
		f.itemOrder = append(f.itemOrder, it.ID)
	}
	f.items[it.ID] = it
	for _, l := range lines {
		l.ParentID = it.ID
		f.lines[l.ID] = l
		f.lineOrder = append(f.lineOrder, l.ID)
	}
}

func (f *fakeStore) writeLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.writes)
}

func (f *fakeStore) Create(_ context.Context, it models.Item) (models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.writes = append(f.writes, "create:"+it.Name)
	if f.failCreateAfter > 0 && f.creates == f.failCreateAfter {
		return models.Item{}, errors.New("create rejected")
	}
	it = it.Clone()
	it.ID = f.nextID("item")
	it.Key = ""
	it.IsNew = false
	if it.Deprecation == "" {
		it.Deprecation = models.DeprecationNone
	}
	f.putItem(it)
	return it, nil
}

func (f *fakeStore) Update(_ context.Context, it models.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, "update:"+it.ID)
	if f.failUpdate != nil {
		return f.failUpdate
	}
	it = it.Clone()
	it.Lines = nil
	it.Key = ""
	f.items[it.ID] = it
	return nil
}

func (f *fakeStore) Deprecate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, "deprecate:"+id)
	it := f.items[id]
	it.Deprecation = models.DeprecationDirect
	f.items[id] = it
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, "delete:"+id)
	if f.failDelete != nil {
		return f.failDelete
	}
	delete(f.items, id)
	f.itemOrder = slices.DeleteFunc(f.itemOrder, func(s string) bool { return s == id })
	return nil
}

func (f *fakeStore) List(_ context.Context, ids []string) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.failList != nil {
		return nil, f.failList
	}
	var out []models.Item
	for _, id := range f.itemOrder {
		if ids != nil && !slices.Contains(ids, id) {
			continue
		}
		out = append(out, f.items[id].Clone())
	}
	return out, nil
}

func (f *fakeStore) BaseItems(context.Context) ([]models.BaseItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.bases), nil
}

func (f *fakeStore) ApplyBatch(_ context.Context, b LineBatch) error {
	if f.batchGate != nil {
		<-f.batchGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, "batch")
	f.batches = append(f.batches, b)
	if f.failBatch != nil {
		return f.failBatch
	}
	for _, l := range b.Creates {
		l = l.Clone()
		l.ID = f.nextID("line")
		l.Key = ""
		l.IsNew = false
		f.lines[l.ID] = l
		f.lineOrder = append(f.lineOrder, l.ID)
	}
	for _, l := range b.Updates {
		f.lines[l.ID] = l.Clone()
	}
	for _, id := range b.Deletes {
		delete(f.lines, id)
		f.lineOrder = slices.DeleteFunc(f.lineOrder, func(s string) bool { return s == id })
	}
	return nil
}

func (f *fakeStore) LinesByItem(_ context.Context, ids []string) (map[string][]models.RecipeLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]models.RecipeLine, len(ids))
	for _, id := range ids {
		out[id] = []models.RecipeLine{}
	}
	for _, lid := range f.lineOrder {
		l := f.lines[lid]
		if _, ok := out[l.ParentID]; ok {
			out[l.ParentID] = append(out[l.ParentID], l.Clone())
		}
	}
	return out, nil
}

func (f *fakeStore) Costs(_ context.Context, ids []string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]float64{}
	for _, id := range ids {
		if c, ok := f.costs[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (f *fakeStore) Breakdown(context.Context) (map[string]models.CostBreakdown, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBreakdown != nil {
		return nil, f.failBreakdown
	}
	out := make(map[string]models.CostBreakdown, len(f.breakdown))
	for k, v := range f.breakdown {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) Record(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, slices.Clone(ids))
	return nil
}

type fixedMode struct {
	mode recipe.Mode
	err  error
}

func (m fixedMode) ValidationMode(context.Context) (recipe.Mode, error) {
	return m.mode, m.err
}
