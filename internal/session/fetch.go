package session

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"golang.org/x/sync/errgroup"

	"github.com/starford/prepcost/internal/models"
)

// catalogReads holds the results of the reads that do not depend on item ids.
type catalogReads struct {
	items     []models.Item
	bases     []models.BaseItem
	breakdown map[string]models.CostBreakdown
}

// readCatalog lists items, base records and the cost breakdown concurrently.
// A breakdown failure degrades to an empty map; percentages then read as not
// applicable instead of failing the load.
func (s *Session) readCatalog(ctx context.Context) (*catalogReads, error) {
	out := &catalogReads{}
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		items, err := s.deps.Items.List(gCtx, nil)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		out.items = items
		return nil
	})
	g.Go(func() error {
		bases, err := s.deps.Items.BaseItems(gCtx)
		if err != nil {
			return fmt.Errorf("list base items: %w", err)
		}
		out.bases = bases
		return nil
	})
	g.Go(func() error {
		bd, err := s.deps.Costs.Breakdown(gCtx)
		if err != nil {
			s.logger.Warn("cost breakdown unavailable", slog.String("error", err.Error()))
			bd = map[string]models.CostBreakdown{}
		}
		out.breakdown = bd
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if out.breakdown == nil {
		out.breakdown = map[string]models.CostBreakdown{}
	}
	return out, nil
}

// readDetails fetches lines and costs for ids concurrently.
func (s *Session) readDetails(ctx context.Context, ids []string) (map[string][]models.RecipeLine, map[string]float64, error) {
	lines := map[string][]models.RecipeLine{}
	costs := map[string]float64{}
	if len(ids) == 0 {
		return lines, costs, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l, err := s.deps.Lines.LinesByItem(gCtx, ids)
		if err != nil {
			return fmt.Errorf("load recipe lines: %w", err)
		}
		lines = l
		return nil
	})
	g.Go(func() error {
		c, err := s.deps.Costs.Costs(gCtx, ids)
		if err != nil {
			return fmt.Errorf("load costs: %w", err)
		}
		costs = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return lines, costs, nil
}

// fetchAll reads the whole catalog.
func (s *Session) fetchAll(ctx context.Context) (*state, error) {
	cat, err := s.readCatalog(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(cat.items))
	for i, it := range cat.items {
		ids[i] = it.ID
	}
	lines, costs, err := s.readDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]models.Item, len(cat.items))
	for i, it := range cat.items {
		it.Lines = lines[it.ID]
		items[i] = it
	}
	return &state{
		items:     items,
		bases:     cat.bases,
		costs:     costs,
		breakdown: cat.breakdown,
	}, nil
}

// refetch reloads after a save. Items the save touched, and items this
// session has never seen, take the fresh values; every other item keeps its
// pre-save local value so a stale wholesale read cannot clobber it.
func (s *Session) refetch(ctx context.Context, prev *state, affected []string) (*state, error) {
	cat, err := s.readCatalog(ctx)
	if err != nil {
		return nil, err
	}

	local := make(map[string]models.Item, len(prev.items))
	for _, it := range prev.items {
		local[it.ID] = it
	}
	fresh := make(map[string]struct{}, len(affected))
	for _, id := range affected {
		fresh[id] = struct{}{}
	}
	for _, it := range cat.items {
		if _, ok := local[it.ID]; !ok {
			fresh[it.ID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(fresh))
	for id := range fresh {
		ids = append(ids, id)
	}

	lines, costs, err := s.readDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]models.Item, 0, len(cat.items))
	for _, it := range cat.items {
		if _, ok := fresh[it.ID]; ok {
			it.Lines = lines[it.ID]
			items = append(items, it)
			continue
		}
		items = append(items, local[it.ID].Clone())
	}

	mergedCosts := maps.Clone(prev.costs)
	if mergedCosts == nil {
		mergedCosts = map[string]float64{}
	}
	maps.Copy(mergedCosts, costs)

	mergedBreakdown := maps.Clone(prev.breakdown)
	if mergedBreakdown == nil {
		mergedBreakdown = map[string]models.CostBreakdown{}
	}
	maps.Copy(mergedBreakdown, cat.breakdown)

	return &state{
		items:     items,
		bases:     cat.bases,
		costs:     mergedCosts,
		breakdown: mergedBreakdown,
	}, nil
}
