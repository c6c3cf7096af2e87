// Package session owns the working copy of the recipe catalog: the items the
// user sees, the snapshot taken when editing starts, and the save run that
// reconciles the two with the store.
//
// State is never edited in place. Every transition builds a new value and
// swaps it in, so readers always see a consistent collection without locks.
package session

import (
	"context"
	"log/slog"
	"maps"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/starford/prepcost/internal/apperr"
	"github.com/starford/prepcost/internal/models"
	"github.com/starford/prepcost/internal/recipe"
	"github.com/starford/prepcost/internal/recipediff"
)

// Deps are the external collaborators of a Session.
type Deps struct {
	Items    ItemStore
	Lines    LineStore
	Costs    CostService
	Settings SettingsService
	History  HistoryRecorder
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithDefaultMode sets the enforcement mode used when the settings service
// is missing or fails.
func WithDefaultMode(m recipe.Mode) Option {
	return func(s *Session) {
		s.defaultMode = m
	}
}

// WithPricingBasis sets the basis sell prices are quoted in.
func WithPricingBasis(b recipe.PricingBasis) Option {
	return func(s *Session) {
		s.basis = b
	}
}

// WithSaveHook registers fn to be called after every successful save.
func WithSaveHook(fn func(Result)) Option {
	return func(s *Session) {
		s.onSaved = fn
	}
}

// state is an immutable view of the catalog.
type state struct {
	items     []models.Item
	bases     []models.BaseItem
	costs     map[string]float64
	breakdown map[string]models.CostBreakdown
	snapshot  []models.Item // nil unless an edit session is open
}

// Session is the edit session for one catalog.
type Session struct {
	deps        Deps
	logger      *slog.Logger
	defaultMode recipe.Mode
	basis       recipe.PricingBasis
	onSaved     func(Result)

	current atomic.Pointer[state]
	saving  atomic.Bool
}

// New creates a Session with an empty catalog. Call Load to populate it.
func New(deps Deps, opts ...Option) *Session {
	s := &Session{
		deps:        deps,
		logger:      slog.Default(),
		defaultMode: recipe.ModeNotify,
		basis:       recipe.BasisKilogram,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(&state{
		costs:     map[string]float64{},
		breakdown: map[string]models.CostBreakdown{},
	})
	return s
}

// Load replaces the catalog with a full read from the store.
func (s *Session) Load(ctx context.Context) error {
	if s.saving.Load() {
		return apperr.ErrSaveInProgress
	}
	st, err := s.fetchAll(ctx)
	if err != nil {
		return err
	}
	s.current.Store(st)
	s.logger.Info("catalog loaded",
		slog.Int("items", len(st.items)),
		slog.Int("breakdowns", len(st.breakdown)))
	return nil
}

// Items returns a copy of the current items.
func (s *Session) Items() []models.Item {
	return models.CloneItems(s.current.Load().items)
}

// Item returns a copy of the item with the given id.
func (s *Session) Item(id string) (models.Item, error) {
	for _, it := range s.current.Load().items {
		if it.ID == id {
			return it.Clone(), nil
		}
	}
	return models.Item{}, apperr.ErrNotFound
}

// BaseItems returns the density records.
func (s *Session) BaseItems() []models.BaseItem {
	return append([]models.BaseItem(nil), s.current.Load().bases...)
}

// Costs returns the per-gram cost of every item the cost service reported.
func (s *Session) Costs() map[string]float64 {
	return maps.Clone(s.current.Load().costs)
}

// Breakdown returns the labor/food split of every item's per-gram cost.
func (s *Session) Breakdown() map[string]models.CostBreakdown {
	return maps.Clone(s.current.Load().breakdown)
}

// IsOpen reports whether an edit session is open.
func (s *Session) IsOpen() bool {
	return s.current.Load().snapshot != nil
}

// Open starts an edit session and returns the items to edit. The snapshot it
// takes is the baseline the next Save is compared against.
func (s *Session) Open() ([]models.Item, error) {
	if s.saving.Load() {
		return nil, apperr.ErrSaveInProgress
	}
	prev := s.current.Load()
	next := *prev
	next.snapshot = models.CloneItems(prev.items)
	if next.snapshot == nil {
		next.snapshot = []models.Item{}
	}
	s.current.Store(&next)
	return models.CloneItems(prev.items), nil
}

// Cancel discards the edit session and restores the snapshot.
func (s *Session) Cancel() ([]models.Item, error) {
	if s.saving.Load() {
		return nil, apperr.ErrSaveInProgress
	}
	prev := s.current.Load()
	if prev.snapshot == nil {
		return nil, apperr.ErrNoSession
	}
	next := *prev
	next.items = models.CloneItems(prev.snapshot)
	next.snapshot = nil
	s.current.Store(&next)
	return models.CloneItems(next.items), nil
}

// Normalizer returns a gram normalizer over the current catalog, with extra
// items (typically unsaved edits) shadowing stored ones.
func (s *Session) Normalizer(extra ...models.Item) *recipe.Normalizer {
	st := s.current.Load()
	all := make([]models.Item, 0, len(st.items)+len(extra))
	all = append(all, st.items...)
	all = append(all, extra...)
	return recipe.NewNormalizer(recipe.NewCatalog(all, st.bases))
}

// TotalGrams sums the ingredient mass of lines against the current catalog.
func (s *Session) TotalGrams(lines []models.RecipeLine) float64 {
	return s.Normalizer().TotalGrams(lines)
}

// ValidateYield checks item's yield. An empty mode uses the configured one.
func (s *Session) ValidateYield(ctx context.Context, item models.Item, mode recipe.Mode) recipe.Outcome {
	if mode == "" {
		mode = s.mode(ctx)
	}
	return s.Normalizer(item).ValidateItem(item, mode)
}

// Percentages derives cost ratios for item at price using the latest
// breakdown. An empty basis uses the configured one.
func (s *Session) Percentages(price *float64, item models.Item, basis recipe.PricingBasis) recipe.Percentages {
	if basis == "" {
		basis = s.basis
	}
	return recipe.ComputePercentages(price, s.current.Load().breakdown, item, basis)
}

// Diff compares edited against the open session's snapshot.
func (s *Session) Diff(edited []models.Item) (recipediff.Batch, error) {
	snap := s.current.Load().snapshot
	if snap == nil {
		return recipediff.Batch{}, apperr.ErrNoSession
	}
	return recipediff.Diff(snap, edited), nil
}

// mode asks the settings service for the enforcement mode, falling back to
// the default when it cannot answer.
func (s *Session) mode(ctx context.Context) recipe.Mode {
	if s.deps.Settings == nil {
		return s.defaultMode
	}
	m, err := s.deps.Settings.ValidationMode(ctx)
	if err != nil {
		s.logger.Warn("validation settings unavailable",
			slog.String("fallback", string(s.defaultMode)),
			slog.String("error", err.Error()))
		return s.defaultMode
	}
	if !m.Valid() {
		s.logger.Warn("unknown validation mode", slog.String("mode", string(m)))
		return s.defaultMode
	}
	return m
}

// assignKeys gives every new item and line a client key so references to
// them survive until the store assigns ids.
func assignKeys(items []models.Item) {
	for i := range items {
		if items[i].IsNew && items[i].Key == "" {
			items[i].Key = uuid.NewString()
		}
		for j := range items[i].Lines {
			l := &items[i].Lines[j]
			if l.IsNew && l.Key == "" {
				l.Key = uuid.NewString()
			}
		}
	}
}
