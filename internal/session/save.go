package session

import (
	"context"
	"log/slog"

	"github.com/starford/prepcost/internal/apperr"
	"github.com/starford/prepcost/internal/models"
	"github.com/starford/prepcost/internal/recipe"
	"github.com/starford/prepcost/internal/recipediff"
)

// State is a step of a save run.
type State string

// Save run states.
const (
	StateValidating         State = "validating"
	StateDiffing            State = "diffing"
	StateApplyingLines      State = "applying_lines"
	StateApplyingItemFields State = "applying_item_fields"
	StateDeprecating        State = "deprecating"
	StateRefetching         State = "refetching"
	StateDone               State = "done"
	StateFailedRollback     State = "failed_rollback"
	StateFailed             State = "failed"
	StateAborted            State = "aborted"
)

func (s State) activity() string {
	switch s {
	case StateApplyingLines:
		return "applying recipe lines"
	case StateApplyingItemFields:
		return "updating items"
	case StateDeprecating:
		return "deprecating items"
	case StateRefetching:
		return "reloading"
	default:
		return string(s)
	}
}

// Result describes a finished save run.
type Result struct {
	State    State            `json:"state"`
	Outcomes []recipe.Outcome `json:"outcomes"`
	Batch    recipediff.Batch `json:"batch"`
	// Created maps the client key of every new item to its assigned id.
	Created    map[string]string `json:"created"`
	Updated    []string          `json:"updated"`
	Deprecated []string          `json:"deprecated"`
	// Stale is set when the writes landed but the reload afterwards failed.
	Stale bool `json:"stale,omitempty"`
}

// saveRun carries one invocation of Save through its states.
type saveRun struct {
	s      *Session
	prev   *state
	state  State
	result Result
	// users of deprecated items; the store marks them indirectly deprecated.
	dependents []string
}

func (r *saveRun) enter(st State) {
	r.state = st
	r.result.State = st
	r.s.logger.Debug("save: state", slog.String("state", string(st)))
}

// Save validates edited, writes the difference against the open session's
// snapshot to the store and reloads what changed. Nothing is written when
// validation stops the run. A failure while applying lines undoes the items
// created by this run and reloads the catalog before returning the original
// error wrapped in a *SaveError.
//
// confirm is consulted for yield violations in notify mode; a nil confirm
// declines.
func (s *Session) Save(ctx context.Context, edited []models.Item, confirm Confirmer) (*Result, error) {
	if !s.saving.CompareAndSwap(false, true) {
		return nil, apperr.ErrSaveInProgress
	}
	defer s.saving.Store(false)

	prev := s.current.Load()
	if prev.snapshot == nil {
		return nil, apperr.ErrNoSession
	}
	r := &saveRun{s: s, prev: prev, result: Result{Created: map[string]string{}}}

	edited = models.CloneItems(edited)
	assignKeys(edited)

	r.enter(StateValidating)
	active, retire := partition(edited)
	if err := r.validate(ctx, active, confirm); err != nil {
		r.enter(StateAborted)
		return &r.result, err
	}

	r.enter(StateDiffing)
	batch := recipediff.Diff(prev.snapshot, active)
	r.result.Batch = batch

	r.enter(StateApplyingLines)
	if err := r.applyLines(ctx, &batch); err != nil {
		return &r.result, r.rollback(ctx, err)
	}

	r.enter(StateApplyingItemFields)
	for _, it := range batch.ItemFieldUpdates {
		if err := s.deps.Items.Update(ctx, it); err != nil {
			return &r.result, r.fail(ctx, err)
		}
		r.result.Updated = append(r.result.Updated, it.ID)
	}

	r.enter(StateDeprecating)
	for _, it := range retire {
		if err := s.deps.Items.Deprecate(ctx, it.ID); err != nil {
			return &r.result, r.fail(ctx, err)
		}
		r.result.Deprecated = append(r.result.Deprecated, it.ID)
	}
	r.dependents = dependents(active, r.result.Deprecated)
	r.recordHistory(ctx)

	r.enter(StateRefetching)
	next, err := s.refetch(ctx, prev, r.affected())
	if err != nil {
		s.logger.Error("save: reload after save failed", slog.String("error", err.Error()))
		r.result.Stale = true
		stale := *prev
		stale.snapshot = nil
		next = &stale
	}
	s.current.Store(next)

	r.enter(StateDone)
	s.logger.Info("save completed",
		slog.Int("created", len(r.result.Created)),
		slog.Int("updated", len(r.result.Updated)),
		slog.Int("deprecated", len(r.result.Deprecated)))
	if s.onSaved != nil {
		s.onSaved(r.result)
	}
	return &r.result, nil
}

// partition drops placeholders and splits items being retired from the rest.
// Only persisted items can be deprecated; new items marked for deletion
// simply vanish.
func partition(items []models.Item) (active, retire []models.Item) {
	for _, it := range items {
		switch {
		case it.MarkedForDeletion:
			if !it.IsNew && it.ID != "" {
				retire = append(retire, it)
			}
		case it.IsPlaceholder():
		default:
			active = append(active, it)
		}
	}
	return active, retire
}

// validate checks every item's yield before anything is written. The first
// blocked or declined item ends the run.
func (r *saveRun) validate(ctx context.Context, active []models.Item, confirm Confirmer) error {
	mode := r.s.mode(ctx)
	n := r.s.Normalizer(active...)
	for _, it := range active {
		out := n.ValidateItem(it, mode)
		r.result.Outcomes = append(r.result.Outcomes, out)

		switch out.Action() {
		case recipe.ActionBlock:
			return &YieldError{Outcome: out, Err: apperr.ErrYieldViolation}
		case recipe.ActionConfirm:
			ok := false
			if confirm != nil {
				var err error
				if ok, err = confirm.ConfirmYield(ctx, out); err != nil {
					return err
				}
			}
			if !ok {
				return &YieldError{Outcome: out, Err: apperr.ErrSaveAborted}
			}
			r.s.logger.Info("save: yield violation confirmed", slog.String("item", out.ItemRef))
		}
	}
	return nil
}

// applyLines creates new items, points their lines at the assigned ids and
// submits every line change as one batch.
func (r *saveRun) applyLines(ctx context.Context, batch *recipediff.Batch) error {
	for i, it := range batch.NewItems {
		saved, err := r.s.deps.Items.Create(ctx, it)
		if err != nil {
			return err
		}
		r.result.Created[it.Key] = saved.ID
		batch.NewItems[i].ID = saved.ID
	}

	ids := r.result.Created
	rewrite := func(lines []models.RecipeLine) {
		for i := range lines {
			if id, ok := ids[lines[i].ParentID]; ok {
				lines[i].ParentID = id
			}
			if in := lines[i].Ingredient; in != nil {
				if id, ok := ids[in.ChildID]; ok {
					in.ChildID = id
				}
			}
		}
	}
	rewrite(batch.LineCreates)
	rewrite(batch.LineUpdates)

	if !batch.HasLineOps() {
		return nil
	}
	return r.s.deps.Lines.ApplyBatch(ctx, LineBatch{
		Creates: batch.LineCreates,
		Updates: batch.LineUpdates,
		Deletes: batch.LineDeletes,
	})
}

// rollback removes the items this run created, resynchronises with the
// store and returns the original error. Failures on the way are logged only.
func (r *saveRun) rollback(ctx context.Context, cause error) error {
	r.enter(StateFailedRollback)
	r.s.logger.Error("save: applying lines failed, rolling back",
		slog.Int("created", len(r.result.Created)),
		slog.String("error", cause.Error()))

	for key, id := range r.result.Created {
		if err := r.s.deps.Items.Delete(ctx, id); err != nil {
			r.s.logger.Warn("save: rollback delete failed",
				slog.String("id", id),
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}
	r.result.Created = map[string]string{}
	r.resync(ctx)
	return &SaveError{State: StateApplyingLines, Err: cause}
}

// fail handles errors after the line batch committed: there is nothing left
// to undo, so the catalog is reloaded and the error returned.
func (r *saveRun) fail(ctx context.Context, cause error) error {
	failedIn := r.state
	r.enter(StateFailed)
	r.s.logger.Error("save: failed",
		slog.String("during", string(failedIn)),
		slog.String("error", cause.Error()))
	r.resync(ctx)
	return &SaveError{State: failedIn, Err: cause}
}

// resync reloads everything from the store and keeps the session open
// against the reloaded state so the user can retry.
func (r *saveRun) resync(ctx context.Context) {
	st, err := r.s.fetchAll(ctx)
	if err != nil {
		r.s.logger.Error("save: resync failed", slog.String("error", err.Error()))
		return
	}
	st.snapshot = models.CloneItems(st.items)
	if st.snapshot == nil {
		st.snapshot = []models.Item{}
	}
	r.s.current.Store(st)
}

func (r *saveRun) recordHistory(ctx context.Context) {
	if r.s.deps.History == nil || len(r.result.Deprecated) == 0 {
		return
	}
	if err := r.s.deps.History.Record(ctx, r.result.Deprecated); err != nil {
		r.s.logger.Warn("save: change history not recorded",
			slog.Int("items", len(r.result.Deprecated)),
			slog.String("error", err.Error()))
	}
}

// affected lists every item id the run wrote to.
func (r *saveRun) affected() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, it := range r.result.Batch.NewItems {
		add(r.result.Created[it.Key])
	}
	for _, id := range r.result.Updated {
		add(id)
	}
	for _, id := range r.result.Deprecated {
		add(id)
	}
	for _, id := range r.dependents {
		add(id)
	}
	return out
}

// dependents returns the persisted items that use any of ids, directly or
// through other items.
func dependents(items []models.Item, ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	users := make(map[string][]string)
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		for _, l := range it.Lines {
			if l.Ingredient == nil || l.MarkedForDeletion {
				continue
			}
			users[l.Ingredient.ChildID] = append(users[l.Ingredient.ChildID], it.ID)
		}
	}

	seen := make(map[string]struct{})
	queue := append([]string(nil), ids...)
	var out []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, parent := range users[id] {
			if _, ok := seen[parent]; ok {
				continue
			}
			seen[parent] = struct{}{}
			out = append(out, parent)
			queue = append(queue, parent)
		}
	}
	return out
}
