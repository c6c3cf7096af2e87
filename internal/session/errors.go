package session

import (
	"fmt"

	"github.com/starford/prepcost/internal/recipe"
)

// YieldError stops a save before any write because an item's yield
// outweighs its ingredients. Err is apperr.ErrYieldViolation when the mode
// blocked the save and apperr.ErrSaveAborted when a confirmation was declined.
type YieldError struct {
	Outcome recipe.Outcome
	Err     error
}

func (e *YieldError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Outcome.Message())
}

func (e *YieldError) Unwrap() error {
	return e.Err
}

// SaveError reports a store failure during a save. Err is the original error.
type SaveError struct {
	State State
	Err   error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save failed while %s: %v", e.State.activity(), e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// Message is suitable for showing to the person who pressed save.
func (e *SaveError) Message() string {
	if e.State == StateApplyingLines {
		return "Your recipe changes could not be saved and nothing was applied. The latest saved recipes have been reloaded."
	}
	return "Recipe lines were saved but some item changes could not be applied. The latest saved recipes have been reloaded."
}
