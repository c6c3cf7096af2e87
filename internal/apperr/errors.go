package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrNoSession      = errors.New("no edit session open")
	ErrSaveInProgress = errors.New("save already in progress")
	ErrYieldViolation = errors.New("yield exceeds ingredient mass")
	ErrSaveAborted    = errors.New("save aborted")
)
