package models

import "errors"

// Error kinds. Operations wrap the underlying error with one of these so callers
// can classify failures with errors.Is while keeping the original message.
var (
	// ErrValidation marks caller-correctable input errors.
	ErrValidation = errors.New("validation error")
	// ErrRemoteCall marks failed embedding or completion calls.
	ErrRemoteCall = errors.New("remote call failed")
	// ErrStore marks persistence failures.
	ErrStore = errors.New("store error")
)
