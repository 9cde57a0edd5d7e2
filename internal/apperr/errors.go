// Package apperr defines sentinel errors shared by the service layers.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrAlreadyExists   = errors.New("already exists")
	ErrImportFailed    = errors.New("import failed")
	ErrPayloadTooLarge = errors.New("payload too large")
)
