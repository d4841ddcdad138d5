package domain

import "errors"

// Sentinel errors. Repositories and services wrap these with fmt.Errorf so the
// HTTP layer and the event pipeline can classify failures with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)
