package postgres

import "errors"

// ErrNotFound is returned when a query matches no rows, including the
// conditional checkout consume losing its guard.
var ErrNotFound = errors.New("not found")
