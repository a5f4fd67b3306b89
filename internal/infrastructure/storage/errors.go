package storage

import "errors"

// ErrNotFound is returned when a bill, template, transaction, or run
// does not exist.
var ErrNotFound = errors.New("not found")
