package repositories

import "errors"

// ErrNotFound is returned when a lookup matches nothing
var ErrNotFound = errors.New("not found")
