package domain

import "errors"

// ErrNotFound is returned by backends when a referenced record does not exist.
var ErrNotFound = errors.New("not found")
