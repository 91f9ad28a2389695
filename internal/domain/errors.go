package domain

import "errors"

// ErrNotFound indicates a cache miss: no record for the symbol, or the
// entry expired. Callers treat expired and absent identically.
var ErrNotFound = errors.New("record not found")
