// pkg/core/errors.go
package core

import "errors"

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalid is returned when a write violates a domain rule, such as a
// hotspot with fewer than three coordinates.
var ErrInvalid = errors.New("invalid record")
