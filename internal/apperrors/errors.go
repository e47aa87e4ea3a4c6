// Package apperrors holds the sentinel errors shared across layers.
package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyDocument   = errors.New("document contains no extractable text")
)
