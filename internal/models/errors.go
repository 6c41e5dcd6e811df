package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for models.
var (
	// ErrTitleRequired indicates a required title field is empty.
	ErrTitleRequired = errors.New("title is required")

	// ErrMediaRefRequired indicates a required media reference is empty.
	ErrMediaRefRequired = errors.New("media_ref is required")

	// ErrInvalidMediaType indicates an invalid media type.
	ErrInvalidMediaType = errors.New("invalid media type: must be 'image' or 'video'")

	// ErrInvalidLinkURL indicates a malformed link URL.
	ErrInvalidLinkURL = errors.New("invalid link URL format")
)
