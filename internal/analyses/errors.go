package analyses

import "errors"

var (
	ErrImageRequired = errors.New("image is required")
	ErrImageTooLarge = errors.New("image too large")
)

const (
	ErrorCodeValidation = "validation_error"
	ErrorCodeStorage    = "storage_error"
	ErrorCodeProvider   = "provider_error"
	ErrorCodeInternal   = "internal_error"
)
