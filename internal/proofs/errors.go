package proofs

import "errors"

// Errors.
var (
	ErrNotConfigured   = errors.New("proof storage is not configured")
	ErrEmptyFile       = errors.New("file is empty")
	ErrTooLarge        = errors.New("file exceeds the upload limit")
	ErrUnsupportedType = errors.New("file type is not allowed")
	ErrUploadFailed    = errors.New("proof upload failed")
)
