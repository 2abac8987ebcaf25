package persist

import "github.com/dennetiere/optix-go"

// newIOErr wraps a detail message as optix.ErrIOFailure (file not
// found, parse error, format-version unsupported).
func newIOErr(detail string) error {
	return &ioError{detail: detail}
}

type ioError struct {
	detail string
}

func (e *ioError) Error() string { return "persist: " + e.detail }

func (e *ioError) Unwrap() error { return optix.ErrIOFailure }
