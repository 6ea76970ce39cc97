package readings

import "errors"

var (
	// ErrUnknownReading indicates a write to a reading name that was not
	// declared when the store was created.
	ErrUnknownReading = errors.New("readings: unknown reading")

	// ErrStoreClosed indicates a write after Close.
	ErrStoreClosed = errors.New("readings: store closed")
)
