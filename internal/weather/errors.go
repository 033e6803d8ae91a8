package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when neither a live file nor an archive entry exists.
	ErrNotFound = errors.New("no weather data for requested date")

	// ErrInvalidQuery is returned for malformed dates or device names.
	ErrInvalidQuery = errors.New("invalid weather query")

	// ErrUnknownSensorType is returned for names outside the supported sensor types.
	ErrUnknownSensorType = errors.New("unknown sensor type")
)

// ParseError reports a cache file whose contents could not be parsed.
// The data exists but is corrupt, so it is never treated as ErrNotFound.
type ParseError struct {
	Source string
	Line   int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("parse %s line %d: %v", e.Source, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
