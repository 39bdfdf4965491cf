package catalogue

import "errors"

var (
	// ErrSensorNotFound is returned when a ROM has never been recorded.
	ErrSensorNotFound = errors.New("catalogue: sensor not found")

	// ErrInvalidReading is returned for readings without a valid ROM or time.
	ErrInvalidReading = errors.New("catalogue: invalid reading")
)
