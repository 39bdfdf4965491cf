package onewire

import "errors"

// Domain errors for the onewire package.
var (
	// ErrInvalidROM is returned when a ROM code cannot be parsed or fails its CRC.
	ErrInvalidROM = errors.New("onewire: invalid ROM code")

	// ErrUnsupportedFamily is returned for devices that are not DS18x20 thermometers.
	ErrUnsupportedFamily = errors.New("onewire: unsupported device family")

	// ErrCRCMismatch is returned when a scratchpad fails its CRC check.
	ErrCRCMismatch = errors.New("onewire: scratchpad CRC mismatch")

	// ErrNoPresence is returned when a device does not answer on the bus.
	ErrNoPresence = errors.New("onewire: device not present")

	// ErrMalformedScratchpad is returned when driver output cannot be parsed.
	ErrMalformedScratchpad = errors.New("onewire: malformed scratchpad")
)
