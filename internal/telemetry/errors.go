package telemetry

import "errors"

var (
	// ErrShortFrame is returned when a frame ends before its body is complete.
	ErrShortFrame = errors.New("telemetry: short frame")

	// ErrFrameTooLarge is returned for frames above MaxFrameSize.
	ErrFrameTooLarge = errors.New("telemetry: frame too large")

	// ErrUnknownMessage is returned for an unrecognised message ID.
	ErrUnknownMessage = errors.New("telemetry: unknown message id")

	// ErrNotConnected is returned when sending on a closed client.
	ErrNotConnected = errors.New("telemetry: not connected")
)
