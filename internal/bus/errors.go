package bus

import "errors"

// Domain errors for the bus package.
//
// Delivery failures (unresolved destinations, full mailboxes) are never
// reported as errors. The bus is fire-and-forget; those outcomes are only
// visible through Registry.Metrics and debug logging.
//
//	if errors.Is(err, bus.ErrUnknownGroup) {
//	    // nobody has joined that group name yet
//	}
var (
	// ErrNoMailbox is returned when connecting without a mailbox.
	ErrNoMailbox = errors.New("bus: no mailbox")

	// ErrInvalidAddress is returned when the zero address is used as a target.
	ErrInvalidAddress = errors.New("bus: invalid address")

	// ErrInvalidGroup is returned when a non-group address is used as a group.
	ErrInvalidGroup = errors.New("bus: invalid group address")

	// ErrInvalidGroupName is returned for an empty group name.
	ErrInvalidGroupName = errors.New("bus: invalid group name")

	// ErrNotConnected is returned when an operation needs a connected endpoint.
	ErrNotConnected = errors.New("bus: endpoint not connected")

	// ErrUnknownGroup is returned when sending to a group name that was never allocated.
	ErrUnknownGroup = errors.New("bus: unknown group")

	// ErrNilCommand is returned when sending a nil command.
	ErrNilCommand = errors.New("bus: nil command")

	// ErrAddressSpaceExhausted is returned when no fresh address can be allocated.
	ErrAddressSpaceExhausted = errors.New("bus: address space exhausted")
)
