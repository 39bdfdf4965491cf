// Package telemetry implements the UDP telemetry link.
//
// # Wire Format
//
// Each UDP datagram carries one frame, at most MaxFrameSize bytes, all
// fields little-endian:
//
//	+----------------+---------------------------------+
//	| u32 message id | body                            |
//	+----------------+---------------------------------+
//	  0x045f0f63       Discovery:   u32 device id
//	  0x3eee0c83       Temperature: u64 sensor id, f32 celsius
//
// The sensor id is the 1-Wire ROM code in bus byte order.
//
// # Components
//
//   - Client: sends frames to the configured collector
//   - Listener: receives and decodes frames, for diagnostics
//   - Relay: a bus endpoint that forwards Temperature commands while the
//     link is up and announces Discovery on link-up and on an interval
package telemetry
