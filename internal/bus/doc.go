// Package bus provides the in-process publish/subscribe message bus for
// SensorBus Core.
//
// Components such as the 1-Wire poller, the UDP telemetry relay and the MQTT
// bridge run as independent goroutines. Each owns an Endpoint and exchanges
// typed commands with the others through a shared Registry, without knowing
// who is listening.
//
// # Addressing
//
//   - 0 is invalid
//   - negative addresses identify connected endpoints, allocated -1, -2, ...
//   - positive addresses identify groups, allocated 1, 2, ... on first use of
//     a group name
//
// Addresses are never reused.
//
// # Delivery
//
// A send snapshots the target's destination list into an Envelope and
// performs one hop: the last destination that resolves to a connected
// mailbox receives the envelope. After handling it, that endpoint performs
// the next hop itself. Members of a group therefore see a command in the
// order they joined, and each exactly once.
//
//	  Send(sensors)       TryReceive         TryReceive
//	A ────────────▶ [A] ────────────▶ [B] ────────────▶ (spent)
//	   route [B, A]       route [B]          route []
//
// Mailboxes hold MailboxCapacity envelopes. A hop never blocks: if the
// mailbox is full, or nothing on the route resolves, the envelope is dropped
// and counted in Registry.Metrics.
//
// # Commands
//
// Command is a closed set of variants (Temperature, Discovery, LinkState,
// ScanRequest). Receivers implement Visitor, usually by embedding NopVisitor:
//
//	type printer struct{ bus.NopVisitor }
//
//	func (printer) VisitTemperature(from, to bus.Address, t bus.Temperature) {
//	    fmt.Println(t.SensorID, t.Celsius)
//	}
//
//	reg := bus.NewRegistry()
//	ep := bus.NewEndpoint(reg, printer{})
//	ep.Initialize()
//	ep.JoinName("sensors")
//	go ep.Serve(ctx, bus.WaitForever)
//	defer ep.Close()
//
// # Thread Safety
//
// Registry methods are safe for concurrent use. An Endpoint is received on
// by one goroutine; Send may be called from any goroutine.
package bus
