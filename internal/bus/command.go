package bus

import "time"

// Command kinds, as reported by Command.Kind.
const (
	KindTemperature = "temperature"
	KindDiscovery   = "discovery"
	KindLinkState   = "link_state"
	KindScanRequest = "scan_request"
)

// Command is a payload carried by an envelope.
//
// The set of variants is closed: only types declared in this package
// implement Command. A receiver handles a command by passing a Visitor to
// Accept, which calls the visitor method matching the variant.
//
// The same command value is handed to every endpoint along an envelope's
// path, so variants are plain values and visitors must not retain pointers
// into them.
type Command interface {
	// Accept dispatches the command to the matching Visitor method.
	Accept(from, to Address, v Visitor)

	// Kind returns a stable name for logs and metrics.
	Kind() string

	sealed()
}

// Visitor receives commands, one method per variant.
//
// Handlers usually embed NopVisitor and override only the variants they
// care about; everything else is silently ignored.
type Visitor interface {
	VisitTemperature(from, to Address, cmd Temperature)
	VisitDiscovery(from, to Address, cmd Discovery)
	VisitLinkState(from, to Address, cmd LinkState)
	VisitScanRequest(from, to Address, cmd ScanRequest)
}

// NopVisitor implements Visitor with no-op methods.
type NopVisitor struct{}

func (NopVisitor) VisitTemperature(Address, Address, Temperature) {}
func (NopVisitor) VisitDiscovery(Address, Address, Discovery)     {}
func (NopVisitor) VisitLinkState(Address, Address, LinkState)     {}
func (NopVisitor) VisitScanRequest(Address, Address, ScanRequest) {}

// Temperature is a single sensor reading.
type Temperature struct {
	// SensorID is the 64-bit 1-Wire ROM code of the sensor.
	SensorID uint64

	// Celsius is the measured temperature in degrees Celsius.
	Celsius float64

	// MeasuredAt is when the conversion completed.
	MeasuredAt time.Time
}

func (c Temperature) Accept(from, to Address, v Visitor) { v.VisitTemperature(from, to, c) }
func (Temperature) Kind() string                         { return KindTemperature }
func (Temperature) sealed()                              {}

// Discovery announces a node on the network.
type Discovery struct {
	DeviceID uint32
}

func (c Discovery) Accept(from, to Address, v Visitor) { v.VisitDiscovery(from, to, c) }
func (Discovery) Kind() string                         { return KindDiscovery }
func (Discovery) sealed()                              {}

// LinkState reports a network link transition.
type LinkState struct {
	Connected bool
	Interface string
}

func (c LinkState) Accept(from, to Address, v Visitor) { v.VisitLinkState(from, to, c) }
func (LinkState) Kind() string                         { return KindLinkState }
func (LinkState) sealed()                              {}

// ScanRequest asks sensor pollers to run a measurement cycle now.
type ScanRequest struct {
	// Reason is free text for logs ("api", "mqtt", ...).
	Reason string
}

func (c ScanRequest) Accept(from, to Address, v Visitor) { v.VisitScanRequest(from, to, c) }
func (ScanRequest) Kind() string                         { return KindScanRequest }
func (ScanRequest) sealed()                              {}
