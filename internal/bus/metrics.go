package bus

import "sync/atomic"

// MetricsSnapshot is a point-in-time copy of the registry counters.
type MetricsSnapshot struct {
	Connects       int64 `json:"connects"`
	Disconnects    int64 `json:"disconnects"`
	Sends          int64 `json:"sends"`
	// Hops counts resolve-and-enqueue attempts. Relaying a spent envelope is not one.
	Hops           int64 `json:"hops"`
	Delivered      int64 `json:"delivered"`
	DroppedNoRoute int64 `json:"dropped_no_route"`
	DroppedFull    int64 `json:"dropped_full"`
}

// Metrics holds the registry's delivery counters.
type Metrics struct {
	connects       atomic.Int64
	disconnects    atomic.Int64
	sends          atomic.Int64
	hops           atomic.Int64
	delivered      atomic.Int64
	droppedNoRoute atomic.Int64
	droppedFull    atomic.Int64
}

func (m *Metrics) recordConnect()        { m.connects.Add(1) }
func (m *Metrics) recordDisconnect()     { m.disconnects.Add(1) }
func (m *Metrics) recordSend()           { m.sends.Add(1) }
func (m *Metrics) recordHop()            { m.hops.Add(1) }
func (m *Metrics) recordDelivered()      { m.delivered.Add(1) }
func (m *Metrics) recordDroppedNoRoute() { m.droppedNoRoute.Add(1) }
func (m *Metrics) recordDroppedFull()    { m.droppedFull.Add(1) }

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Connects:       m.connects.Load(),
		Disconnects:    m.disconnects.Load(),
		Sends:          m.sends.Load(),
		Hops:           m.hops.Load(),
		Delivered:      m.delivered.Load(),
		DroppedNoRoute: m.droppedNoRoute.Load(),
		DroppedFull:    m.droppedFull.Load(),
	}
}
