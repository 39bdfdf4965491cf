package catalogue

import (
	"context"
	"time"

	"github.com/nerrad567/sensorbus-core/internal/onewire"
)

// Sensor is the catalogue entry for one 1-Wire thermometer.
type Sensor struct {
	// ROM in sysfs form, e.g. "28-0316a2794dff".
	ROM string `json:"rom"`

	// Family is the chip name derived from the ROM family code.
	Family string `json:"family"`

	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	LastCelsius float64   `json:"last_celsius"`

	// MinCelsius and MaxCelsius are the observed range. Nil for rows that
	// predate range tracking and have not been updated since.
	MinCelsius *float64 `json:"min_celsius,omitempty"`
	MaxCelsius *float64 `json:"max_celsius,omitempty"`

	// Readings counts every recorded measurement.
	Readings int64 `json:"readings"`
}

// Reading is one measurement to record.
type Reading struct {
	ROM        onewire.ROM
	Celsius    float64
	MeasuredAt time.Time
}

// Repository persists the sensor catalogue.
type Repository interface {
	// RecordReading creates the sensor on first sight and updates its
	// last reading, range and count.
	RecordReading(ctx context.Context, r Reading) error

	// Get returns one sensor by ROM string, or ErrSensorNotFound.
	Get(ctx context.Context, rom string) (*Sensor, error)

	// List returns every sensor ordered by ROM.
	List(ctx context.Context) ([]Sensor, error)

	// Prune removes sensors not seen since before cutoff and returns how
	// many were removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}
