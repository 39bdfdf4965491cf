package catalogue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/sensorbus-core/internal/onewire"
)

// timeFormat is fixed-width so stored timestamps compare lexically.
const timeFormat = "2006-01-02T15:04:05.000000Z"

// SQLiteRepository implements Repository on the sensors table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordReading upserts the sensor row for r.
func (s *SQLiteRepository) RecordReading(ctx context.Context, r Reading) error {
	if r.ROM == (onewire.ROM{}) || !r.ROM.Valid() {
		return fmt.Errorf("%w: rom %s", ErrInvalidReading, r.ROM)
	}
	if r.MeasuredAt.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidReading)
	}

	at := formatTime(r.MeasuredAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sensors (rom, family, first_seen, last_seen, last_celsius, readings, min_celsius, max_celsius)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(rom) DO UPDATE SET
			last_seen    = excluded.last_seen,
			last_celsius = excluded.last_celsius,
			readings     = sensors.readings + 1,
			min_celsius  = MIN(COALESCE(sensors.min_celsius, excluded.min_celsius), excluded.min_celsius),
			max_celsius  = MAX(COALESCE(sensors.max_celsius, excluded.max_celsius), excluded.max_celsius)`,
		r.ROM.String(),
		r.ROM.Family().String(),
		at,
		at,
		r.Celsius,
		r.Celsius,
		r.Celsius,
	)
	if err != nil {
		return fmt.Errorf("recording reading for %s: %w", r.ROM, err)
	}
	return nil
}

// Get returns the sensor with the given ROM string.
func (s *SQLiteRepository) Get(ctx context.Context, rom string) (*Sensor, error) {
	row := s.db.QueryRowContext(ctx, selectSensor+" WHERE rom = ?", rom)
	sensor, err := scanSensor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSensorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting sensor %s: %w", rom, err)
	}
	return sensor, nil
}

// List returns all sensors ordered by ROM.
func (s *SQLiteRepository) List(ctx context.Context) ([]Sensor, error) {
	rows, err := s.db.QueryContext(ctx, selectSensor+" ORDER BY rom")
	if err != nil {
		return nil, fmt.Errorf("querying sensors: %w", err)
	}
	defer rows.Close()

	sensors := make([]Sensor, 0)
	for rows.Next() {
		sensor, err := scanSensor(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sensor: %w", err)
		}
		sensors = append(sensors, *sensor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sensors: %w", err)
	}
	return sensors, nil
}

// Prune deletes sensors whose last reading is older than cutoff.
func (s *SQLiteRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sensors WHERE last_seen < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("pruning sensors: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning sensors: %w", err)
	}
	return n, nil
}

const selectSensor = `SELECT rom, family, first_seen, last_seen, last_celsius, min_celsius, max_celsius, readings FROM sensors`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSensor(row rowScanner) (*Sensor, error) {
	var (
		sensor              Sensor
		firstSeen, lastSeen string
		minC, maxC          sql.NullFloat64
	)
	if err := row.Scan(&sensor.ROM, &sensor.Family, &firstSeen, &lastSeen,
		&sensor.LastCelsius, &minC, &maxC, &sensor.Readings); err != nil {
		return nil, err
	}

	var err error
	if sensor.FirstSeen, err = parseTime(firstSeen); err != nil {
		return nil, err
	}
	if sensor.LastSeen, err = parseTime(lastSeen); err != nil {
		return nil, err
	}
	if minC.Valid {
		sensor.MinCelsius = &minC.Float64
	}
	if maxC.Valid {
		sensor.MaxCelsius = &maxC.Float64
	}
	return &sensor, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
