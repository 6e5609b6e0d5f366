// Package store holds the data-access layer of the sensor provider.
//
// Handlers depend on the three capability interfaces below, never on a
// concrete backend:
//   - ProjectStore: fetch a project, verify its refresh token
//   - SensorStore: list and fetch sensors scoped to a project, record readings
//   - MeasurementStore: fetch a sensor's series within a time range, append points
//
// SQLiteStore implements all three. InfluxMeasurements is an alternative
// MeasurementStore, usually wrapped in BreakerMeasurements.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/LeonardoBeccarini/sensor_provider/internal/model"
)

var (
	// ErrNotFound is returned when a project or sensor does not exist, or a
	// sensor does not belong to the requested project.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when a backend is temporarily refusing calls.
	ErrUnavailable = errors.New("store unavailable")
)

// Project is a tenant owning a set of sensors.
type Project struct {
	ID   string
	Name *string
}

// Page selects a window of a listing. A non-positive Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}

// TimeRange bounds a measurement query. Both ends are optional and inclusive.
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t lies within the range.
func (r TimeRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// Reading is a measurement plus the sensor metadata reported alongside it.
type Reading struct {
	Measurement         model.Measurement
	Rssi                *int
	BatteryLife         *float64
	NextMeasurementDate *model.Timestamp
}

type ProjectStore interface {
	GetProject(ctx context.Context, projectID string) (*Project, error)
	// VerifyRefreshToken reports whether refreshToken is the current refresh
	// token of projectID. An unknown project yields false, not an error.
	VerifyRefreshToken(ctx context.Context, projectID, refreshToken string) (bool, error)
}

type SensorStore interface {
	ListSensors(ctx context.Context, projectID string, page Page) ([]model.SensorStatus, error)
	// GetSensor returns ErrNotFound unless sensorID belongs to projectID.
	GetSensor(ctx context.Context, projectID, sensorID string) (*model.SensorStatus, error)
	// SensorExists reports whether sensorID is registered in any project.
	SensorExists(ctx context.Context, sensorID string) (bool, error)
	// RecordReading updates the last measurement of a sensor. Readings older
	// than the current last measurement leave it untouched.
	RecordReading(ctx context.Context, sensorID string, r Reading) error
}

type MeasurementStore interface {
	// Measurements returns at most limit points (all when limit <= 0) of the
	// sensor's series inside r, ascending by date.
	Measurements(ctx context.Context, sensorID string, r TimeRange, limit int) ([]model.Measurement, error)
	AddMeasurement(ctx context.Context, sensorID string, m model.Measurement) error
}
