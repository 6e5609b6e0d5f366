package store

import (
	"context"
	"fmt"

	"github.com/LeonardoBeccarini/sensor_provider/internal/model"
)

// Example data served by a fresh installation, so that a platform integration
// can be exercised before any real sensor is registered.
const (
	ExampleProjectID    = "abc"
	ExampleProjectName  = "Fake sensor project"
	ExampleRefreshToken = "123"
	ExampleSensorID     = "00000000-0000-0000-0000-000000000000"
)

func ExampleProject() Project {
	return Project{ID: ExampleProjectID, Name: model.Ptr(ExampleProjectName)}
}

func ExampleSensorStatus() model.SensorStatus {
	last := model.MustParseTimestamp("2025-02-25T08:45:24.804Z")
	next := model.MustParseTimestamp("2025-02-25T08:45:24.804Z")
	return model.SensorStatus{
		ID:                   ExampleSensorID,
		Type:                 model.Co2Sensor,
		Name:                 model.Ptr("Sensor #1"),
		Localization:         model.Ptr("Localization #1"),
		Description:          model.Ptr("Lorem ipsum"),
		Active:               true,
		Wireless:             model.Ptr(true),
		BatteryLife:          model.Ptr(0.6),
		ValueUnit:            model.Ptr("°C"),
		MinSafeValue:         model.Ptr(-8.0),
		MaxSafeValue:         model.Ptr(20.0),
		LastMeasurementDate:  &last,
		LastMeasurementValue: model.Ptr(5.0),
		LastMeasurementRssi:  model.Ptr(-49),
		NextMeasurementDate:  &next,
	}
}

func ExampleMeasurements() []model.Measurement {
	point := func(date string, v float64) model.Measurement {
		return model.Measurement{Date: model.MustParseTimestamp(date), Value: model.Ptr(v)}
	}
	return []model.Measurement{
		point("2025-02-25T08:42:24.804Z", -2),
		point("2025-02-25T08:42:24.804Z", 1),
		point("2025-02-25T08:43:24.804Z", 8),
		point("2025-02-25T08:44:24.804Z", 2),
		point("2025-02-25T08:45:24.804Z", 5),
	}
}

// SeedExampleProject registers the example project, its refresh token and
// sensor. Safe to call on every start.
func SeedExampleProject(ctx context.Context, s *SQLiteStore) error {
	if err := s.CreateProject(ctx, ExampleProject(), ExampleRefreshToken); err != nil {
		return err
	}
	return s.CreateSensor(ctx, ExampleProjectID, ExampleSensorStatus())
}

// SeedExampleMeasurements writes the example series unless the sensor
// already has data in m.
func SeedExampleMeasurements(ctx context.Context, m MeasurementStore) error {
	existing, err := m.Measurements(ctx, ExampleSensorID, TimeRange{}, 1)
	if err != nil {
		return fmt.Errorf("check example series: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for _, point := range ExampleMeasurements() {
		if err := m.AddMeasurement(ctx, ExampleSensorID, point); err != nil {
			return err
		}
	}
	return nil
}
