package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/LeonardoBeccarini/sensor_provider/internal/model"
)

const (
	fieldValue = "value"
	fieldValid = "valid"
	tagSensor  = "sensor_id"
)

var (
	influxEpoch     = time.Unix(0, 0).UTC()
	influxFarFuture = time.Date(2262, 1, 1, 0, 0, 0, 0, time.UTC)
)

type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

// InfluxMeasurements keeps sensor series in InfluxDB. Every point carries a
// boolean "valid" field and, when the reading is not null, a "value" field.
// Points of one sensor sharing a timestamp overwrite each other.
type InfluxMeasurements struct {
	query       api.QueryAPI
	write       api.WriteAPIBlocking
	bucket      string
	measurement string
}

func NewInfluxMeasurements(client influxdb2.Client, cfg InfluxConfig) (*InfluxMeasurements, error) {
	if client == nil || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	measurement := cfg.Measurement
	if measurement == "" {
		measurement = "sensor_measurement"
	}
	return &InfluxMeasurements{
		query:       client.QueryAPI(cfg.Org),
		write:       client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		bucket:      cfg.Bucket,
		measurement: measurement,
	}, nil
}

// Flux string literals only escape backslash and double quote. Go's %q
// escapes would be read back differently.
var fluxString = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func fluxQuote(s string) string {
	return `"` + fluxString.Replace(s) + `"`
}

// buildMeasurementsFlux renders the range query. Flux ranges exclude their
// stop, so the upper bound is pushed one nanosecond past To.
func buildMeasurementsFlux(bucket, measurement, sensorID string, r TimeRange, limit int) string {
	start, stop := influxEpoch, influxFarFuture
	if r.From != nil {
		start = r.From.UTC()
	}
	if r.To != nil {
		stop = r.To.UTC().Add(time.Nanosecond)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `
from(bucket: %s)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %s and r.%s == %s)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"])`,
		fluxQuote(bucket), start.Format(time.RFC3339Nano), stop.Format(time.RFC3339Nano), fluxQuote(measurement), tagSensor, fluxQuote(sensorID))
	if limit > 0 {
		fmt.Fprintf(&b, "\n  |> limit(n: %d)", limit)
	}
	b.WriteString("\n")
	return b.String()
}

func (s *InfluxMeasurements) Measurements(ctx context.Context, sensorID string, r TimeRange, limit int) ([]model.Measurement, error) {
	res, err := s.query.Query(ctx, buildMeasurementsFlux(s.bucket, s.measurement, sensorID, r, limit))
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	defer func() { _ = res.Close() }()

	out := []model.Measurement{}
	for res.Next() {
		rec := res.Record()
		out = append(out, model.Measurement{
			Date:  model.NewTimestamp(rec.Time()),
			Value: influxFloat(rec.ValueByKey(fieldValue)),
		})
	}
	if res.Err() != nil {
		return nil, fmt.Errorf("influx iterate: %w", res.Err())
	}
	return out, nil
}

func (s *InfluxMeasurements) AddMeasurement(ctx context.Context, sensorID string, m model.Measurement) error {
	fields := map[string]interface{}{fieldValid: m.Value != nil}
	if m.Value != nil {
		fields[fieldValue] = *m.Value
	}
	point := influxdb2.NewPoint(s.measurement, map[string]string{tagSensor: sensorID}, fields, m.Date.Time)
	if err := s.write.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

func influxFloat(v interface{}) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case int64:
		f := float64(x)
		return &f
	case uint64:
		f := float64(x)
		return &f
	default:
		return nil
	}
}
