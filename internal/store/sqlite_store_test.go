package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/sensor_provider/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := NewSQLiteStore(db)
	if err := SeedExampleProject(ctx, s); err != nil {
		t.Fatalf("SeedExampleProject: %v", err)
	}
	if err := SeedExampleMeasurements(ctx, s); err != nil {
		t.Fatalf("SeedExampleMeasurements: %v", err)
	}
	return s
}

func mustTime(t *testing.T, s string) *time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t.Fatal(err)
	}
	return &ts
}

func TestSQLiteStore_GetProject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.GetProject(ctx, ExampleProjectID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if p.Name == nil || *p.Name != ExampleProjectName {
		t.Errorf("unexpected project name %v", p.Name)
	}

	if _, err := s.GetProject(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_VerifyRefreshToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		projectID string
		token     string
		want      bool
	}{
		{"valid", ExampleProjectID, ExampleRefreshToken, true},
		{"wrong token", ExampleProjectID, "124", false},
		{"empty token", ExampleProjectID, "", false},
		{"unknown project", "abd", ExampleRefreshToken, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := s.VerifyRefreshToken(ctx, tt.projectID, tt.token)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.want {
				t.Errorf("expected %v, got %v", tt.want, ok)
			}
		})
	}
}

func TestSQLiteStore_SeedIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := SeedExampleProject(ctx, s); err != nil {
		t.Fatal(err)
	}
	if err := SeedExampleMeasurements(ctx, s); err != nil {
		t.Fatal(err)
	}

	got, err := s.Measurements(ctx, ExampleSensorID, TimeRange{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(ExampleMeasurements()) {
		t.Errorf("expected %d points after reseeding, got %d", len(ExampleMeasurements()), len(got))
	}
}

func TestSQLiteStore_GetSensorScopedToProject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateProject(ctx, Project{ID: "other"}, "secret"); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateSensor(ctx, "other", model.SensorStatus{ID: "foreign", Type: model.HumiditySensor, Active: true}); err != nil {
		t.Fatal(err)
	}

	st, err := s.GetSensor(ctx, ExampleProjectID, ExampleSensorID)
	if err != nil {
		t.Fatalf("GetSensor: %v", err)
	}
	want := ExampleSensorStatus()
	if st.ID != want.ID || st.Type != want.Type || *st.BatteryLife != *want.BatteryLife ||
		*st.LastMeasurementRssi != *want.LastMeasurementRssi ||
		st.LastMeasurementDate.String() != want.LastMeasurementDate.String() {
		t.Errorf("unexpected sensor %+v", st)
	}

	if _, err := s.GetSensor(ctx, ExampleProjectID, "foreign"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for sensor of another project, got %v", err)
	}
	if _, err := s.GetSensor(ctx, "other", ExampleSensorID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for example sensor under other project, got %v", err)
	}
}

func TestSQLiteStore_CreateSensorRejectsUnknownType(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateSensor(context.Background(), ExampleProjectID, model.SensorStatus{ID: "x", Type: "thermometer"})
	if err == nil {
		t.Error("expected error for unknown sensor type")
	}
}

func TestSQLiteStore_ListSensorsPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"b-sensor", "a-sensor", "c-sensor"} {
		if err := s.CreateSensor(ctx, ExampleProjectID, model.SensorStatus{ID: id, Type: model.LightSensor}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListSensors(ctx, ExampleProjectID, Page{})
	if err != nil {
		t.Fatal(err)
	}
	wantOrder := []string{ExampleSensorID, "a-sensor", "b-sensor", "c-sensor"}
	if len(all) != len(wantOrder) {
		t.Fatalf("expected %d sensors, got %d", len(wantOrder), len(all))
	}
	for i, id := range wantOrder {
		if all[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, all[i].ID)
		}
	}

	page, err := s.ListSensors(ctx, ExampleProjectID, Page{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != "a-sensor" || page[1].ID != "b-sensor" {
		t.Errorf("unexpected page %+v", page)
	}

	empty, err := s.ListSensors(ctx, "unknown", Page{})
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", empty)
	}
}

func TestSQLiteStore_MeasurementsOrderedAscending(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Measurements(context.Background(), ExampleSensorID, TimeRange{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := ExampleMeasurements()
	if len(got) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Date.String() != want[i].Date.String() || *got[i].Value != *want[i].Value {
			t.Errorf("point %d: expected %s=%v, got %s=%v", i, want[i].Date, *want[i].Value, got[i].Date, *got[i].Value)
		}
	}
}

func TestSQLiteStore_MeasurementsRangeIsInclusive(t *testing.T) {
	s := newTestStore(t)

	r := TimeRange{
		From: mustTime(t, "2025-02-25T08:43:00.000Z"),
		To:   mustTime(t, "2025-02-25T08:44:24.804Z"),
	}
	got, err := s.Measurements(context.Background(), ExampleSensorID, r, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %d: %+v", len(got), got)
	}
	if got[0].Date.String() != "2025-02-25T08:43:24.804Z" || got[1].Date.String() != "2025-02-25T08:44:24.804Z" {
		t.Errorf("unexpected points %s, %s", got[0].Date, got[1].Date)
	}

	exact := TimeRange{
		From: mustTime(t, "2025-02-25T08:45:24.804Z"),
		To:   mustTime(t, "2025-02-25T08:45:24.804Z"),
	}
	got, err = s.Measurements(context.Background(), ExampleSensorID, exact, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("expected the single point at the shared bound, got %d", len(got))
	}
}

func TestSQLiteStore_MeasurementsLimitAndNullValues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gap := model.Measurement{Date: model.MustParseTimestamp("2025-02-25T08:46:24.804Z")}
	if err := s.AddMeasurement(ctx, ExampleSensorID, gap); err != nil {
		t.Fatal(err)
	}

	limited, err := s.Measurements(ctx, ExampleSensorID, TimeRange{}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 3 {
		t.Errorf("expected 3 points, got %d", len(limited))
	}

	tail, err := s.Measurements(ctx, ExampleSensorID, TimeRange{From: &gap.Date.Time}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(tail) != 1 || tail[0].Value != nil {
		t.Errorf("expected one null point, got %+v", tail)
	}
}

func TestSQLiteStore_RecordReading(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	newer := Reading{
		Measurement: model.Measurement{Date: model.MustParseTimestamp("2025-02-25T08:50:00.000Z"), Value: model.Ptr(7.5)},
		BatteryLife: model.Ptr(0.55),
	}
	if err := s.RecordReading(ctx, ExampleSensorID, newer); err != nil {
		t.Fatalf("RecordReading: %v", err)
	}
	st, err := s.GetSensor(ctx, ExampleProjectID, ExampleSensorID)
	if err != nil {
		t.Fatal(err)
	}
	if st.LastMeasurementDate.String() != "2025-02-25T08:50:00.000Z" || *st.LastMeasurementValue != 7.5 {
		t.Errorf("last measurement not updated: %s=%v", st.LastMeasurementDate, *st.LastMeasurementValue)
	}
	if *st.BatteryLife != 0.55 {
		t.Errorf("battery not updated: %v", *st.BatteryLife)
	}
	if st.LastMeasurementRssi == nil || *st.LastMeasurementRssi != -49 {
		t.Errorf("rssi should be kept when not reported, got %v", st.LastMeasurementRssi)
	}

	older := Reading{
		Measurement: model.Measurement{Date: model.MustParseTimestamp("2025-02-25T08:00:00.000Z"), Value: model.Ptr(-1.0)},
	}
	if err := s.RecordReading(ctx, ExampleSensorID, older); err != nil {
		t.Fatalf("RecordReading stale: %v", err)
	}
	st, err = s.GetSensor(ctx, ExampleProjectID, ExampleSensorID)
	if err != nil {
		t.Fatal(err)
	}
	if *st.LastMeasurementValue != 7.5 {
		t.Errorf("stale reading overwrote last value: %v", *st.LastMeasurementValue)
	}

	if err := s.RecordReading(ctx, "missing", newer); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTimeRange_Contains(t *testing.T) {
	from := time.Date(2025, 2, 25, 8, 43, 0, 0, time.UTC)
	to := time.Date(2025, 2, 25, 8, 44, 0, 0, time.UTC)
	r := TimeRange{From: &from, To: &to}

	if !r.Contains(from) || !r.Contains(to) {
		t.Error("bounds must be inclusive")
	}
	if r.Contains(from.Add(-time.Millisecond)) || r.Contains(to.Add(time.Millisecond)) {
		t.Error("points outside the bounds must be excluded")
	}
	if !(TimeRange{}).Contains(time.Time{}) {
		t.Error("an open range contains everything")
	}
}

func TestSQLiteStore_SensorExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if ok, err := s.SensorExists(ctx, ExampleSensorID); err != nil || !ok {
		t.Errorf("expected example sensor to exist, got %v, %v", ok, err)
	}
	if ok, err := s.SensorExists(ctx, "ghost"); err != nil || ok {
		t.Errorf("expected ghost sensor to be missing, got %v, %v", ok, err)
	}
}

func TestSQLiteStore_MeasurementsSubMillisecondBounds(t *testing.T) {
	s := newTestStore(t)

	r := TimeRange{
		From: mustTime(t, "2025-02-25T08:43:24.8049Z"),
		To:   mustTime(t, "2025-02-25T08:44:24.8049Z"),
	}
	got, err := s.Measurements(context.Background(), ExampleSensorID, r, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Date.String() != "2025-02-25T08:44:24.804Z" {
		t.Errorf("expected only the 08:44:24.804 point, got %+v", got)
	}
}

func TestCeilMillis(t *testing.T) {
	base := time.Date(2025, 2, 25, 8, 43, 24, 804_000_000, time.UTC)
	if got := ceilMillis(base); got != base.UnixMilli() {
		t.Errorf("whole millisecond must be kept, got %d", got)
	}
	if got := ceilMillis(base.Add(time.Nanosecond)); got != base.UnixMilli()+1 {
		t.Errorf("fraction must round up, got %d", got)
	}
}
