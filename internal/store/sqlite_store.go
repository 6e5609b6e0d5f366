package store

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/sensor_provider/internal/model"
)

type SQLiteStore struct {
	DB *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{DB: db}
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func hashRefreshToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// CreateProject inserts a project and its refresh token. Existing projects
// are left unchanged.
func (s *SQLiteStore) CreateProject(ctx context.Context, p Project, refreshToken string) error {
	now := time.Now().Unix()
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		p.ID, nullString(p.Name), now,
	); err != nil {
		return fmt.Errorf("insert project %s: %w", p.ID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO project_credentials (project_id, refresh_token_sha256, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(project_id) DO NOTHING`,
		p.ID, hashRefreshToken(refreshToken), now,
	); err != nil {
		return fmt.Errorf("insert credentials %s: %w", p.ID, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetProject(ctx context.Context, projectID string) (*Project, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT id, name FROM projects WHERE id = ?`, projectID)

	var p Project
	var name sql.NullString
	if err := row.Scan(&p.ID, &name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Name = stringPtr(name)
	return &p, nil
}

func (s *SQLiteStore) VerifyRefreshToken(ctx context.Context, projectID, refreshToken string) (bool, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT refresh_token_sha256 FROM project_credentials WHERE project_id = ?`, projectID,
	)

	var stored string
	if err := row.Scan(&stored); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	got := hashRefreshToken(refreshToken)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(got)) == 1, nil
}

// CreateSensor inserts a sensor owned by projectID. Existing sensors are left
// unchanged.
func (s *SQLiteStore) CreateSensor(ctx context.Context, projectID string, st model.SensorStatus) error {
	if !st.Type.Valid() {
		return fmt.Errorf("sensor %s: unknown type %q", st.ID, st.Type)
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO sensors (id, project_id, type, name, localization, description, active,
			battery_life, wireless, value_unit, min_safe_value, max_safe_value,
			last_measurement_at, last_measurement_value, last_measurement_rssi, next_measurement_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		st.ID, projectID, string(st.Type), nullString(st.Name), nullString(st.Localization), nullString(st.Description),
		st.Active, nullFloat(st.BatteryLife), nullBool(st.Wireless), nullString(st.ValueUnit),
		nullFloat(st.MinSafeValue), nullFloat(st.MaxSafeValue),
		nullMillis(st.LastMeasurementDate), nullFloat(st.LastMeasurementValue), nullInt(st.LastMeasurementRssi),
		nullMillis(st.NextMeasurementDate), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert sensor %s: %w", st.ID, err)
	}
	return nil
}

const sensorColumns = `id, type, name, localization, description, active, battery_life, wireless,
	value_unit, min_safe_value, max_safe_value, last_measurement_at, last_measurement_value,
	last_measurement_rssi, next_measurement_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSensor(row rowScanner) (*model.SensorStatus, error) {
	var (
		st                                  model.SensorStatus
		sensorType                          string
		name, localization, desc, valueUnit sql.NullString
		battery, minSafe, maxSafe, lastVal  sql.NullFloat64
		wireless                            sql.NullBool
		lastAt, rssi, nextAt                sql.NullInt64
	)
	if err := row.Scan(&st.ID, &sensorType, &name, &localization, &desc, &st.Active, &battery, &wireless,
		&valueUnit, &minSafe, &maxSafe, &lastAt, &lastVal, &rssi, &nextAt); err != nil {
		return nil, err
	}
	st.Type = model.SensorType(sensorType)
	st.Name = stringPtr(name)
	st.Localization = stringPtr(localization)
	st.Description = stringPtr(desc)
	st.BatteryLife = floatPtr(battery)
	st.Wireless = boolPtr(wireless)
	st.ValueUnit = stringPtr(valueUnit)
	st.MinSafeValue = floatPtr(minSafe)
	st.MaxSafeValue = floatPtr(maxSafe)
	st.LastMeasurementDate = timestampPtr(lastAt)
	st.LastMeasurementValue = floatPtr(lastVal)
	if rssi.Valid {
		st.LastMeasurementRssi = model.Ptr(int(rssi.Int64))
	}
	st.NextMeasurementDate = timestampPtr(nextAt)
	return &st, nil
}

func (s *SQLiteStore) ListSensors(ctx context.Context, projectID string, page Page) ([]model.SensorStatus, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+sensorColumns+`
		 FROM sensors
		 WHERE project_id = ?
		 ORDER BY id
		 LIMIT ? OFFSET ?`, projectID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.SensorStatus{}
	for rows.Next() {
		st, err := scanSensor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetSensor(ctx context.Context, projectID, sensorID string) (*model.SensorStatus, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+sensorColumns+` FROM sensors WHERE id = ? AND project_id = ?`, sensorID, projectID,
	)
	st, err := scanSensor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return st, nil
}

func (s *SQLiteStore) RecordReading(ctx context.Context, sensorID string, r Reading) error {
	at := r.Measurement.Date.UnixMilli()
	res, err := s.DB.ExecContext(ctx,
		`UPDATE sensors
		 SET last_measurement_at = ?,
		     last_measurement_value = ?,
		     last_measurement_rssi = COALESCE(?, last_measurement_rssi),
		     battery_life = COALESCE(?, battery_life),
		     next_measurement_at = COALESCE(?, next_measurement_at)
		 WHERE id = ? AND (last_measurement_at IS NULL OR last_measurement_at <= ?)`,
		at, nullFloat(r.Measurement.Value), nullInt(r.Rssi), nullFloat(r.BatteryLife),
		nullMillis(r.NextMeasurementDate), sensorID, at,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	// Nothing updated: either the sensor is unknown or the reading is stale.
	exists, err := s.SensorExists(ctx, sensorID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SensorExists(ctx context.Context, sensorID string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM sensors WHERE id = ?`, sensorID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) Measurements(ctx context.Context, sensorID string, r TimeRange, limit int) ([]model.Measurement, error) {
	var q strings.Builder
	args := []any{sensorID}
	q.WriteString(`SELECT measured_at, value FROM measurements WHERE sensor_id = ?`)
	if r.From != nil {
		q.WriteString(` AND measured_at >= ?`)
		args = append(args, ceilMillis(*r.From))
	}
	if r.To != nil {
		q.WriteString(` AND measured_at <= ?`)
		args = append(args, r.To.UnixMilli())
	}
	if limit <= 0 {
		limit = -1
	}
	q.WriteString(` ORDER BY measured_at, id LIMIT ?`)
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Measurement{}
	for rows.Next() {
		var at int64
		var value sql.NullFloat64
		if err := rows.Scan(&at, &value); err != nil {
			return nil, err
		}
		out = append(out, model.Measurement{
			Date:  model.NewTimestamp(time.UnixMilli(at)),
			Value: floatPtr(value),
		})
	}
	return out, rows.Err()
}

// ceilMillis rounds t up to whole milliseconds, the resolution of stored
// measurements, so that a sub-millisecond lower bound excludes the
// millisecond it falls in.
func ceilMillis(t time.Time) int64 {
	ms := t.UnixMilli()
	if t.Sub(time.UnixMilli(ms)) > 0 {
		ms++
	}
	return ms
}

func (s *SQLiteStore) AddMeasurement(ctx context.Context, sensorID string, m model.Measurement) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO measurements (sensor_id, measured_at, value) VALUES (?, ?, ?)`,
		sensorID, m.Date.UnixMilli(), nullFloat(m.Value),
	)
	if err != nil {
		return fmt.Errorf("insert measurement for %s: %w", sensorID, err)
	}
	return nil
}

// helpers

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullBool(p *bool) sql.NullBool {
	if p == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullMillis(p *model.Timestamp) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: p.UnixMilli(), Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func boolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	return &v.Bool
}

func timestampPtr(v sql.NullInt64) *model.Timestamp {
	if !v.Valid {
		return nil
	}
	ts := model.NewTimestamp(time.UnixMilli(v.Int64))
	return &ts
}
