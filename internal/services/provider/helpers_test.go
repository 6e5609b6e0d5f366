package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LeonardoBeccarini/sensor_provider/internal/metrics"
	"github.com/LeonardoBeccarini/sensor_provider/internal/model"
	"github.com/LeonardoBeccarini/sensor_provider/internal/store"
)

var fixedNow = time.Date(2025, 2, 25, 9, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestIssuer() *TokenIssuer {
	return NewTokenIssuer([]byte("test-secret"), "sensor-provider-test", time.Hour).
		WithClock(func() time.Time { return fixedNow })
}

// newTestAPI returns an API backed by a seeded SQLite store.
func newTestAPI(t *testing.T) (*API, *store.SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "provider.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := store.NewSQLiteStore(db)
	if err := store.SeedExampleProject(ctx, s); err != nil {
		t.Fatal(err)
	}
	if err := store.SeedExampleMeasurements(ctx, s); err != nil {
		t.Fatal(err)
	}

	api := &API{
		Config: Config{
			StoreTimeout: time.Second,
			MaxRange:     744 * time.Hour,
			MaxPoints:    100,
		},
		Projects:     s,
		Sensors:      s,
		Measurements: s,
		Tokens:       newTestIssuer(),
		Ready:        s.Ping,
		Metrics:      metrics.New(),
	}
	return api, s
}

func doRequest(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func authHeaders(t *testing.T, api *API, projectID string) map[string]string {
	t.Helper()
	token, err := api.Tokens.Issue(projectID)
	if err != nil {
		t.Fatal(err)
	}
	return map[string]string{
		"Authorization": "Bearer " + token,
		HeaderProjectID: projectID,
	}
}

type MockMeasurements struct {
	err error
}

func (m *MockMeasurements) Measurements(context.Context, string, store.TimeRange, int) ([]model.Measurement, error) {
	return nil, m.err
}

func (m *MockMeasurements) AddMeasurement(context.Context, string, model.Measurement) error {
	return m.err
}
