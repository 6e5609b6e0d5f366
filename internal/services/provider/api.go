package provider

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/sensor_provider/internal/metrics"
	"github.com/LeonardoBeccarini/sensor_provider/internal/model"
	"github.com/LeonardoBeccarini/sensor_provider/internal/store"
)

const maxPageLimit = 1000

type Config struct {
	StoreTimeout time.Duration
	// MaxRange caps to-from when both bounds are given; 0 disables the cap.
	MaxRange time.Duration
	// MaxPoints caps the size of a measurement response; 0 disables the cap.
	MaxPoints int
}

// API serves the sensor-provider HTTP contract.
type API struct {
	Config       Config
	Projects     store.ProjectStore
	Sensors      store.SensorStore
	Measurements store.MeasurementStore
	Tokens       *TokenIssuer
	// Ready reports whether the backing store answers; nil means always ready.
	Ready   func(ctx context.Context) error
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// NewRouter builds a gin engine with the provider middleware and routes.
func NewRouter(api *API) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), AccessLog(api.Log, api.Metrics), Recovery(api.Log))
	RegisterRoutes(router, api)
	return router
}

func RegisterRoutes(router *gin.Engine, api *API) {
	router.GET("/healthz", api.Healthz)
	router.GET("/readyz", api.Readyz)
	if api.Metrics != nil {
		router.GET("/metrics", gin.WrapH(api.Metrics.Handler()))
	}

	router.POST("/sensors-auth", api.Auth)

	sensors := router.Group("/sensors", BearerGuard(api.Tokens))
	sensors.GET("", api.ListSensors)
	sensors.GET("/:sensorId/status", api.SensorStatus)
	sensors.GET("/:sensorId/measurements", api.SensorMeasurements)
	sensors.GET("/:sensorId/notifications", api.SensorNotifications)
}

func (a *API) storeContext(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := a.Config.StoreTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

func (a *API) internalError(c *gin.Context, msg string, err error) {
	if a.Log != nil {
		a.Log.Error(msg, zap.Error(err), zap.String("request_id", c.GetString(requestIDKey)))
	}
	abort(c, ErrInternal)
}

// Auth exchanges a project's refresh token for an access token.
func (a *API) Auth(c *gin.Context) {
	var req model.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProjectID == nil || req.RefreshToken == nil {
		abort(c, ErrMissingCredentials)
		return
	}

	ctx, cancel := a.storeContext(c)
	defer cancel()

	ok, err := a.Projects.VerifyRefreshToken(ctx, *req.ProjectID, *req.RefreshToken)
	if err != nil {
		a.internalError(c, "verify refresh token", err)
		return
	}
	if !ok {
		abort(c, ErrInvalidCredentials)
		return
	}

	token, err := a.Tokens.Issue(*req.ProjectID)
	if err != nil {
		a.internalError(c, "issue access token", err)
		return
	}
	c.JSON(http.StatusOK, model.AuthResponse{AccessToken: token})
}

func parsePage(c *gin.Context) (store.Page, bool) {
	var page store.Page
	if v, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageLimit {
			return page, false
		}
		page.Limit = n
	}
	if v, ok := c.GetQuery("offset"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, false
		}
		page.Offset = n
	}
	return page, true
}

func (a *API) ListSensors(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		abort(c, ErrInvalidPagination)
		return
	}

	ctx, cancel := a.storeContext(c)
	defer cancel()

	projectID := ProjectID(c)
	project, err := a.Projects.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		abort(c, ErrUnauthorized)
		return
	}
	if err != nil {
		a.internalError(c, "get project", err)
		return
	}

	sensors, err := a.Sensors.ListSensors(ctx, projectID, page)
	if err != nil {
		a.internalError(c, "list sensors", err)
		return
	}
	c.JSON(http.StatusOK, model.ProjectSensors{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Data:        sensors,
	})
}

// ownedSensor loads the path sensor of the authenticated project. On false
// the response has been written.
func (a *API) ownedSensor(ctx context.Context, c *gin.Context) (*model.SensorStatus, bool) {
	sensor, err := a.Sensors.GetSensor(ctx, ProjectID(c), c.Param("sensorId"))
	if errors.Is(err, store.ErrNotFound) {
		abort(c, ErrSensorNotInProject)
		return nil, false
	}
	if err != nil {
		a.internalError(c, "get sensor", err)
		return nil, false
	}
	return sensor, true
}

func (a *API) SensorStatus(c *gin.Context) {
	ctx, cancel := a.storeContext(c)
	defer cancel()

	sensor, ok := a.ownedSensor(ctx, c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sensor)
}

func parseTimeRange(c *gin.Context) (store.TimeRange, bool) {
	var r store.TimeRange
	for _, b := range []struct {
		key string
		dst **time.Time
	}{{"from", &r.From}, {"to", &r.To}} {
		v, ok := c.GetQuery(b.key)
		if !ok {
			continue
		}
		// bounds keep their full precision
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return r, false
		}
		*b.dst = &t
	}
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return r, false
	}
	return r, true
}

func (a *API) SensorMeasurements(c *gin.Context) {
	ctx, cancel := a.storeContext(c)
	defer cancel()

	sensor, ok := a.ownedSensor(ctx, c)
	if !ok {
		return
	}

	r, ok := parseTimeRange(c)
	if !ok {
		abort(c, ErrInvalidDateRange)
		return
	}
	if a.Config.MaxRange > 0 && r.From != nil && r.To != nil && r.To.Sub(*r.From) > a.Config.MaxRange {
		abort(c, ErrTooMuchData)
		return
	}

	limit := 0
	if a.Config.MaxPoints > 0 {
		limit = a.Config.MaxPoints + 1
	}
	points, err := a.Measurements.Measurements(ctx, sensor.ID, r, limit)
	switch {
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		if a.Log != nil {
			a.Log.Warn("measurement store unavailable", zap.String("sensor_id", sensor.ID), zap.Error(err))
		}
		abort(c, ErrStoreUnavailable)
		return
	case err != nil:
		a.internalError(c, "query measurements", err)
		return
	}
	if a.Config.MaxPoints > 0 && len(points) > a.Config.MaxPoints {
		abort(c, ErrTooMuchData)
		return
	}
	if points == nil {
		points = []model.Measurement{}
	}

	c.JSON(http.StatusOK, model.SensorMeasurements{
		ValueUnit:    sensor.ValueUnit,
		MinSafeValue: sensor.MinSafeValue,
		MaxSafeValue: sensor.MaxSafeValue,
		Data:         points,
	})
}

// SensorNotifications is part of the contract but has no implementation.
func (a *API) SensorNotifications(c *gin.Context) {
	abort(c, ErrNotImplemented)
}

func (a *API) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (a *API) Readyz(c *gin.Context) {
	if a.Ready != nil {
		ctx, cancel := a.storeContext(c)
		defer cancel()
		if err := a.Ready(ctx); err != nil {
			if a.Log != nil {
				a.Log.Warn("readiness check failed", zap.Error(err))
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}
