package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/sensor_provider/internal/model"
)

type BreakerConfig struct {
	Name     string
	Failures uint32        // consecutive failures that open the breaker
	OpenFor  time.Duration // time spent open before a half-open probe
	Interval time.Duration // closed-state counter reset period
}

// NewCircuitBreaker builds a breaker that trips after cfg.Failures consecutive
// failures. Caller cancellations and ErrNotFound do not count as failures.
func NewCircuitBreaker(cfg BreakerConfig, onStateChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	fails := cfg.Failures
	if fails < 1 {
		fails = 1
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     cfg.Name,
		Interval: cfg.Interval,
		Timeout:  cfg.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrNotFound)
		},
		OnStateChange: onStateChange,
	})
}

// BreakerMeasurements guards a MeasurementStore with a circuit breaker. While
// the breaker is open calls fail fast with ErrUnavailable.
type BreakerMeasurements struct {
	next MeasurementStore
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerMeasurements(next MeasurementStore, cb *gobreaker.CircuitBreaker) *BreakerMeasurements {
	return &BreakerMeasurements{next: next, cb: cb}
}

func (b *BreakerMeasurements) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerMeasurements) Measurements(ctx context.Context, sensorID string, r TimeRange, limit int) ([]model.Measurement, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Measurements(ctx, sensorID, r, limit)
	})
	if err != nil {
		return nil, b.translate(err)
	}
	return res.([]model.Measurement), nil
}

func (b *BreakerMeasurements) AddMeasurement(ctx context.Context, sensorID string, m model.Measurement) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.AddMeasurement(ctx, sensorID, m)
	})
	return b.translate(err)
}

func (b *BreakerMeasurements) translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s breaker %v", ErrUnavailable, b.cb.Name(), err)
	}
	return err
}
