package sensor_simulator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/sensor_provider/pkg/rabbitmq"
)

// Topic is where readings of sensorID are published.
func Topic(sensorID string) string {
	return fmt.Sprintf("sensors/%s/measurements", sensorID)
}

type SensorSimulator struct {
	sensorID  string
	generator *DataGenerator
	publisher rabbitmq.IPublisher
	log       *zap.Logger
}

func NewSensorSimulator(publisher rabbitmq.IPublisher, gen *DataGenerator, sensorID string, log *zap.Logger) *SensorSimulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &SensorSimulator{sensorID: sensorID, generator: gen, publisher: publisher, log: log}
}

// PublishOnce generates and publishes a single reading.
func (s *SensorSimulator) PublishOnce(interval time.Duration) error {
	reading := s.generator.Next(s.sensorID, interval)
	if err := s.publisher.PublishJSON(Topic(s.sensorID), reading); err != nil {
		return err
	}
	fields := []zap.Field{zap.String("sensor_id", s.sensorID), zap.String("date", reading.Date.String())}
	if reading.Value != nil {
		fields = append(fields, zap.Float64("value", *reading.Value))
	}
	s.log.Debug("reading published", fields...)
	return nil
}

// Start publishes a reading every interval until ctx is done, then closes the
// publisher.
func (s *SensorSimulator) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer s.publisher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.PublishOnce(interval); err != nil {
				s.log.Warn("publish failed", zap.Error(err))
			}
		}
	}
}
