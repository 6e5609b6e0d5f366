// Package ingest consumes sensor readings from MQTT and writes them into the
// provider's stores.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/sensor_provider/internal/metrics"
	"github.com/LeonardoBeccarini/sensor_provider/internal/model"
	"github.com/LeonardoBeccarini/sensor_provider/internal/model/messages"
	"github.com/LeonardoBeccarini/sensor_provider/internal/store"
	"github.com/LeonardoBeccarini/sensor_provider/pkg/dedup"
	"github.com/LeonardoBeccarini/sensor_provider/pkg/rabbitmq"
)

const DefaultTopic = "sensors/+/measurements"

// outcome labels of the ingest counter
const (
	resultStored    = "stored"
	resultDuplicate = "duplicate"
	resultInvalid   = "invalid"
	resultUnknown   = "unknown_sensor"
	resultError     = "error"
)

var errInvalidReading = errors.New("invalid reading")

type Service struct {
	consumer     rabbitmq.IConsumer
	sensors      store.SensorStore
	measurements store.MeasurementStore
	dedup        *dedup.Deduper
	timeout      time.Duration
	log          *zap.Logger
	metrics      *metrics.Metrics
}

type Config struct {
	StoreTimeout time.Duration
	DedupTTL     time.Duration
}

// NewService wires a consumer to the stores. log and m may be nil.
func NewService(consumer rabbitmq.IConsumer, sensors store.SensorStore, measurements store.MeasurementStore,
	cfg Config, log *zap.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.StoreTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{
		consumer:     consumer,
		sensors:      sensors,
		measurements: measurements,
		dedup:        dedup.New(cfg.DedupTTL, 0),
		timeout:      timeout,
		log:          log,
		metrics:      m,
	}
}

// Start consumes until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	s.consumer.SetHandler(s.HandleMessage)
	return s.consumer.ConsumeMessage(ctx)
}

func (s *Service) count(result string) {
	if s.metrics != nil {
		s.metrics.IngestMessages.WithLabelValues(result).Inc()
	}
}

// sensorIDFromTopic extracts <id> from sensors/<id>/...
func sensorIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 && parts[0] == "sensors" {
		return parts[1]
	}
	return ""
}

func decodeReading(topic string, payload []byte) (string, store.Reading, error) {
	var msg messages.SensorReading
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", store.Reading{}, fmt.Errorf("%w: %v", errInvalidReading, err)
	}
	sensorID := msg.SensorID
	if sensorID == "" {
		sensorID = sensorIDFromTopic(topic)
	}
	switch {
	case sensorID == "":
		return "", store.Reading{}, fmt.Errorf("%w: no sensor id", errInvalidReading)
	case msg.Date == nil:
		return "", store.Reading{}, fmt.Errorf("%w: no date", errInvalidReading)
	case msg.BatteryLife != nil && (*msg.BatteryLife < 0 || *msg.BatteryLife > 1):
		return "", store.Reading{}, fmt.Errorf("%w: battery life %v out of [0,1]", errInvalidReading, *msg.BatteryLife)
	}
	return sensorID, store.Reading{
		Measurement:         model.Measurement{Date: *msg.Date, Value: msg.Value},
		Rssi:                msg.Rssi,
		BatteryLife:         msg.BatteryLife,
		NextMeasurementDate: msg.NextMeasurementDate,
	}, nil
}

// readingKey identifies a reading of one sensor for de-duplication. The
// sensor id is part of the key because payloads may omit it.
func readingKey(sensorID string, payload []byte) string {
	return dedup.Key(append([]byte(sensorID+"\x00"), payload...))
}

// HandleMessage stores one reading. Malformed, duplicate and unknown-sensor
// messages are dropped without error. The measurement is appended before the
// sensor status moves, so a failed append leaves the status untouched. Store
// failures are returned and release the dedup key, so a republished copy of
// the reading is accepted.
func (s *Service) HandleMessage(topic string, msg mqtt.Message) error {
	payload := msg.Payload()
	sensorID, reading, err := decodeReading(topic, payload)
	if err != nil {
		s.count(resultInvalid)
		s.log.Warn("invalid reading dropped", zap.String("topic", topic), zap.Error(err))
		return nil
	}

	key := readingKey(sensorID, payload)
	if !s.dedup.ShouldProcess(key) {
		s.count(resultDuplicate)
		s.log.Debug("duplicate reading dropped", zap.String("sensor_id", sensorID))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	exists, err := s.sensors.SensorExists(ctx, sensorID)
	if err != nil {
		s.count(resultError)
		s.dedup.Forget(key)
		return fmt.Errorf("look up sensor %s: %w", sensorID, err)
	}
	if !exists {
		s.count(resultUnknown)
		s.dedup.Forget(key)
		s.log.Warn("reading for unknown sensor dropped", zap.String("sensor_id", sensorID))
		return nil
	}

	if err := s.measurements.AddMeasurement(ctx, sensorID, reading.Measurement); err != nil {
		s.count(resultError)
		s.dedup.Forget(key)
		return fmt.Errorf("append measurement for %s: %w", sensorID, err)
	}
	if err := s.sensors.RecordReading(ctx, sensorID, reading); err != nil {
		s.count(resultError)
		return fmt.Errorf("record reading for %s: %w", sensorID, err)
	}

	s.count(resultStored)
	s.log.Debug("reading stored",
		zap.String("sensor_id", sensorID), zap.String("date", reading.Measurement.Date.String()))
	return nil
}
