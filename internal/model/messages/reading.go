package messages

import "github.com/LeonardoBeccarini/sensor_provider/internal/model"

// SensorReading is published by a sensor (or the simulator) on
// sensors/<sensorId>/measurements. SensorID may be left empty, in which case
// the consumer takes it from the topic.
type SensorReading struct {
	SensorID            string           `json:"sensorId,omitempty"`
	Date                *model.Timestamp `json:"date"`
	Value               *float64         `json:"value"`
	Rssi                *int             `json:"rssi,omitempty"`
	BatteryLife         *float64         `json:"batteryLife,omitempty"`
	NextMeasurementDate *model.Timestamp `json:"nextMeasurementDate,omitempty"`
}
