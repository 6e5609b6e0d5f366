package model

// Measurement is a single point of a sensor time series. Value is null when
// the sensor reported a sample without a reading.
type Measurement struct {
	Date  Timestamp `json:"date"`
	Value *float64  `json:"value"`
}

// SensorMeasurements is the payload of GET /sensors/:sensorId/measurements.
type SensorMeasurements struct {
	ValueUnit    *string       `json:"valueUnit"`
	MinSafeValue *float64      `json:"minSafeValue,omitempty"`
	MaxSafeValue *float64      `json:"maxSafeValue,omitempty"`
	Data         []Measurement `json:"data"`
}
