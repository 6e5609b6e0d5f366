package model

// SensorType is the physical quantity a sensor measures.
type SensorType string

const (
	TemperatureSensor        SensorType = "temperature_sensor"
	HumiditySensor           SensorType = "humidity_sensor"
	DewPointSensor           SensorType = "dew_point_sensor"
	Co2Sensor                SensorType = "co2_sensor"
	NoxSensor                SensorType = "nox_sensor"
	VocSensor                SensorType = "voc_sensor"
	ParticleSensor           SensorType = "particle_sensor"
	BarometricPressureSensor SensorType = "barometric_pressure_sensor"
	LightSensor              SensorType = "light_sensor"
	OtherSensor              SensorType = "other"
)

var sensorTypes = map[SensorType]struct{}{
	TemperatureSensor:        {},
	HumiditySensor:           {},
	DewPointSensor:           {},
	Co2Sensor:                {},
	NoxSensor:                {},
	VocSensor:                {},
	ParticleSensor:           {},
	BarometricPressureSensor: {},
	LightSensor:              {},
	OtherSensor:              {},
}

// Valid reports whether t is one of the known sensor types.
func (t SensorType) Valid() bool {
	_, ok := sensorTypes[t]
	return ok
}

// SensorStatus is the full state of a sensor as exposed by the status and
// listing endpoints. Pointer fields tagged omitempty are optional and left out
// of the payload when unknown; ValueUnit and the last measurement pair are
// always present and rendered as null when unknown.
type SensorStatus struct {
	ID           string     `json:"id"`
	Type         SensorType `json:"type"`
	Name         *string    `json:"name,omitempty"`
	Localization *string    `json:"localization,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Active       bool       `json:"active"`
	BatteryLife  *float64   `json:"batteryLife,omitempty"` // fraction in [0,1]
	Wireless     *bool      `json:"wireless,omitempty"`
	ValueUnit    *string    `json:"valueUnit"`
	MinSafeValue *float64   `json:"minSafeValue,omitempty"`
	MaxSafeValue *float64   `json:"maxSafeValue,omitempty"`

	LastMeasurementDate  *Timestamp `json:"lastMeasurementDate"`
	LastMeasurementValue *float64   `json:"lastMeasurementValue"`
	LastMeasurementRssi  *int       `json:"lastMeasurementRssi,omitempty"`
	NextMeasurementDate  *Timestamp `json:"nextMeasurementDate,omitempty"`
}

// ProjectSensors is the payload of GET /sensors.
type ProjectSensors struct {
	ProjectID   string         `json:"projectId"`
	ProjectName *string        `json:"projectName,omitempty"`
	Data        []SensorStatus `json:"data"`
}

// Ptr returns a pointer to v. Handy for filling optional fields.
func Ptr[T any](v T) *T {
	return &v
}
