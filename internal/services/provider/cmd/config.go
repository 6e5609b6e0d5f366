package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devTokenSecret = "sensor-provider-dev-secret"

type Config struct {
	Port            string
	LogLevel        string
	DBPath          string
	SeedExampleData bool

	TokenSecret string
	TokenIssuer string
	TokenTTL    time.Duration

	StoreTimeout time.Duration
	MaxRange     time.Duration
	MaxPoints    int

	MeasurementBackend string // sqlite | influx
	InfluxURL          string
	InfluxToken        string
	InfluxOrg          string
	InfluxBucket       string
	InfluxMeasurement  string

	BreakerFailures int
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration

	MQTTEnabled  bool
	MQTTHost     string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string
	MQTTTopic    string
	DedupTTL     time.Duration
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvBool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

func getenvDuration(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			return dur
		}
	}
	return d
}

func getenvMillis(k string, d int) time.Duration {
	return time.Duration(getenvInt(k, d)) * time.Millisecond
}

// loadConfig reads the environment after loading an optional .env file.
func loadConfig() Config {
	_ = godotenv.Load()

	return Config{
		Port:            getenv("PORT", "4000"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		DBPath:          getenv("DB_PATH", "./data/sensor-provider.db"),
		SeedExampleData: getenvBool("SEED_EXAMPLE_DATA", true),

		TokenSecret: getenv("TOKEN_SECRET", devTokenSecret),
		TokenIssuer: getenv("TOKEN_ISSUER", "sensor-provider"),
		TokenTTL:    getenvDuration("TOKEN_TTL", time.Hour),

		StoreTimeout: getenvMillis("STORE_TIMEOUT_MS", 3000),
		MaxRange:     getenvDuration("MAX_MEASUREMENT_RANGE", 744*time.Hour),
		MaxPoints:    getenvInt("MAX_MEASUREMENT_POINTS", 10000),

		MeasurementBackend: strings.ToLower(getenv("MEASUREMENT_BACKEND", "sqlite")),
		InfluxURL:          getenv("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:        getenv("INFLUX_TOKEN", ""),
		InfluxOrg:          getenv("INFLUX_ORG", "sensors"),
		InfluxBucket:       getenv("INFLUX_BUCKET", "measurements"),
		InfluxMeasurement:  getenv("INFLUX_MEASUREMENT", "sensor_measurement"),

		BreakerFailures: getenvInt("BREAKER_FAILURES", 5),
		BreakerOpenFor:  getenvMillis("BREAKER_OPEN_MS", 10000),
		BreakerInterval: getenvMillis("BREAKER_INTERVAL_MS", 60000),

		MQTTEnabled:  getenvBool("MQTT_ENABLED", false),
		MQTTHost:     getenv("MQTT_HOST", "localhost"),
		MQTTPort:     getenvInt("MQTT_PORT", 1883),
		MQTTUser:     getenv("MQTT_USER", "guest"),
		MQTTPassword: getenv("MQTT_PASSWORD", "guest"),
		MQTTClientID: getenv("MQTT_CLIENT_ID", "sensor-provider"),
		MQTTTopic:    getenv("MQTT_TOPIC", "sensors/+/measurements"),
		DedupTTL:     getenvDuration("DEDUP_TTL", 10*time.Minute),
	}
}
