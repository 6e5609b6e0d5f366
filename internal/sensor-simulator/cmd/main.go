package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/sensor_provider/internal/logger"
	sensorSimulator "github.com/LeonardoBeccarini/sensor_provider/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/sensor_provider/internal/store"
	"github.com/LeonardoBeccarini/sensor_provider/pkg/rabbitmq"
)

func main() {
	sensorID := flag.String("sensor-id", store.ExampleSensorID, "sensor to publish readings for")
	clientID := flag.String("client-id", "", "MQTT client ID (random when empty)")
	interval := flag.Duration("interval", 10*time.Second, "publish interval")
	minValue := flag.Float64("min", -8, "lowest simulated value")
	maxValue := flag.Float64("max", 20, "highest simulated value")
	step := flag.Float64("step", 0.5, "largest change between readings")
	drain := flag.Float64("battery-drain", 0.0005, "battery lost per reading")
	nullRate := flag.Float64("null-rate", 0.02, "probability of a reading without value")
	host := flag.String("host", "localhost", "MQTT broker host")
	port := flag.Int("port", 1883, "MQTT broker port")
	user := flag.String("user", "guest", "MQTT user")
	password := flag.String("password", "guest", "MQTT password")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	log, err := logger.New(*level)
	if err != nil {
		log = logger.GetInstance()
	}
	defer func() { _ = log.Sync() }()

	if *clientID == "" {
		*clientID = "sensor-sim-" + uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
		Host:     *host,
		Port:     *port,
		User:     *user,
		Password: *password,
		ClientID: *clientID,
	}, log)
	if err != nil {
		log.Error("mqtt connect", zap.Error(err))
		os.Exit(1)
	}

	generator := sensorSimulator.NewDataGenerator(sensorSimulator.GeneratorConfig{
		Min:          *minValue,
		Max:          *maxValue,
		Step:         *step,
		BatteryDrain: *drain,
		NullRate:     *nullRate,
	}, time.Now().UnixNano())
	sim := sensorSimulator.NewSensorSimulator(rabbitmq.NewPublisher(client, 1), generator, *sensorID, log)

	log.Info("simulating sensor", zap.String("sensor_id", *sensorID), zap.Duration("interval", *interval),
		zap.String("topic", sensorSimulator.Topic(*sensorID)))
	sim.Start(ctx, *interval)
}
