package sensor_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/sensor_provider/internal/model"
	"github.com/LeonardoBeccarini/sensor_provider/internal/model/messages"
)

const (
	rssiMin = -90
	rssiMax = -40
)

type GeneratorConfig struct {
	Min  float64
	Max  float64
	Step float64 // largest change between two readings

	// BatteryDrain is subtracted from the battery level on every reading.
	BatteryDrain float64
	// NullRate is the probability of a reading without a value.
	NullRate float64
}

// DataGenerator produces readings following a bounded random walk.
type DataGenerator struct {
	mu      sync.Mutex
	cfg     GeneratorConfig
	rnd     *rand.Rand
	now     func() time.Time
	value   float64
	battery float64
}

func NewDataGenerator(cfg GeneratorConfig, seed int64) *DataGenerator {
	if cfg.Max < cfg.Min {
		cfg.Min, cfg.Max = cfg.Max, cfg.Min
	}
	if cfg.Step <= 0 {
		cfg.Step = (cfg.Max - cfg.Min) / 20
	}
	return &DataGenerator{
		cfg:     cfg,
		rnd:     rand.New(rand.NewSource(seed)),
		now:     time.Now,
		value:   (cfg.Min + cfg.Max) / 2,
		battery: 1,
	}
}

func (g *DataGenerator) WithClock(now func() time.Time) *DataGenerator {
	g.now = now
	return g
}

// Next advances the walk and returns a reading for sensorID. The next
// measurement is announced interval from now.
func (g *DataGenerator) Next(sensorID string, interval time.Duration) messages.SensorReading {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.value += (g.rnd.Float64()*2 - 1) * g.cfg.Step
	g.value = math.Max(g.cfg.Min, math.Min(g.cfg.Max, g.value))
	g.battery = math.Max(0, g.battery-g.cfg.BatteryDrain)

	now := model.NewTimestamp(g.now())
	next := model.NewTimestamp(now.Add(interval))
	reading := messages.SensorReading{
		SensorID:            sensorID,
		Date:                &now,
		Rssi:                model.Ptr(rssiMin + g.rnd.Intn(rssiMax-rssiMin+1)),
		BatteryLife:         model.Ptr(math.Round(g.battery*1000) / 1000),
		NextMeasurementDate: &next,
	}
	if g.rnd.Float64() >= g.cfg.NullRate {
		reading.Value = model.Ptr(math.Round(g.value*100) / 100)
	}
	return reading
}
