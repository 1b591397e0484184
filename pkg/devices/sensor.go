package devices

import (
	"context"
	"math/rand/v2"
	"time"
)

var _ EnvSensor = (*SimSensor)(nil)

// SimSensor produces a slow random walk around indoor conditions.
type SimSensor struct {
	seed uint64
	rng  *rand.Rand
	env  Environment
}

func NewSimSensor(seed uint64) *SimSensor {
	return &SimSensor{seed: seed}
}

func (s *SimSensor) Name() string {
	return SensorName
}

func (s *SimSensor) Init(context.Context) error {
	s.rng = rand.New(rand.NewPCG(s.seed, s.seed^0x9E3779B97F4A7C15))
	s.env = Environment{Temperature: 22, Humidity: 45, Pressure: 1013.25}

	return nil
}

func (s *SimSensor) Read() (Environment, error) {
	if s.rng == nil {
		if err := s.Init(context.Background()); err != nil {
			return Environment{}, err
		}
	}
	s.env.Temperature = clamp(s.env.Temperature+s.step(0.1), -10, 50)
	s.env.Humidity = clamp(s.env.Humidity+s.step(0.5), 0, 100)
	s.env.Pressure = clamp(s.env.Pressure+s.step(0.2), 950, 1060)

	return s.env, nil
}

func (s *SimSensor) step(scale float32) float32 {
	return (s.rng.Float32()*2 - 1) * scale
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}

var _ Clock = SystemClock{}

type SystemClock struct{}

func (SystemClock) Name() string {
	return ClockName
}

func (SystemClock) Init(context.Context) error {
	return nil
}

func (SystemClock) Now() time.Time {
	return time.Now()
}
