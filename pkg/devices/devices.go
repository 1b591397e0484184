// Package devices holds the side-effect collaborators driven by the
// orchestrator at round close. Each collaborator is a supervisor.Subsystem
// so its failures are tracked instead of propagated.
package devices

import (
	"time"

	"github.com/absmach/sampler/pkg/supervisor"
)

const (
	DisplayName = "display"
	LEDName     = "status-led"
	SensorName  = "env-sensor"
	ClockName   = "clock"
	StorageName = "storage"
)

// Summary is what the display shows after each closed round.
type Summary struct {
	Round    uint32      `json:"round"`
	Active   int         `json:"active"`
	Total    int         `json:"total"`
	Boundary uint8       `json:"boundary"`
	Derived  uint8       `json:"derived"`
	Ratio    float32     `json:"ratio"`
	Loss     uint32      `json:"loss"`
	Noise    float32     `json:"noise"`
	Env      Environment `json:"env"`
	Batch    bool        `json:"batch"`
}

type Environment struct {
	Temperature float32 `json:"temperature"`
	Humidity    float32 `json:"humidity"`
	Pressure    float32 `json:"pressure"`
}

type Display interface {
	supervisor.Subsystem
	Show(s Summary) error
}

type StatusLED interface {
	supervisor.Subsystem
	Set(c Color) error
}

type EnvSensor interface {
	supervisor.Subsystem
	Read() (Environment, error)
}

type Clock interface {
	supervisor.Subsystem
	Now() time.Time
}
