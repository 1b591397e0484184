package devices

import (
	"context"
	"fmt"
	"log/slog"
)

var _ Display = (*LogDisplay)(nil)

// LogDisplay renders round summaries as structured log records.
type LogDisplay struct {
	logger *slog.Logger
}

func NewLogDisplay(logger *slog.Logger) *LogDisplay {
	return &LogDisplay{logger: logger}
}

func (d *LogDisplay) Name() string {
	return DisplayName
}

func (d *LogDisplay) Init(context.Context) error {
	return nil
}

func (d *LogDisplay) Show(s Summary) error {
	d.logger.Info("round summary",
		slog.Uint64("round", uint64(s.Round)),
		slog.String("nodes", fmt.Sprintf("%d/%d", s.Active, s.Total)),
		slog.String("boundary", fmt.Sprintf("%02X", s.Boundary)),
		slog.String("derived", fmt.Sprintf("%02X", s.Derived)),
		slog.Float64("ratio", float64(s.Ratio)),
		slog.Uint64("loss", uint64(s.Loss)),
		slog.Float64("noise", float64(s.Noise)),
		slog.Bool("batch", s.Batch),
		slog.Group("env",
			slog.Float64("temperature", float64(s.Env.Temperature)),
			slog.Float64("humidity", float64(s.Env.Humidity)),
			slog.Float64("pressure", float64(s.Env.Pressure)),
		),
	)

	return nil
}
