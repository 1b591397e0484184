// Package anneal holds the controller side of the sampling loop: the noise
// schedule, the max-cut objective and the best-sample tracker.
package anneal

import "math"

// DefaultThreshold is the smallest noise change worth sending to the
// orchestrator.
const DefaultThreshold = 0.02

// Schedule interpolates noise linearly from TempStart to TempEnd over the
// samples of a batch.
type Schedule struct {
	TempStart float64 `json:"temp_start" yaml:"temp_start"`
	TempEnd   float64 `json:"temp_end"   yaml:"temp_end"`
}

func (s Schedule) Noise(collected, total int) float64 {
	progress := 0.0
	if total > 0 {
		progress = clamp(float64(collected)/float64(total), 0, 1)
	}

	return clamp(s.TempStart+(s.TempEnd-s.TempStart)*progress, 0, 1)
}

// Pacer rate-limits schedule updates.
type Pacer struct {
	schedule  Schedule
	threshold float64
	last      float64
	sent      bool
}

func NewPacer(s Schedule, threshold float64) *Pacer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	return &Pacer{
		schedule:  s,
		threshold: threshold,
	}
}

// Next returns the noise to send, if it moved more than the threshold from
// the last value sent. The first call always yields a value.
func (p *Pacer) Next(collected, total int) (float64, bool) {
	v := p.schedule.Noise(collected, total)
	if p.sent && math.Abs(v-p.last) <= p.threshold {
		return 0, false
	}
	p.last, p.sent = v, true

	return v, true
}

// Last is the last value returned by Next.
func (p *Pacer) Last() float64 {
	return p.last
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}

	return math.Max(lo, math.Min(hi, v))
}
