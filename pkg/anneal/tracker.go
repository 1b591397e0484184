package anneal

import "strings"

type Sample struct {
	Tick  uint32  `json:"tick"`
	Score float64 `json:"score"`
	Bits  string  `json:"bits"`
}

// Point is the best score seen up to Tick.
type Point struct {
	Tick uint32  `json:"tick"`
	Best float64 `json:"best"`
}

// Tracker keeps every scored sample and the best one. Ties keep the first
// sample seen.
type Tracker struct {
	samples   []Sample
	evolution []Point
	best      Sample
	hasBest   bool
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Add records a sample and reports whether it is the new best.
func (t *Tracker) Add(tick uint32, bits []uint8, score float64) bool {
	s := Sample{Tick: tick, Score: score, Bits: BitString(bits)}
	t.samples = append(t.samples, s)

	improved := !t.hasBest || score > t.best.Score
	if improved {
		t.best, t.hasBest = s, true
	}
	t.evolution = append(t.evolution, Point{Tick: tick, Best: t.best.Score})

	return improved
}

func (t *Tracker) Best() (Sample, bool) {
	return t.best, t.hasBest
}

func (t *Tracker) Samples() []Sample {
	return t.samples
}

func (t *Tracker) Evolution() []Point {
	return t.evolution
}

func (t *Tracker) Scores() []float64 {
	scores := make([]float64, len(t.samples))
	for i, s := range t.samples {
		scores[i] = s.Score
	}

	return scores
}

// BitString renders bits as '0'/'1' characters in order.
func BitString(bits []uint8) string {
	var sb strings.Builder
	sb.Grow(len(bits))
	for _, b := range bits {
		if b != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}

	return sb.String()
}
