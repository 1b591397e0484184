package controller

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/absmach/sampler/pkg/anneal"
)

var csvHeader = []string{"tick", "score", "bits", "is_best"}

// Report summarises a finished session.
type Report struct {
	Hello      string            `json:"hello,omitempty"`
	Batch      map[string]string `json:"batch,omitempty"`
	Samples    []anneal.Sample   `json:"samples"`
	Evolution  []anneal.Point    `json:"evolution"`
	Best       anneal.Sample     `json:"best"`
	HasBest    bool              `json:"has_best"`
	MaxCut     float64           `json:"max_cut"`
	Efficiency float64           `json:"efficiency"`
	LastTick   uint32            `json:"last_tick"`
	Done       bool              `json:"done"`
	TimedOut   bool              `json:"timed_out"`
	Rejected   int               `json:"rejected"`
}

// WriteCSV exports every scored sample. is_best marks samples whose bit
// string equals the best one.
func (r Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range r.Samples {
		isBest := "0"
		if r.HasBest && s.Bits == r.Best.Bits {
			isBest = "1"
		}
		if err := cw.Write([]string{
			strconv.FormatUint(uint64(s.Tick), 10),
			strconv.FormatFloat(s.Score, 'f', -1, 64),
			s.Bits,
			isBest,
		}); err != nil {
			return err
		}
	}
	cw.Flush()

	return cw.Error()
}

func efficiency(best anneal.Sample, ok bool, maxCut float64) float64 {
	if !ok || maxCut <= 0 {
		return 0
	}

	return 100 * best.Score / maxCut
}
