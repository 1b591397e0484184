package api

import (
	"github.com/absmach/sampler/orchestrator"
	"github.com/absmach/sampler/pkg/api"
	pkgerrors "github.com/absmach/sampler/pkg/errors"
)

type emptyReq struct{}

func (e *emptyReq) validate() error {
	return nil
}

// paramsReq leaves unset fields at their current value.
type paramsReq struct {
	Noise    *float64 `json:"noise,omitempty"`
	Bias     *int     `json:"bias,omitempty"`
	Coupling *int     `json:"coupling,omitempty"`
	Mode     *int     `json:"mode,omitempty"`
}

func (p *paramsReq) validate() error {
	if p.Noise == nil && p.Bias == nil && p.Coupling == nil && p.Mode == nil {
		return pkgerrors.ErrMalformedEntity
	}

	return nil
}

type batchReq struct {
	Count  *int `json:"count,omitempty"`
	Stride *int `json:"stride,omitempty"`
	BurnIn *int `json:"burn_in,omitempty"`
}

func (b *batchReq) validate() error {
	return nil
}

func (b *batchReq) values() (count, stride, burnIn int) {
	count, stride, burnIn = 100, orchestrator.MinStride, orchestrator.MinBurnIn
	if b.Count != nil {
		count = *b.Count
	}
	if b.Stride != nil {
		stride = *b.Stride
	}
	if b.BurnIn != nil {
		burnIn = *b.BurnIn
	}

	return count, stride, burnIn
}

type listRoundsReq struct {
	offset, limit uint64
}

func (l *listRoundsReq) validate() error {
	if l.limit == 0 || l.limit > api.MaxLimitSize {
		return api.ErrLimitSize
	}

	return nil
}
