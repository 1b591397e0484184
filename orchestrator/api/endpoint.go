package api

import (
	"context"
	"errors"

	"github.com/absmach/sampler/orchestrator"
	"github.com/absmach/sampler/pkg/api"
	"github.com/absmach/sampler/pkg/datalog"
	pkgerrors "github.com/absmach/sampler/pkg/errors"
	"github.com/absmach/sampler/pkg/protocol"
	"github.com/go-kit/kit/endpoint"
)

// run executes job on the orchestrator loop.
func run(ctx context.Context, exec orchestrator.Executor, job orchestrator.Job) error {
	err := exec.Exec(ctx, job)
	if errors.Is(err, orchestrator.ErrRunnerStopped) {
		return errors.Join(api.ErrUnavailable, err)
	}

	return err
}

func statusEndpoint(exec orchestrator.Executor) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(emptyReq)
		if !ok {
			return statusResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return statusResponse{}, errors.Join(api.ErrValidation, err)
		}

		var st orchestrator.Status
		if err := run(ctx, exec, func(ctx context.Context, svc orchestrator.Service) (err error) {
			st, err = svc.Status(ctx)

			return err
		}); err != nil {
			return statusResponse{}, err
		}

		return statusResponse{Status: st}, nil
	}
}

func historyEndpoint(exec orchestrator.Executor) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(emptyReq)
		if !ok {
			return historyResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return historyResponse{}, errors.Join(api.ErrValidation, err)
		}

		var page orchestrator.HistoryPage
		if err := run(ctx, exec, func(ctx context.Context, svc orchestrator.Service) (err error) {
			page, err = svc.History(ctx)

			return err
		}); err != nil {
			return historyResponse{}, err
		}

		return historyResponse{HistoryPage: page}, nil
	}
}

func nodesEndpoint(exec orchestrator.Executor) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(emptyReq)
		if !ok {
			return nodesResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return nodesResponse{}, errors.Join(api.ErrValidation, err)
		}

		var nodes []orchestrator.Node
		if err := run(ctx, exec, func(ctx context.Context, svc orchestrator.Service) (err error) {
			nodes, err = svc.Nodes(ctx)

			return err
		}); err != nil {
			return nodesResponse{}, err
		}

		return nodesResponse{Nodes: nodes}, nil
	}
}

func setParamsEndpoint(exec orchestrator.Executor) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(paramsReq)
		if !ok {
			return paramsResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return paramsResponse{}, errors.Join(api.ErrValidation, err)
		}

		var p protocol.Params
		if err := run(ctx, exec, func(ctx context.Context, svc orchestrator.Service) error {
			st, err := svc.Status(ctx)
			if err != nil {
				return err
			}
			noise, bias := float64(st.Params.Noise), int(st.Params.Bias)
			coupling, mode := int(st.Params.Coupling), int(st.Params.Mode)
			if req.Noise != nil {
				noise = *req.Noise
			}
			if req.Bias != nil {
				bias = *req.Bias
			}
			if req.Coupling != nil {
				coupling = *req.Coupling
			}
			if req.Mode != nil {
				mode = *req.Mode
			}
			p, err = svc.SetParams(ctx, noise, bias, coupling, mode)

			return err
		}); err != nil {
			return paramsResponse{}, err
		}

		return paramsResponse{Params: p}, nil
	}
}

func startBatchEndpoint(exec orchestrator.Executor) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(batchReq)
		if !ok {
			return batchResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return batchResponse{}, errors.Join(api.ErrValidation, err)
		}

		count, stride, burnIn := req.values()
		var info orchestrator.BatchInfo
		if err := run(ctx, exec, func(ctx context.Context, svc orchestrator.Service) (err error) {
			info, err = svc.GetSamples(ctx, count, stride, burnIn)

			return err
		}); err != nil {
			return batchResponse{}, err
		}

		return batchResponse{BatchInfo: info}, nil
	}
}

func stopBatchEndpoint(exec orchestrator.Executor) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		if _, ok := request.(emptyReq); !ok {
			return stopResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}

		if err := run(ctx, exec, func(ctx context.Context, svc orchestrator.Service) error {
			return svc.Stop(ctx)
		}); err != nil {
			return stopResponse{}, err
		}

		return stopResponse{}, nil
	}
}

func listRoundsEndpoint(lister datalog.Lister) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listRoundsReq)
		if !ok {
			return listRoundsResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listRoundsResponse{}, errors.Join(api.ErrValidation, err)
		}
		if lister == nil {
			return listRoundsResponse{}, pkgerrors.ErrNotFound
		}

		rows, total, err := lister.List(ctx, req.offset, req.limit)
		if err != nil {
			return listRoundsResponse{}, err
		}

		return listRoundsResponse{
			Offset: req.offset,
			Limit:  req.limit,
			Total:  total,
			Rounds: rows,
		}, nil
	}
}
