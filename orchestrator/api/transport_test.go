package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/absmach/sampler/orchestrator"
	"github.com/absmach/sampler/orchestrator/api"
	"github.com/absmach/sampler/orchestrator/mocks"
	"github.com/absmach/sampler/pkg/datalog"
	"github.com/absmach/sampler/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type direct struct {
	svc orchestrator.Service
	err error
}

func (d direct) Exec(ctx context.Context, job orchestrator.Job) error {
	if d.err != nil {
		return d.err
	}

	return job(ctx, d.svc)
}

type rows []datalog.Row

func (r rows) List(_ context.Context, offset, limit uint64) ([]datalog.Row, uint64, error) {
	total := uint64(len(r))
	if offset >= total {
		return []datalog.Row{}, total, nil
	}

	return r[offset:min(offset+limit, total)], total, nil
}

type testRequest struct {
	method      string
	url         string
	contentType string
	body        string
}

func (tr testRequest) make(t *testing.T, ts *httptest.Server) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), tr.method, ts.URL+tr.url, strings.NewReader(tr.body))
	require.NoError(t, err)
	if tr.contentType != "" {
		req.Header.Set("Content-Type", tr.contentType)
	}
	res, err := ts.Client().Do(req)
	require.NoError(t, err)

	return res
}

func newServer(t *testing.T, exec orchestrator.Executor, lister datalog.Lister) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(api.MakeHandler(exec, lister, logger, "1.0.0", "test"))
	t.Cleanup(ts.Close)

	return ts
}

func TestStatusHistoryNodes(t *testing.T) {
	t.Parallel()

	svc := mocks.NewService(t)
	svc.On("Status", mock.Anything).Return(orchestrator.Status{
		Round:  orchestrator.RoundState{Number: 12},
		Active: 4,
		Total:  4,
	}, nil)
	svc.On("History", mock.Anything).Return(orchestrator.HistoryPage{Capacity: 64, Ratios: []float32{50, 100}, Mean: 75}, nil)
	svc.On("Nodes", mock.Anything).Return([]orchestrator.Node{
		{Index: 0, Address: 0x10, Observation: orchestrator.Observation{Round: 12, Bitmask: 3, Valid: true}},
	}, nil)
	ts := newServer(t, direct{svc: svc}, nil)

	res := testRequest{method: http.MethodGet, url: "/status"}.make(t, ts)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var st orchestrator.Status
	require.NoError(t, json.NewDecoder(res.Body).Decode(&st))
	assert.Equal(t, uint32(12), st.Round.Number)
	assert.Equal(t, 4, st.Active)

	res = testRequest{method: http.MethodGet, url: "/history"}.make(t, ts)
	defer res.Body.Close()
	var page orchestrator.HistoryPage
	require.NoError(t, json.NewDecoder(res.Body).Decode(&page))
	assert.Equal(t, []float32{50, 100}, page.Ratios)

	res = testRequest{method: http.MethodGet, url: "/nodes"}.make(t, ts)
	defer res.Body.Close()
	var nodes struct {
		Nodes []orchestrator.Node `json:"nodes"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&nodes))
	require.Len(t, nodes.Nodes, 1)
	assert.Equal(t, uint8(0x10), nodes.Nodes[0].Address)
	assert.True(t, nodes.Nodes[0].Valid)
}

func TestSetParams(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc        string
		body        string
		contentType string
		setup       func(svc *mocks.Service)
		status      int
		want        protocol.Params
	}{
		{
			desc:        "clamped",
			body:        `{"noise":5,"bias":999,"coupling":9999,"mode":1}`,
			contentType: "application/json",
			setup: func(svc *mocks.Service) {
				svc.On("Status", mock.Anything).Return(orchestrator.Status{}, nil)
				svc.On("SetParams", mock.Anything, 5.0, 999, 9999, 1).Return(protocol.ClampParams(5, 999, 9999, 1), nil)
			},
			status: http.StatusOK,
			want:   protocol.Params{Noise: 1, Bias: 127, Coupling: 255, Mode: 1},
		},
		{
			desc:        "partial keeps current",
			body:        `{"bias":-4}`,
			contentType: "application/json",
			setup: func(svc *mocks.Service) {
				svc.On("Status", mock.Anything).Return(orchestrator.Status{Params: protocol.Params{Coupling: 32, Mode: 2}}, nil)
				svc.On("SetParams", mock.Anything, 0.0, -4, 32, 2).Return(protocol.Params{Bias: -4, Coupling: 32, Mode: 2}, nil)
			},
			status: http.StatusOK,
			want:   protocol.Params{Bias: -4, Coupling: 32, Mode: 2},
		},
		{
			desc:        "empty body",
			body:        `{}`,
			contentType: "application/json",
			setup:       func(*mocks.Service) {},
			status:      http.StatusBadRequest,
		},
		{
			desc:        "wrong content type",
			body:        `{"bias":1}`,
			contentType: "text/plain",
			setup:       func(*mocks.Service) {},
			status:      http.StatusUnsupportedMediaType,
		},
		{
			desc:        "malformed json",
			body:        `{"bias":`,
			contentType: "application/json",
			setup:       func(*mocks.Service) {},
			status:      http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			svc := mocks.NewService(t)
			tc.setup(svc)
			ts := newServer(t, direct{svc: svc}, nil)

			res := testRequest{method: http.MethodPut, url: "/params", contentType: tc.contentType, body: tc.body}.make(t, ts)
			defer res.Body.Close()
			assert.Equal(t, tc.status, res.StatusCode)
			if tc.status != http.StatusOK {
				return
			}
			var got protocol.Params
			require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBatch(t *testing.T) {
	t.Parallel()

	svc := mocks.NewService(t)
	svc.On("GetSamples", mock.Anything, 100, 1, 0).Return(orchestrator.BatchInfo{Run: 1, Count: 100, Stride: 1}, nil).Once()
	svc.On("GetSamples", mock.Anything, 5, 2, 3).Return(orchestrator.BatchInfo{Run: 2, Tick0: 9, Count: 5, Stride: 2, BurnIn: 3}, nil).Once()
	svc.On("Stop", mock.Anything).Return(nil)
	ts := newServer(t, direct{svc: svc}, nil)

	res := testRequest{method: http.MethodPost, url: "/batch", contentType: "application/json"}.make(t, ts)
	defer res.Body.Close()
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	res = testRequest{
		method:      http.MethodPost,
		url:         "/batch",
		contentType: "application/json",
		body:        `{"count":5,"stride":2,"burn_in":3}`,
	}.make(t, ts)
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var info orchestrator.BatchInfo
	require.NoError(t, json.NewDecoder(res.Body).Decode(&info))
	assert.Equal(t, orchestrator.BatchInfo{Run: 2, Tick0: 9, Count: 5, Stride: 2, BurnIn: 3}, info)

	res = testRequest{method: http.MethodPost, url: "/batch/stop"}.make(t, ts)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}

func TestRunnerStopped(t *testing.T) {
	t.Parallel()

	ts := newServer(t, direct{err: orchestrator.ErrRunnerStopped}, nil)

	res := testRequest{method: http.MethodGet, url: "/status"}.make(t, ts)
	defer res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	ts = newServer(t, direct{err: errors.New("boom")}, nil)
	res = testRequest{method: http.MethodGet, url: "/nodes"}.make(t, ts)
	defer res.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

func TestListRounds(t *testing.T) {
	t.Parallel()

	var log rows
	for i := range 5 {
		log = append(log, datalog.Row{Timestamp: time.Unix(int64(i), 0).UTC(), Round: uint32(i + 1)})
	}
	ts := newServer(t, direct{}, log)

	cases := []struct {
		desc   string
		query  string
		status int
		rounds []uint32
		total  uint64
	}{
		{desc: "default page", query: "", status: http.StatusOK, rounds: []uint32{1, 2, 3, 4, 5}, total: 5},
		{desc: "offset and limit", query: "?offset=1&limit=2", status: http.StatusOK, rounds: []uint32{2, 3}, total: 5},
		{desc: "limit too large", query: "?limit=1000", status: http.StatusBadRequest},
		{desc: "bad offset", query: "?offset=x", status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			res := testRequest{method: http.MethodGet, url: "/rounds" + tc.query}.make(t, ts)
			defer res.Body.Close()
			require.Equal(t, tc.status, res.StatusCode)
			if tc.status != http.StatusOK {
				return
			}
			var page struct {
				Total  uint64        `json:"total"`
				Rounds []datalog.Row `json:"rounds"`
			}
			require.NoError(t, json.NewDecoder(res.Body).Decode(&page))
			assert.Equal(t, tc.total, page.Total)
			got := make([]uint32, 0, len(page.Rounds))
			for _, r := range page.Rounds {
				got = append(got, r.Round)
			}
			assert.Equal(t, tc.rounds, got, fmt.Sprintf("query %q", tc.query))
		})
	}
}

func TestListRoundsWithoutLog(t *testing.T) {
	t.Parallel()

	ts := newServer(t, direct{}, nil)
	res := testRequest{method: http.MethodGet, url: "/rounds"}.make(t, ts)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	ts := newServer(t, direct{}, nil)
	res := testRequest{method: http.MethodGet, url: "/health"}.make(t, ts)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = testRequest{method: http.MethodGet, url: "/metrics"}.make(t, ts)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
