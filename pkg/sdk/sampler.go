package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	statusEndpoint  = "/status"
	historyEndpoint = "/history"
	nodesEndpoint   = "/nodes"
	roundsEndpoint  = "/rounds"
	paramsEndpoint  = "/params"
	batchEndpoint   = "/batch"
)

type Params struct {
	Noise    float32 `json:"noise"`
	Bias     int8    `json:"bias"`
	Coupling uint8   `json:"coupling"`
	Mode     uint8   `json:"mode"`
}

type ParamsRequest struct {
	Noise    *float64 `json:"noise,omitempty"`
	Bias     *int     `json:"bias,omitempty"`
	Coupling *int     `json:"coupling,omitempty"`
	Mode     *int     `json:"mode,omitempty"`
}

type BatchRequest struct {
	Count  int `json:"count,omitempty"`
	Stride int `json:"stride,omitempty"`
	BurnIn int `json:"burn_in,omitempty"`
}

type Batch struct {
	Run    uint32 `json:"run"`
	Tick0  uint32 `json:"tick0"`
	Count  uint16 `json:"count"`
	Stride uint16 `json:"stride"`
	BurnIn uint16 `json:"burn_in"`
}

type Round struct {
	Number     uint32 `json:"number"`
	Cursor     uint8  `json:"cursor"`
	Polled     uint8  `json:"polled"`
	InProgress bool   `json:"in_progress"`
}

type Result struct {
	Boundary uint8   `json:"boundary"`
	Derived  uint8   `json:"derived"`
	Ratio    float32 `json:"ratio"`
}

type BatchStatus struct {
	Active    bool   `json:"active"`
	Run       uint32 `json:"run"`
	Remaining uint16 `json:"remaining"`
	Stride    uint16 `json:"stride"`
	BurnIn    uint16 `json:"burn_in"`
	Emitted   uint32 `json:"emitted"`
	Stopping  bool   `json:"stopping"`
}

type Counters struct {
	Rounds       uint64 `json:"rounds"`
	BusErrors    uint64 `json:"bus_errors"`
	DecodeErrors uint64 `json:"decode_errors"`
	EmptyReads   uint64 `json:"empty_reads"`
	StaleReads   uint64 `json:"stale_reads"`
	Broadcasts   uint64 `json:"broadcast_errors"`
}

type Subsystem struct {
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Attempts    int       `json:"attempts"`
	LastAttempt time.Time `json:"last_attempt,omitzero"`
}

type Status struct {
	Round      Round       `json:"round"`
	Params     Params      `json:"params"`
	Last       Result      `json:"last"`
	Active     int         `json:"active"`
	Total      int         `json:"total"`
	MeanRatio  float32     `json:"mean_ratio"`
	Batch      BatchStatus `json:"batch"`
	Counters   Counters    `json:"counters"`
	Subsystems []Subsystem `json:"subsystems"`
}

type History struct {
	Capacity int       `json:"capacity"`
	Ratios   []float32 `json:"ratios"`
	Mean     float32   `json:"mean"`
}

type Observation struct {
	Round      uint32    `json:"round"`
	Bitmask    uint16    `json:"bitmask"`
	Loss       uint16    `json:"loss"`
	NoiseByte  uint8     `json:"noise"`
	Source     uint8     `json:"source"`
	Seed       uint32    `json:"seed"`
	Valid      bool      `json:"valid"`
	ReceivedAt time.Time `json:"received_at,omitzero"`
	Format     uint8     `json:"format"`
}

type Node struct {
	Index       int         `json:"index"`
	Address     uint8       `json:"address"`
	Observation Observation `json:"observation"`
}

type RoundRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Round       uint32    `json:"round"`
	Active      int       `json:"active"`
	Boundary    uint8     `json:"boundary"`
	Derived     uint8     `json:"derived"`
	Ratio       float32   `json:"ratio"`
	Loss        uint32    `json:"loss"`
	AvgNoise    float32   `json:"avg_noise"`
	Temperature float32   `json:"temperature"`
	Humidity    float32   `json:"humidity"`
	Pressure    float32   `json:"pressure"`
	Noise       float32   `json:"noise"`
	Bias        int8      `json:"bias"`
	Coupling    uint8     `json:"coupling"`
	Mode        uint8     `json:"mode"`
}

type RoundPage struct {
	Offset uint64        `json:"offset"`
	Limit  uint64        `json:"limit"`
	Total  uint64        `json:"total"`
	Rounds []RoundRecord `json:"rounds"`
}

func (sdk *samplerSDK) Status() (Status, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.orchestratorURL+statusEndpoint, nil, http.StatusOK)
	if err != nil {
		return Status{}, err
	}

	var st Status
	if err := json.Unmarshal(body, &st); err != nil {
		return Status{}, err
	}

	return st, nil
}

func (sdk *samplerSDK) History() (History, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.orchestratorURL+historyEndpoint, nil, http.StatusOK)
	if err != nil {
		return History{}, err
	}

	var h History
	if err := json.Unmarshal(body, &h); err != nil {
		return History{}, err
	}

	return h, nil
}

func (sdk *samplerSDK) Nodes() ([]Node, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.orchestratorURL+nodesEndpoint, nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var page struct {
		Nodes []Node `json:"nodes"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, err
	}

	return page.Nodes, nil
}

func (sdk *samplerSDK) Rounds(offset, limit uint64) (RoundPage, error) {
	queries := make([]string, 0)
	if offset > 0 {
		queries = append(queries, fmt.Sprintf("offset=%d", offset))
	}
	if limit > 0 {
		queries = append(queries, fmt.Sprintf("limit=%d", limit))
	}
	query := ""
	if len(queries) > 0 {
		query = "?" + strings.Join(queries, "&")
	}

	body, err := sdk.processRequest(http.MethodGet, sdk.orchestratorURL+roundsEndpoint+query, nil, http.StatusOK)
	if err != nil {
		return RoundPage{}, err
	}

	var page RoundPage
	if err := json.Unmarshal(body, &page); err != nil {
		return RoundPage{}, err
	}

	return page, nil
}

func (sdk *samplerSDK) SetParams(req ParamsRequest) (Params, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return Params{}, err
	}

	body, err := sdk.processRequest(http.MethodPut, sdk.orchestratorURL+paramsEndpoint, data, http.StatusOK)
	if err != nil {
		return Params{}, err
	}

	var p Params
	if err := json.Unmarshal(body, &p); err != nil {
		return Params{}, err
	}

	return p, nil
}

func (sdk *samplerSDK) StartBatch(req BatchRequest) (Batch, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return Batch{}, err
	}

	body, err := sdk.processRequest(http.MethodPost, sdk.orchestratorURL+batchEndpoint, data, http.StatusCreated)
	if err != nil {
		return Batch{}, err
	}

	var b Batch
	if err := json.Unmarshal(body, &b); err != nil {
		return Batch{}, err
	}

	return b, nil
}

func (sdk *samplerSDK) StopBatch() error {
	_, err := sdk.processRequest(http.MethodPost, sdk.orchestratorURL+batchEndpoint+"/stop", nil, http.StatusNoContent)

	return err
}
