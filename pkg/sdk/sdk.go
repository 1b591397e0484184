package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const CTJSON string = "application/json"

var ErrUnexpectedCode = errors.New("unexpected response code")

type PageMetadata struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type SDK interface {
	// Status returns the current round, parameters, batch and subsystem
	// state of the orchestrator.
	//
	// example:
	//  st, _ := sdk.Status()
	//  fmt.Println(st.Round.Number, st.Last.Ratio)
	Status() (Status, error)

	// History returns the recent ratio history, oldest first.
	//
	// example:
	//  h, _ := sdk.History()
	//  fmt.Println(h.Mean)
	History() (History, error)

	// Nodes lists the observation table.
	//
	// example:
	//  nodes, _ := sdk.Nodes()
	//  fmt.Println(nodes)
	Nodes() ([]Node, error)

	// Rounds lists persisted rounds, newest first.
	//
	// example:
	//  page, _ := sdk.Rounds(0, 10)
	//  fmt.Println(page)
	Rounds(offset, limit uint64) (RoundPage, error)

	// SetParams updates the sampling parameters. Unset fields keep their
	// current value; out-of-range values are clamped.
	//
	// example:
	//  noise := 0.3
	//  p, _ := sdk.SetParams(sdk.ParamsRequest{Noise: &noise})
	//  fmt.Println(p)
	SetParams(req ParamsRequest) (Params, error)

	// StartBatch arms a sample batch.
	//
	// example:
	//  b, _ := sdk.StartBatch(sdk.BatchRequest{Count: 50})
	//  fmt.Println(b.Run)
	StartBatch(req BatchRequest) (Batch, error)

	// StopBatch stops the active batch.
	//
	// example:
	//  _ = sdk.StopBatch()
	StopBatch() error
}

type samplerSDK struct {
	orchestratorURL string
	client          *http.Client
}

type Config struct {
	OrchestratorURL string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &samplerSDK{
		orchestratorURL: cfg.OrchestratorURL,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

func (sdk *samplerSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		var e struct {
			Err string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Err != "" {
			return []byte{}, fmt.Errorf("%w %d: %s", ErrUnexpectedCode, resp.StatusCode, e.Err)
		}

		return []byte{}, fmt.Errorf("%w: %d", ErrUnexpectedCode, resp.StatusCode)
	}

	return body, nil
}
