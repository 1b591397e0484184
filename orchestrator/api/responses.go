package api

import (
	"net/http"

	"github.com/absmach/sampler/orchestrator"
	"github.com/absmach/sampler/pkg/api"
	"github.com/absmach/sampler/pkg/datalog"
	"github.com/absmach/sampler/pkg/protocol"
)

var (
	_ api.Response = (*statusResponse)(nil)
	_ api.Response = (*historyResponse)(nil)
	_ api.Response = (*nodesResponse)(nil)
	_ api.Response = (*paramsResponse)(nil)
	_ api.Response = (*batchResponse)(nil)
	_ api.Response = (*stopResponse)(nil)
	_ api.Response = (*listRoundsResponse)(nil)
)

type statusResponse struct {
	orchestrator.Status
}

func (s statusResponse) Code() int {
	return http.StatusOK
}

func (s statusResponse) Headers() map[string]string {
	return map[string]string{}
}

func (s statusResponse) Empty() bool {
	return false
}

type historyResponse struct {
	orchestrator.HistoryPage
}

func (h historyResponse) Code() int {
	return http.StatusOK
}

func (h historyResponse) Headers() map[string]string {
	return map[string]string{}
}

func (h historyResponse) Empty() bool {
	return false
}

type nodesResponse struct {
	Nodes []orchestrator.Node `json:"nodes"`
}

func (n nodesResponse) Code() int {
	return http.StatusOK
}

func (n nodesResponse) Headers() map[string]string {
	return map[string]string{}
}

func (n nodesResponse) Empty() bool {
	return false
}

type paramsResponse struct {
	protocol.Params
}

func (p paramsResponse) Code() int {
	return http.StatusOK
}

func (p paramsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (p paramsResponse) Empty() bool {
	return false
}

type batchResponse struct {
	orchestrator.BatchInfo
}

func (b batchResponse) Code() int {
	return http.StatusCreated
}

func (b batchResponse) Headers() map[string]string {
	return map[string]string{
		"Location": "/status",
	}
}

func (b batchResponse) Empty() bool {
	return false
}

type stopResponse struct{}

func (s stopResponse) Code() int {
	return http.StatusNoContent
}

func (s stopResponse) Headers() map[string]string {
	return map[string]string{}
}

func (s stopResponse) Empty() bool {
	return true
}

type listRoundsResponse struct {
	Offset uint64        `json:"offset"`
	Limit  uint64        `json:"limit"`
	Total  uint64        `json:"total"`
	Rounds []datalog.Row `json:"rounds"`
}

func (l listRoundsResponse) Code() int {
	return http.StatusOK
}

func (l listRoundsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listRoundsResponse) Empty() bool {
	return false
}
