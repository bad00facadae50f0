package server

import "github.com/tarungka/wireflow/internal/metrics"

type ResponseModel struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// StatusModel is the body of GET /status.
type StatusModel struct {
	Build   string                `json:"build"`
	RunID   string                `json:"run_id,omitempty"`
	Totals  metrics.WorkerStats   `json:"totals"`
	Workers []metrics.WorkerStats `json:"workers"`
}
