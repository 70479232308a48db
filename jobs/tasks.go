package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan sweeps the catalog for items below their minimum.
	TaskLowStockScan = "ledger:low-stock-scan"
)

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	AsOf time.Time `json:"as_of"`
}

// NewLowStockScanTask constructs an Asynq task for the low-stock sweep.
func NewLowStockScanTask(asOf time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}
