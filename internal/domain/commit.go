package domain

import (
	"fmt"
	"time"
)

// PickTaskScanPayload is one line update sent to the task-scan endpoint.
type PickTaskScanPayload struct {
	ItemID    int     `json:"item_id"`
	Qty       int     `json:"qty"`
	BatchCode *string `json:"batch_code,omitempty"`
}

// PickTaskCommitPayload is sent to the task-commit endpoint only after the
// confirmation gate has passed.
type PickTaskCommitPayload struct {
	Platform  string  `json:"platform"`
	ShopID    string  `json:"shop_id"`
	TraceID   *string `json:"trace_id,omitempty"`
	AllowDiff bool    `json:"allow_diff"`
}

// PickTaskCommitResult is the backend's commit outcome
type PickTaskCommitResult struct {
	Status      string              `json:"status"`
	Idempotent  bool                `json:"idempotent,omitempty"`
	TraceID     *string             `json:"trace_id,omitempty"`
	CommittedAt *string             `json:"committed_at,omitempty"`
	TaskID      int                 `json:"task_id"`
	WarehouseID int                 `json:"warehouse_id"`
	Platform    string              `json:"platform"`
	ShopID      string              `json:"shop_id"`
	Ref         string              `json:"ref"`
	Diff        PickTaskDiffSummary `json:"diff"`
}

// CommitTraceID is the trace id used when the operator supplies none.
func CommitTraceID(taskID int, at time.Time) string {
	return fmt.Sprintf("picktask:%d:%d", taskID, at.UnixMilli())
}

// EffectiveScanQty picks the quantity written for one scan: the operator
// value, then the decoded value, then 1.
func EffectiveScanQty(operatorQty, decodedQty *int) int {
	if operatorQty != nil && *operatorQty > 0 {
		return *operatorQty
	}
	if decodedQty != nil && *decodedQty > 0 {
		return *decodedQty
	}
	return 1
}
