package application

import "github.com/wms-platform/scan-console/internal/domain"

// PickScanResultDTO is the outcome of an accepted pick scan
type PickScanResultDTO struct {
	TaskID   int                        `json:"taskId"`
	Qty      int                        `json:"qty"`
	Probe    domain.ScanStandardResult  `json:"probe"`
	Decision domain.BatchDecision       `json:"decision"`
	Task     *domain.PickTask           `json:"task"`
	Diff     domain.PickTaskDiffSummary `json:"diff"`
	Clean    bool                       `json:"clean"`
}

// PickTaskDiffDTO represents a task reconciliation in responses
type PickTaskDiffDTO struct {
	TaskID int                        `json:"taskId"`
	Clean  bool                       `json:"clean"`
	Counts map[string]int             `json:"counts"`
	Diff   domain.PickTaskDiffSummary `json:"diff"`
}

// ConfirmationCodeDTO is the code an operator must enter to commit a task
type ConfirmationCodeDTO struct {
	TaskID int    `json:"taskId"`
	Ref    string `json:"ref,omitempty"`
	Code   string `json:"code"`
}

// CommitResultDTO wraps the backend commit outcome
type CommitResultDTO struct {
	TaskID  int                          `json:"taskId"`
	TraceID string                       `json:"traceId"`
	Result  *domain.PickTaskCommitResult `json:"result"`
}
