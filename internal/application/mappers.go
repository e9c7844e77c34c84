package application

import "github.com/wms-platform/scan-console/internal/domain"

// ToPickTaskDiffDTO converts a diff summary to PickTaskDiffDTO
func ToPickTaskDiffDTO(summary domain.PickTaskDiffSummary) *PickTaskDiffDTO {
	return &PickTaskDiffDTO{
		TaskID: summary.TaskID,
		Clean:  summary.Clean(),
		Counts: diffCounts(summary),
		Diff:   summary,
	}
}

// diffCounts flattens per-status counts; every status is present
func diffCounts(summary domain.PickTaskDiffSummary) map[string]int {
	counts := map[string]int{
		string(domain.DiffStatusOK):    0,
		string(domain.DiffStatusUnder): 0,
		string(domain.DiffStatusOver):  0,
	}
	for status, n := range summary.CountByStatus() {
		counts[string(status)] = n
	}
	return counts
}

// ToConfirmationCodeDTO derives the expected code for a task
func ToConfirmationCodeDTO(task *domain.PickTask) *ConfirmationCodeDTO {
	if task == nil {
		return nil
	}
	return &ConfirmationCodeDTO{
		TaskID: task.ID,
		Ref:    task.RefString(),
		Code:   domain.TaskConfirmationCode(*task),
	}
}
