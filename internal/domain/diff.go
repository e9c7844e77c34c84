package domain

// PickTaskLine is one item row of a pick task snapshot. Quantities are
// maintained by the server; this package only reads them.
type PickTaskLine struct {
	ID          int     `json:"id"`
	TaskID      int     `json:"task_id"`
	OrderID     *int    `json:"order_id"`
	OrderLineID *int    `json:"order_line_id"`
	ItemID      int     `json:"item_id"`
	ReqQty      int     `json:"req_qty"`
	PickedQty   int     `json:"picked_qty"`
	BatchCode   *string `json:"batch_code"`
	Status      string  `json:"status"`
	Note        *string `json:"note"`
	CreatedAt   string  `json:"created_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

// PickTask is the server-owned task snapshot
type PickTask struct {
	ID          int            `json:"id"`
	WarehouseID int            `json:"warehouse_id"`
	Ref         *string        `json:"ref"`
	Source      *string        `json:"source"`
	Priority    int            `json:"priority"`
	Status      string         `json:"status"`
	AssignedTo  *string        `json:"assigned_to"`
	Note        *string        `json:"note"`
	CreatedAt   string         `json:"created_at,omitempty"`
	UpdatedAt   string         `json:"updated_at,omitempty"`
	Lines       []PickTaskLine `json:"lines"`
}

// RefString returns the task reference or "" when the task has none.
func (t PickTask) RefString() string {
	if t.Ref == nil {
		return ""
	}
	return *t.Ref
}

// DiffStatus classifies picked against required quantity
type DiffStatus string

const (
	DiffStatusOK    DiffStatus = "OK"
	DiffStatusUnder DiffStatus = "UNDER"
	DiffStatusOver  DiffStatus = "OVER"
)

// PickTaskDiffLine is the derived reconciliation of one line
type PickTaskDiffLine struct {
	ItemID    int        `json:"item_id"`
	ReqQty    int        `json:"req_qty"`
	PickedQty int        `json:"picked_qty"`
	Delta     int        `json:"delta"`
	Status    DiffStatus `json:"status"`
}

// PickTaskDiffSummary aggregates the per-line diff in input order.
type PickTaskDiffSummary struct {
	TaskID   int                `json:"task_id"`
	HasOver  bool               `json:"has_over"`
	HasUnder bool               `json:"has_under"`
	Lines    []PickTaskDiffLine `json:"lines"`
}

// Clean reports whether every line is exactly picked.
func (s PickTaskDiffSummary) Clean() bool {
	return !s.HasOver && !s.HasUnder
}

// CountByStatus tallies lines per status.
func (s PickTaskDiffSummary) CountByStatus() map[DiffStatus]int {
	counts := map[DiffStatus]int{
		DiffStatusOK:    0,
		DiffStatusUnder: 0,
		DiffStatusOver:  0,
	}
	for _, line := range s.Lines {
		counts[line.Status]++
	}
	return counts
}

// ClassifyDelta maps picked-minus-required to a status.
func ClassifyDelta(delta int) DiffStatus {
	switch {
	case delta < 0:
		return DiffStatusUnder
	case delta > 0:
		return DiffStatusOver
	default:
		return DiffStatusOK
	}
}

// ComputeDiff reconciles every line of a snapshot. Output order matches input.
func ComputeDiff(lines []PickTaskLine) PickTaskDiffSummary {
	summary := PickTaskDiffSummary{
		Lines: make([]PickTaskDiffLine, 0, len(lines)),
	}

	for _, line := range lines {
		delta := line.PickedQty - line.ReqQty
		status := ClassifyDelta(delta)

		switch status {
		case DiffStatusOver:
			summary.HasOver = true
		case DiffStatusUnder:
			summary.HasUnder = true
		case DiffStatusOK:
		}

		summary.Lines = append(summary.Lines, PickTaskDiffLine{
			ItemID:    line.ItemID,
			ReqQty:    line.ReqQty,
			PickedQty: line.PickedQty,
			Delta:     delta,
			Status:    status,
		})
	}
	return summary
}

// ComputeTaskDiff is ComputeDiff stamped with the task id.
func ComputeTaskDiff(task PickTask) PickTaskDiffSummary {
	summary := ComputeDiff(task.Lines)
	summary.TaskID = task.ID
	return summary
}
