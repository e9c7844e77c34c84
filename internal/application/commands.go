package application

// ProbeCommand asks the resolver what a barcode means
type ProbeCommand struct {
	Mode        string
	Barcode     string
	WarehouseID int
	Qty         *int
	Ctx         map[string]any
}

// SubmitPickScanCommand records one scan against a pick task
type SubmitPickScanCommand struct {
	TaskID        int
	Barcode       string
	Qty           *int
	BatchOverride string
}

// CommitPickTaskCommand commits a pick task after the operator has typed
// the confirmation code
type CommitPickTaskCommand struct {
	TaskID           int
	ConfirmationCode string
	Platform         string
	ShopID           string
	TraceID          string
	AllowDiff        bool
}

// GetPickTaskDiffQuery asks for the reconciliation of a task
type GetPickTaskDiffQuery struct {
	TaskID int
}

// GetConfirmationCodeQuery asks for the code printed on a pick ticket
type GetConfirmationCodeQuery struct {
	TaskID int
}
