package application

import (
	"context"

	"github.com/wms-platform/scan-console/internal/domain"
)

// ScanResolver resolves a barcode against the backend without committing
type ScanResolver interface {
	ResolveScan(ctx context.Context, req domain.ScanRequest) (domain.ScanResponse, error)
}

// PickTaskGateway reads and writes server-owned pick tasks
type PickTaskGateway interface {
	GetPickTask(ctx context.Context, taskID int) (*domain.PickTask, error)
	ScanPickTask(ctx context.Context, taskID int, payload domain.PickTaskScanPayload) (*domain.PickTask, error)
	CommitPickTask(ctx context.Context, taskID int, payload domain.PickTaskCommitPayload) (*domain.PickTaskCommitResult, error)
}

// ItemCatalog looks up item master data
type ItemCatalog interface {
	GetItemMeta(ctx context.Context, itemID int) (*domain.ItemMeta, error)
}
