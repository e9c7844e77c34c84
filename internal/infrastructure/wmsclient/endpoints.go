package wmsclient

import (
	"context"
	"fmt"

	"github.com/wms-platform/scan-console/internal/domain"
)

// ResolveScan posts a resolution request to /scan. Used with probe=true for
// the non-committing lookup.
func (c *Client) ResolveScan(ctx context.Context, req domain.ScanRequest) (domain.ScanResponse, error) {
	var resp domain.ScanResponse
	if err := c.post(ctx, "ResolveScan", "/scan", req, &resp); err != nil {
		return domain.ScanResponse{}, toAppError("scan", "ResolveScan", err)
	}
	if resp.Evidence == nil {
		resp.Evidence = []any{}
	}
	return resp, nil
}

// GetPickTask fetches the current task snapshot
func (c *Client) GetPickTask(ctx context.Context, taskID int) (*domain.PickTask, error) {
	var task domain.PickTask
	if err := c.get(ctx, "GetPickTask", fmt.Sprintf("/pick-tasks/%d", taskID), &task); err != nil {
		return nil, toAppError("pick task", "GetPickTask", err)
	}
	return &task, nil
}

// ScanPickTask writes one scan to the task and returns the updated snapshot
func (c *Client) ScanPickTask(ctx context.Context, taskID int, payload domain.PickTaskScanPayload) (*domain.PickTask, error) {
	var task domain.PickTask
	if err := c.post(ctx, "ScanPickTask", fmt.Sprintf("/pick-tasks/%d/scan", taskID), payload, &task); err != nil {
		return nil, toAppError("pick task", "ScanPickTask", err)
	}
	return &task, nil
}

// CommitPickTask commits the task outbound
func (c *Client) CommitPickTask(ctx context.Context, taskID int, payload domain.PickTaskCommitPayload) (*domain.PickTaskCommitResult, error) {
	var result domain.PickTaskCommitResult
	if err := c.post(ctx, "CommitPickTask", fmt.Sprintf("/pick-tasks/%d/commit", taskID), payload, &result); err != nil {
		return nil, toAppError("pick task", "CommitPickTask", err)
	}
	return &result, nil
}

// GetItemMeta fetches the item master fields used by the batch policy
func (c *Client) GetItemMeta(ctx context.Context, itemID int) (*domain.ItemMeta, error) {
	var meta domain.ItemMeta
	if err := c.get(ctx, "GetItemMeta", fmt.Sprintf("/items/%d", itemID), &meta); err != nil {
		return nil, toAppError("item", "GetItemMeta", err)
	}
	if meta.ItemID == 0 {
		meta.ItemID = itemID
	}
	return &meta, nil
}
