package domain

import "strings"

// NoExpiryBatchCode is the bucket batch code for items that are not tracked
// by batch, so downstream accounting always has a batch key.
const NoExpiryBatchCode = "NOEXP"

// BatchViolation explains why a scan may not proceed
type BatchViolation string

const (
	BatchViolationNone     BatchViolation = ""
	BatchViolationRequired BatchViolation = "batch required but absent"
)

// ItemMeta is the subset of item master data the batch policy needs.
type ItemMeta struct {
	ItemID        int    `json:"id"`
	Name          string `json:"name,omitempty"`
	SKU           string `json:"sku,omitempty"`
	RequiresBatch *bool  `json:"requires_batch,omitempty"`
	HasShelfLife  *bool  `json:"has_shelf_life,omitempty"`
}

// BatchTracked reports whether the item must be scanned with a real batch.
// An explicit requires_batch flag wins over has_shelf_life.
func (m ItemMeta) BatchTracked() bool {
	if m.RequiresBatch != nil {
		return *m.RequiresBatch
	}
	if m.HasShelfLife != nil {
		return *m.HasShelfLife
	}
	return false
}

// BatchDecision is the outcome of ResolveBatchPolicy
type BatchDecision struct {
	Proceed   bool           `json:"proceed"`
	BatchCode string         `json:"batch_code,omitempty"`
	Violation BatchViolation `json:"violation,omitempty"`
}

// ResolveBatchPolicy picks the batch code a scan is written with. The decoded
// batch wins over the operator override. Items that are not batch tracked
// fall back to NoExpiryBatchCode; batch tracked items with no batch at all
// are refused.
func ResolveBatchPolicy(meta ItemMeta, decodedBatch, overrideBatch string) BatchDecision {
	effective := strings.TrimSpace(decodedBatch)
	if effective == "" {
		effective = strings.TrimSpace(overrideBatch)
	}

	if meta.BatchTracked() {
		if effective == "" {
			return BatchDecision{Proceed: false, Violation: BatchViolationRequired}
		}
		return BatchDecision{Proceed: true, BatchCode: effective}
	}

	if effective == "" {
		effective = NoExpiryBatchCode
	}
	return BatchDecision{Proceed: true, BatchCode: effective}
}
