package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errors
var (
	ErrEmptyBarcode   = errors.New("barcode must not be empty")
	ErrInvalidMode    = errors.New("invalid scan mode")
	ErrUnknownItem    = errors.New("no item resolved for this barcode")
	ErrScanFailed     = errors.New("scan resolution failed")
	ErrProbeTransport = errors.New("scan probe could not reach the resolver")
)

// DefaultWarehouseID is sent when the caller does not name a warehouse.
const DefaultWarehouseID = 1

// ScanMode is the workflow a scan belongs to
type ScanMode string

const (
	ScanModeReceive ScanMode = "receive"
	ScanModePick    ScanMode = "pick"
	ScanModeCount   ScanMode = "count"
	ScanModeItems   ScanMode = "items" // catalog lookup, resolved as a pick probe
)

// ParseScanMode validates a mode name.
func ParseScanMode(s string) (ScanMode, error) {
	mode := ScanMode(strings.ToLower(strings.TrimSpace(s)))
	switch mode {
	case ScanModeReceive, ScanModePick, ScanModeCount, ScanModeItems:
		return mode, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// ResolverMode is the mode actually sent to the resolution endpoint.
func (m ScanMode) ResolverMode() ScanMode {
	if m == ScanModeItems {
		return ScanModePick
	}
	return m
}

// ScanStatus classifies a probe outcome
type ScanStatus string

const (
	ScanStatusOK      ScanStatus = "OK"
	ScanStatusUnbound ScanStatus = "UNBOUND"
	ScanStatusError   ScanStatus = "ERROR"
)

// ScanRequest is the body of the scan resolution/write endpoint.
type ScanRequest struct {
	Mode        ScanMode       `json:"mode"`
	Barcode     string         `json:"barcode,omitempty"`
	ItemID      *int           `json:"item_id,omitempty"`
	Qty         *int           `json:"qty,omitempty"`
	WarehouseID int            `json:"warehouse_id"`
	BatchCode   *string        `json:"batch_code,omitempty"`
	Probe       bool           `json:"probe"`
	Ctx         map[string]any `json:"ctx,omitempty"`
}

// ScanError is one entry of a resolution failure list
type ScanError struct {
	Stage   string `json:"stage"`
	Message string `json:"error"`
}

// ScanResponse is what the resolution endpoint returns.
type ScanResponse struct {
	OK        bool        `json:"ok"`
	Committed bool        `json:"committed"`
	ScanRef   string      `json:"scan_ref"`
	EventID   *int64      `json:"event_id"`
	Source    string      `json:"source"`
	Evidence  []any       `json:"evidence"`
	Errors    []ScanError `json:"errors,omitempty"`
	ItemID    *int        `json:"item_id,omitempty"`
	Qty       *int        `json:"qty,omitempty"`
	BatchCode *string     `json:"batch_code,omitempty"`
}

// ScanStandardResult is the normalized outcome of one probe.
type ScanStandardResult struct {
	Status         ScanStatus   `json:"status"`
	Barcode        string       `json:"barcode"`
	ItemID         *int         `json:"item_id"`
	Qty            *int         `json:"qty"`
	BatchCode      *string      `json:"batch_code"`
	ProductionDate *string      `json:"production_date"`
	ExpiryDate     *string      `json:"expiry_date"`
	Message        string       `json:"message,omitempty"`
	Raw            ScanResponse `json:"raw"`
}

// OK reports whether the probe bound the barcode to an item.
func (r ScanStandardResult) OK() bool {
	return r.Status == ScanStatusOK
}

// ProbeOptions carries the optional parts of a probe request.
type ProbeOptions struct {
	WarehouseID int
	Qty         *int
	Ctx         map[string]any
}

// NewProbeRequest builds a non-committing resolution request for barcode.
func NewProbeRequest(mode ScanMode, barcode string, opts ProbeOptions) ScanRequest {
	warehouseID := opts.WarehouseID
	if warehouseID <= 0 {
		warehouseID = DefaultWarehouseID
	}

	ctx := opts.Ctx
	if len(ctx) == 0 {
		ctx = map[string]any{"device_id": "probe-" + string(mode)}
	}

	return ScanRequest{
		Mode:        mode.ResolverMode(),
		Barcode:     strings.TrimSpace(barcode),
		Qty:         opts.Qty,
		WarehouseID: warehouseID,
		Probe:       true,
		Ctx:         ctx,
	}
}

// ClassifyScanResponse maps a resolver response to a status and, for
// anything but OK, a human-readable message.
func ClassifyScanResponse(resp ScanResponse) (ScanStatus, string) {
	if !resp.OK || len(resp.Errors) > 0 {
		if len(resp.Errors) > 0 && strings.TrimSpace(resp.Errors[0].Message) != "" {
			return ScanStatusError, resp.Errors[0].Message
		}
		return ScanStatusError, ErrScanFailed.Error()
	}
	if resp.ItemID != nil && *resp.ItemID > 0 {
		return ScanStatusOK, ""
	}
	return ScanStatusUnbound, ErrUnknownItem.Error()
}

// StandardizeProbe merges the resolver response with the local decode.
// Binding fields (item, qty, batch) come only from the resolver; the local
// decode fills the dates, which the resolver does not return.
func StandardizeProbe(barcode string, local ParsedBarcode, resp ScanResponse) ScanStandardResult {
	status, message := ClassifyScanResponse(resp)

	return ScanStandardResult{
		Status:         status,
		Barcode:        strings.TrimSpace(barcode),
		ItemID:         resp.ItemID,
		Qty:            resp.Qty,
		BatchCode:      resp.BatchCode,
		ProductionDate: local.ProductionDate,
		ExpiryDate:     local.ExpiryDate,
		Message:        message,
		Raw:            resp,
	}
}

// EmptyBarcodeResult is returned for blank input without calling the resolver.
func EmptyBarcodeResult() ScanStandardResult {
	return ScanStandardResult{
		Status:  ScanStatusError,
		Barcode: "",
		Message: ErrEmptyBarcode.Error(),
		Raw: ScanResponse{
			Source:   "scan_probe",
			Evidence: []any{},
			Errors:   []ScanError{{Stage: "probe", Message: "empty barcode"}},
		},
	}
}

// TransportFailureResult records a resolver call that never produced a response.
func TransportFailureResult(barcode string, cause error) ScanStandardResult {
	msg := ErrProbeTransport.Error()
	if cause != nil {
		msg = cause.Error()
	}

	return ScanStandardResult{
		Status:  ScanStatusError,
		Barcode: strings.TrimSpace(barcode),
		Message: msg,
		Raw: ScanResponse{
			Source:   "scan_probe_error",
			Evidence: []any{},
			Errors:   []ScanError{{Stage: "probe", Message: msg}},
		},
	}
}
