package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/scan-console/internal/domain"
	apperrors "github.com/wms-platform/scan-console/pkg/errors"
	"github.com/wms-platform/scan-console/pkg/logging"
	"github.com/wms-platform/scan-console/pkg/metrics"
	"github.com/wms-platform/scan-console/pkg/tracing"
)

// Pick scan outcomes recorded in metrics
const (
	outcomeAccepted     = "accepted"
	outcomeBlockedProbe = "blocked_probe"
	outcomeBlockedBatch = "blocked_batch"
	outcomeConflict     = "conflict"
	outcomeFailed       = "failed"
)

// Commit gate outcomes recorded in metrics
const (
	commitCommitted    = "committed"
	commitCodeMismatch = "code_mismatch"
	commitDiffNotClean = "diff_not_clean"
	commitFailed       = "failed"
)

// Options holds defaults applied to probes
type Options struct {
	DefaultWarehouseID int
	DeviceID           string
}

// ScanConsoleService handles the scan loop and the commit flow
type ScanConsoleService struct {
	resolver ScanResolver
	tasks    PickTaskGateway
	catalog  ItemCatalog
	opts     Options
	guard    *taskGuard
	tracer   trace.Tracer
	logger   *logging.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewScanConsoleService creates a new ScanConsoleService. m may be nil.
func NewScanConsoleService(
	resolver ScanResolver,
	tasks PickTaskGateway,
	catalog ItemCatalog,
	opts Options,
	logger *logging.Logger,
	m *metrics.Metrics,
) *ScanConsoleService {
	if opts.DefaultWarehouseID <= 0 {
		opts.DefaultWarehouseID = domain.DefaultWarehouseID
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &ScanConsoleService{
		resolver: resolver,
		tasks:    tasks,
		catalog:  catalog,
		opts:     opts,
		guard:    newTaskGuard(),
		tracer:   otel.Tracer("scan-console/application"),
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Decode runs the local barcode decoder only
func (s *ScanConsoleService) Decode(raw string) domain.ParsedBarcode {
	return domain.DecodeBarcode(raw)
}

// Probe resolves a barcode without committing anything. Blank input is
// answered locally. When the resolver cannot be reached the ERROR result is
// returned together with the error.
func (s *ScanConsoleService) Probe(ctx context.Context, cmd ProbeCommand) (domain.ScanStandardResult, error) {
	mode, err := domain.ParseScanMode(cmd.Mode)
	if err != nil {
		return domain.ScanStandardResult{}, apperrors.ErrValidation(err.Error()).Wrap(err)
	}

	return s.probe(ctx, mode, cmd.Barcode, domain.ProbeOptions{
		WarehouseID: cmd.WarehouseID,
		Qty:         cmd.Qty,
		Ctx:         cmd.Ctx,
	})
}

func (s *ScanConsoleService) probe(ctx context.Context, mode domain.ScanMode, barcode string, opts domain.ProbeOptions) (domain.ScanStandardResult, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		result := domain.EmptyBarcodeResult()
		s.recordProbe(mode, result.Status)
		return result, nil
	}

	if opts.WarehouseID <= 0 {
		opts.WarehouseID = s.opts.DefaultWarehouseID
	}
	if len(opts.Ctx) == 0 {
		if operator, ok := ctx.Value(logging.OperatorKey).(string); ok && operator != "" {
			opts.Ctx = map[string]any{"device_id": operator}
		} else if s.opts.DeviceID != "" {
			opts.Ctx = map[string]any{"device_id": s.opts.DeviceID}
		}
	}

	local := domain.DecodeBarcode(barcode)
	req := domain.NewProbeRequest(mode, barcode, opts)

	resp, err := s.resolver.ResolveScan(ctx, req)
	if err != nil {
		result := domain.TransportFailureResult(barcode, errors.New(errorMessage(err)))
		s.recordProbe(mode, result.Status)
		s.logger.WithError(err).Warn("Scan probe failed", "mode", string(mode), "barcode", barcode)
		return result, fmt.Errorf("%w: %w", domain.ErrProbeTransport, err)
	}

	result := domain.StandardizeProbe(barcode, local, resp)
	s.recordProbe(mode, result.Status)

	s.logger.Event(ctx, "scan.probed", map[string]any{
		"mode":    string(mode),
		"barcode": barcode,
		"status":  string(result.Status),
		"scanRef": resp.ScanRef,
	})
	return result, nil
}

// SubmitPickScan probes a barcode, applies the batch policy and writes the
// scan to the task. Only one scan per task may be in flight.
func (s *ScanConsoleService) SubmitPickScan(ctx context.Context, cmd SubmitPickScanCommand) (*PickScanResultDTO, error) {
	return tracing.TracedOperation(ctx, s.tracer, "ScanConsole.SubmitPickScan",
		func(ctx context.Context) (*PickScanResultDTO, error) {
			return s.submitPickScan(ctx, cmd)
		},
		attribute.Int("pick_task.id", cmd.TaskID),
	)
}

func (s *ScanConsoleService) submitPickScan(ctx context.Context, cmd SubmitPickScanCommand) (*PickScanResultDTO, error) {
	barcode := strings.TrimSpace(cmd.Barcode)
	if barcode == "" {
		return nil, apperrors.ErrValidation(domain.ErrEmptyBarcode.Error())
	}

	if !s.guard.acquire(cmd.TaskID) {
		s.recordPickScan(outcomeConflict, 0)
		return nil, apperrors.ErrConflict("a scan for this pick task is already in progress").
			WithDetail("taskId", strconv.Itoa(cmd.TaskID))
	}
	defer s.guard.release(cmd.TaskID)

	logger := s.logger.WithTaskID(cmd.TaskID)

	task, err := s.tasks.GetPickTask(ctx, cmd.TaskID)
	if err != nil {
		s.recordPickScan(outcomeFailed, 0)
		logger.WithError(err).Error("Failed to get pick task")
		return nil, fmt.Errorf("failed to get pick task: %w", err)
	}

	local := domain.DecodeBarcode(barcode)
	qty := domain.EffectiveScanQty(cmd.Qty, local.Qty)

	probe, err := s.probe(ctx, domain.ScanModePick, barcode, domain.ProbeOptions{
		WarehouseID: task.WarehouseID,
		Qty:         &qty,
	})
	if err != nil {
		s.recordPickScan(outcomeFailed, 0)
		return nil, err
	}
	if !probe.OK() {
		s.recordPickScan(outcomeBlockedProbe, 0)
		return nil, apperrors.ErrUnprocessable(probe.Message).
			WithDetail("stage", "probe").
			WithDetail("status", string(probe.Status)).
			WithDetail("barcode", barcode)
	}
	itemID := *probe.ItemID

	meta, err := s.catalog.GetItemMeta(ctx, itemID)
	if err != nil {
		s.recordPickScan(outcomeFailed, 0)
		logger.WithError(err).Error("Failed to get item meta", "itemId", itemID)
		return nil, fmt.Errorf("failed to get item meta: %w", err)
	}

	decodedBatch := deref(probe.BatchCode)
	if decodedBatch == "" {
		decodedBatch = deref(local.BatchCode)
	}
	decision := domain.ResolveBatchPolicy(*meta, decodedBatch, cmd.BatchOverride)
	if !decision.Proceed {
		s.recordPickScan(outcomeBlockedBatch, 0)
		if s.metrics != nil {
			s.metrics.RecordBatchViolation(string(decision.Violation))
		}
		return nil, apperrors.ErrUnprocessable(string(decision.Violation)).
			WithDetail("stage", "batch").
			WithDetail("violation", string(decision.Violation)).
			WithDetail("itemId", strconv.Itoa(itemID))
	}

	batchCode := decision.BatchCode
	updated, err := s.tasks.ScanPickTask(ctx, cmd.TaskID, domain.PickTaskScanPayload{
		ItemID:    itemID,
		Qty:       qty,
		BatchCode: &batchCode,
	})
	if err != nil {
		s.recordPickScan(outcomeFailed, 0)
		logger.WithError(err).Error("Failed to write pick scan", "itemId", itemID)
		return nil, fmt.Errorf("failed to write pick scan: %w", err)
	}

	diff := domain.ComputeTaskDiff(*updated)
	s.recordPickScan(outcomeAccepted, qty)
	s.recordDiff(diff)

	logger.Event(ctx, "pick.scanned", map[string]any{
		"taskId":    cmd.TaskID,
		"itemId":    itemID,
		"qty":       qty,
		"batchCode": batchCode,
		"clean":     diff.Clean(),
	})

	return &PickScanResultDTO{
		TaskID:   cmd.TaskID,
		Qty:      qty,
		Probe:    probe,
		Decision: decision,
		Task:     updated,
		Diff:     diff,
		Clean:    diff.Clean(),
	}, nil
}

// GetPickTaskDiff fetches a task and reconciles it locally
func (s *ScanConsoleService) GetPickTaskDiff(ctx context.Context, query GetPickTaskDiffQuery) (*PickTaskDiffDTO, error) {
	task, err := s.tasks.GetPickTask(ctx, query.TaskID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get pick task", "taskId", query.TaskID)
		return nil, fmt.Errorf("failed to get pick task: %w", err)
	}

	diff := domain.ComputeTaskDiff(*task)
	s.recordDiff(diff)
	return ToPickTaskDiffDTO(diff), nil
}

// GetConfirmationCode returns the expected confirmation code of a task
func (s *ScanConsoleService) GetConfirmationCode(ctx context.Context, query GetConfirmationCodeQuery) (*ConfirmationCodeDTO, error) {
	task, err := s.tasks.GetPickTask(ctx, query.TaskID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get pick task", "taskId", query.TaskID)
		return nil, fmt.Errorf("failed to get pick task: %w", err)
	}
	return ToConfirmationCodeDTO(task), nil
}

// CommitPickTask checks the confirmation code and, when the diff allows it,
// commits the task. Nothing is sent to the backend when the gate fails.
func (s *ScanConsoleService) CommitPickTask(ctx context.Context, cmd CommitPickTaskCommand) (*CommitResultDTO, error) {
	return tracing.TracedOperation(ctx, s.tracer, "ScanConsole.CommitPickTask",
		func(ctx context.Context) (*CommitResultDTO, error) {
			return s.commitPickTask(ctx, cmd)
		},
		attribute.Int("pick_task.id", cmd.TaskID),
		attribute.Bool("pick_task.allow_diff", cmd.AllowDiff),
	)
}

func (s *ScanConsoleService) commitPickTask(ctx context.Context, cmd CommitPickTaskCommand) (*CommitResultDTO, error) {
	platform := strings.TrimSpace(cmd.Platform)
	shopID := strings.TrimSpace(cmd.ShopID)
	if platform == "" || shopID == "" {
		return nil, apperrors.ErrValidation("platform and shop id must not be empty")
	}

	logger := s.logger.WithTaskID(cmd.TaskID)

	task, err := s.tasks.GetPickTask(ctx, cmd.TaskID)
	if err != nil {
		s.recordCommit(commitFailed)
		logger.WithError(err).Error("Failed to get pick task")
		return nil, fmt.Errorf("failed to get pick task: %w", err)
	}

	expected := domain.TaskConfirmationCode(*task)
	if !domain.CanCommit(cmd.ConfirmationCode, expected) {
		s.recordCommit(commitCodeMismatch)
		logger.Event(ctx, "pick.commit_blocked", map[string]any{
			"taskId": cmd.TaskID,
			"reason": commitCodeMismatch,
		})
		return nil, apperrors.ErrUnprocessable("confirmation code mismatch").
			WithDetail("taskId", strconv.Itoa(cmd.TaskID))
	}

	diff := domain.ComputeTaskDiff(*task)
	if !cmd.AllowDiff && !diff.Clean() {
		s.recordCommit(commitDiffNotClean)
		counts := diffCounts(diff)
		logger.Event(ctx, "pick.commit_blocked", map[string]any{
			"taskId": cmd.TaskID,
			"reason": commitDiffNotClean,
			"over":   counts[string(domain.DiffStatusOver)],
			"under":  counts[string(domain.DiffStatusUnder)],
		})
		return nil, apperrors.ErrUnprocessable("diff not clean").
			WithDetail("over", strconv.Itoa(counts[string(domain.DiffStatusOver)])).
			WithDetail("under", strconv.Itoa(counts[string(domain.DiffStatusUnder)]))
	}

	traceID := strings.TrimSpace(cmd.TraceID)
	if traceID == "" {
		traceID = domain.CommitTraceID(task.ID, s.now())
	}

	result, err := s.tasks.CommitPickTask(ctx, cmd.TaskID, domain.PickTaskCommitPayload{
		Platform:  platform,
		ShopID:    shopID,
		TraceID:   &traceID,
		AllowDiff: cmd.AllowDiff,
	})
	if err != nil {
		s.recordCommit(commitFailed)
		logger.WithError(err).Error("Failed to commit pick task", "traceId", traceID)
		return nil, fmt.Errorf("failed to commit pick task: %w", err)
	}

	s.recordCommit(commitCommitted)
	logger.Event(ctx, "pick.committed", map[string]any{
		"taskId":     cmd.TaskID,
		"traceId":    traceID,
		"status":     result.Status,
		"idempotent": result.Idempotent,
		"platform":   platform,
		"shopId":     shopID,
	})

	return &CommitResultDTO{
		TaskID:  cmd.TaskID,
		TraceID: traceID,
		Result:  result,
	}, nil
}

func (s *ScanConsoleService) recordProbe(mode domain.ScanMode, status domain.ScanStatus) {
	if s.metrics != nil {
		s.metrics.RecordProbe(string(mode), string(status))
	}
}

func (s *ScanConsoleService) recordPickScan(outcome string, qty int) {
	if s.metrics != nil {
		s.metrics.RecordPickScan(outcome, qty)
	}
}

func (s *ScanConsoleService) recordDiff(diff domain.PickTaskDiffSummary) {
	if s.metrics != nil {
		s.metrics.RecordDiff(diffCounts(diff))
	}
}

func (s *ScanConsoleService) recordCommit(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordCommitAttempt(outcome)
	}
}

// errorMessage prefers the client-facing message of an AppError
func errorMessage(err error) string {
	if appErr, ok := apperrors.AsAppError(err); ok && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
