package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/scan-console/internal/domain"
	apperrors "github.com/wms-platform/scan-console/pkg/errors"
	"github.com/wms-platform/scan-console/pkg/logging"
	"github.com/wms-platform/scan-console/pkg/metrics"
)

// mockResolver is a mock implementation of ScanResolver
type mockResolver struct {
	mu       sync.Mutex
	requests []domain.ScanRequest
	resp     domain.ScanResponse
	err      error
}

func (m *mockResolver) ResolveScan(ctx context.Context, req domain.ScanRequest) (domain.ScanResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.resp, m.err
}

func (m *mockResolver) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// mockTaskGateway is a mock implementation of PickTaskGateway. Scans are
// applied to the stored task so the returned snapshot reflects them.
type mockTaskGateway struct {
	mu       sync.Mutex
	task     *domain.PickTask
	getErr   error
	scans    []domain.PickTaskScanPayload
	commits  []domain.PickTaskCommitPayload
	result   *domain.PickTaskCommitResult
	scanHook func()
}

func (m *mockTaskGateway) GetPickTask(ctx context.Context, taskID int) (*domain.PickTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.task == nil || m.task.ID != taskID {
		return nil, apperrors.ErrNotFound("pick task")
	}
	copied := *m.task
	copied.Lines = append([]domain.PickTaskLine(nil), m.task.Lines...)
	return &copied, nil
}

func (m *mockTaskGateway) ScanPickTask(ctx context.Context, taskID int, payload domain.PickTaskScanPayload) (*domain.PickTask, error) {
	if m.scanHook != nil {
		m.scanHook()
	}
	m.mu.Lock()
	m.scans = append(m.scans, payload)
	for i := range m.task.Lines {
		if m.task.Lines[i].ItemID == payload.ItemID {
			m.task.Lines[i].PickedQty += payload.Qty
		}
	}
	m.mu.Unlock()
	return m.GetPickTask(ctx, taskID)
}

func (m *mockTaskGateway) CommitPickTask(ctx context.Context, taskID int, payload domain.PickTaskCommitPayload) (*domain.PickTaskCommitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits = append(m.commits, payload)
	if m.result != nil {
		return m.result, nil
	}
	return &domain.PickTaskCommitResult{
		Status:   "COMMITTED",
		TraceID:  payload.TraceID,
		TaskID:   taskID,
		Platform: payload.Platform,
		ShopID:   payload.ShopID,
		Ref:      m.task.RefString(),
	}, nil
}

// mockCatalog is a mock implementation of ItemCatalog
type mockCatalog struct {
	items map[int]domain.ItemMeta
}

func (m *mockCatalog) GetItemMeta(ctx context.Context, itemID int) (*domain.ItemMeta, error) {
	meta, ok := m.items[itemID]
	if !ok {
		return nil, apperrors.ErrNotFound("item")
	}
	return &meta, nil
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func createTestTask() *domain.PickTask {
	return &domain.PickTask{
		ID:          42,
		WarehouseID: 3,
		Ref:         strPtr("ORD:PDD:1:A1"),
		Status:      "PICKING",
		Lines: []domain.PickTaskLine{
			{ID: 1, TaskID: 42, ItemID: 1001, ReqQty: 2, PickedQty: 0},
			{ID: 2, TaskID: 42, ItemID: 2002, ReqQty: 1, PickedQty: 0},
		},
	}
}

func okResponse(itemID int, batch *string) domain.ScanResponse {
	return domain.ScanResponse{
		OK:        true,
		ScanRef:   "scan:probe:1",
		Source:    "scan_probe",
		Evidence:  []any{},
		ItemID:    intPtr(itemID),
		Qty:       intPtr(1),
		BatchCode: batch,
	}
}

type fixture struct {
	resolver *mockResolver
	tasks    *mockTaskGateway
	catalog  *mockCatalog
	metrics  *metrics.Metrics
	service  *ScanConsoleService
}

func newFixture() *fixture {
	f := &fixture{
		resolver: &mockResolver{resp: okResponse(1001, nil)},
		tasks:    &mockTaskGateway{task: createTestTask()},
		catalog: &mockCatalog{items: map[int]domain.ItemMeta{
			1001: {ItemID: 1001, HasShelfLife: boolPtr(false)},
			2002: {ItemID: 2002, RequiresBatch: boolPtr(true)},
		}},
		metrics: metrics.New(metrics.DefaultConfig("scan-console-test")),
	}
	f.service = NewScanConsoleService(f.resolver, f.tasks, f.catalog,
		Options{DefaultWarehouseID: 1}, logging.Discard(), f.metrics)
	f.service.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return f
}

func appErrorCode(t *testing.T, err error) (string, *apperrors.AppError) {
	t.Helper()
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr.Code, appErr
}

func TestDecode(t *testing.T) {
	f := newFixture()
	parsed := f.service.Decode("ITEM:1001 QTY:2")
	require.NotNil(t, parsed.ItemID)
	assert.Equal(t, 1001, *parsed.ItemID)
	assert.Equal(t, 0, f.resolver.calls())
}

func TestProbe(t *testing.T) {
	t.Run("Blank barcode is answered locally", func(t *testing.T) {
		f := newFixture()
		result, err := f.service.Probe(context.Background(), ProbeCommand{Mode: "pick", Barcode: "   "})
		require.NoError(t, err)

		assert.Equal(t, domain.ScanStatusError, result.Status)
		assert.Equal(t, "scan_probe", result.Raw.Source)
		assert.Equal(t, 0, f.resolver.calls())
	})

	t.Run("Invalid mode", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.Probe(context.Background(), ProbeCommand{Mode: "ship", Barcode: "X"})
		code, _ := appErrorCode(t, err)
		assert.Equal(t, apperrors.CodeValidationError, code)
	})

	t.Run("OK merges local dates", func(t *testing.T) {
		f := newFixture()
		result, err := f.service.Probe(context.Background(), ProbeCommand{Mode: "receive", Barcode: "ITEM:1001 EXP:20261231"})
		require.NoError(t, err)

		assert.Equal(t, domain.ScanStatusOK, result.Status)
		require.NotNil(t, result.ExpiryDate)
		assert.Equal(t, "2026-12-31", *result.ExpiryDate)

		req := f.resolver.requests[0]
		assert.True(t, req.Probe)
		assert.Equal(t, 1, req.WarehouseID)
		assert.Equal(t, "probe-receive", req.Ctx["device_id"])
	})

	t.Run("Device from request context", func(t *testing.T) {
		f := newFixture()
		ctx := logging.ContextWithOperator(context.Background(), "handheld-7")
		_, err := f.service.Probe(ctx, ProbeCommand{Mode: "count", Barcode: "ITEM:1001", WarehouseID: 5})
		require.NoError(t, err)

		req := f.resolver.requests[0]
		assert.Equal(t, 5, req.WarehouseID)
		assert.Equal(t, "handheld-7", req.Ctx["device_id"])
	})

	t.Run("Unbound", func(t *testing.T) {
		f := newFixture()
		f.resolver.resp = domain.ScanResponse{OK: true, Source: "scan_probe"}
		result, err := f.service.Probe(context.Background(), ProbeCommand{Mode: "pick", Barcode: "6901234567890"})
		require.NoError(t, err)
		assert.Equal(t, domain.ScanStatusUnbound, result.Status)
	})

	t.Run("Transport failure returns result and error", func(t *testing.T) {
		f := newFixture()
		f.resolver.err = apperrors.ErrServiceUnavailable("wms backend").Wrap(errors.New("connection refused"))

		result, err := f.service.Probe(context.Background(), ProbeCommand{Mode: "pick", Barcode: "ITEM:1"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrProbeTransport)

		code, _ := appErrorCode(t, err)
		assert.Equal(t, apperrors.CodeServiceUnavailable, code)
		assert.Equal(t, domain.ScanStatusError, result.Status)
		assert.Equal(t, "scan_probe_error", result.Raw.Source)
		assert.Equal(t, "wms backend is temporarily unavailable", result.Message)
	})
}

func TestSubmitPickScan_Accepted(t *testing.T) {
	f := newFixture()

	result, err := f.service.SubmitPickScan(context.Background(), SubmitPickScanCommand{
		TaskID:  42,
		Barcode: "ITEM:1001 QTY:2",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Qty, "decoded qty used when operator gives none")
	assert.Equal(t, domain.NoExpiryBatchCode, result.Decision.BatchCode)
	require.Len(t, f.tasks.scans, 1)
	assert.Equal(t, domain.NoExpiryBatchCode, *f.tasks.scans[0].BatchCode)

	probeReq := f.resolver.requests[0]
	assert.Equal(t, 3, probeReq.WarehouseID, "probe uses the task warehouse")
	assert.Equal(t, 2, *probeReq.Qty)

	require.Len(t, result.Diff.Lines, 2)
	assert.Equal(t, domain.DiffStatusOK, result.Diff.Lines[0].Status)
	assert.Equal(t, domain.DiffStatusUnder, result.Diff.Lines[1].Status)
	assert.False(t, result.Clean)
}

func TestSubmitPickScan_Quantity(t *testing.T) {
	tests := []struct {
		name    string
		barcode string
		qty     *int
		want    int
	}{
		{name: "Operator wins", barcode: "ITEM:1001 QTY:2", qty: intPtr(5), want: 5},
		{name: "Decoded", barcode: "ITEM:1001 QTY:2", want: 2},
		{name: "Default one", barcode: "ITEM:1001", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.service.SubmitPickScan(context.Background(), SubmitPickScanCommand{TaskID: 42, Barcode: tt.barcode, Qty: tt.qty})
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.tasks.scans[0].Qty)
		})
	}
}

func TestSubmitPickScan_BatchPolicy(t *testing.T) {
	t.Run("Batch tracked item without batch is refused", func(t *testing.T) {
		f := newFixture()
		f.resolver.resp = okResponse(2002, nil)

		_, err := f.service.SubmitPickScan(context.Background(), SubmitPickScanCommand{TaskID: 42, Barcode: "ITEM:2002"})
		code, appErr := appErrorCode(t, err)
		assert.Equal(t, apperrors.CodeUnprocessable, code)
		assert.Equal(t, string(domain.BatchViolationRequired), appErr.Details["violation"])
		assert.Empty(t, f.tasks.scans, "no write on violation")
	})

	t.Run("Operator override satisfies policy", func(t *testing.T) {
		f := newFixture()
		f.resolver.resp = okResponse(2002, nil)

		result, err := f.service.SubmitPickScan(context.Background(), SubmitPickScanCommand{TaskID: 42, Barcode: "ITEM:2002", BatchOverride: "LOT-9"})
		require.NoError(t, err)
		assert.Equal(t, "LOT-9", result.Decision.BatchCode)
	})

	t.Run("Resolver batch wins over override", func(t *testing.T) {
		f := newFixture()
		f.resolver.resp = okResponse(2002, strPtr("B-REMOTE"))

		_, err := f.service.SubmitPickScan(context.Background(), SubmitPickScanCommand{TaskID: 42, Barcode: "ITEM:2002", BatchOverride: "LOT-9"})
		require.NoError(t, err)
		assert.Equal(t, "B-REMOTE", *f.tasks.scans[0].BatchCode)
	})

	t.Run("Local batch used when resolver has none", func(t *testing.T) {
		f := newFixture()
		f.resolver.resp = okResponse(2002, nil)

		_, err := f.service.SubmitPickScan(context.Background(), SubmitPickScanCommand{TaskID: 42, Barcode: "ITEM:2002 BATCH:L1"})
		require.NoError(t, err)
		assert.Equal(t, "L1", *f.tasks.scans[0].BatchCode)
	})
}

func TestSubmitPickScan_Blocked(t *testing.T) {
	t.Run("Empty barcode", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.SubmitPickScan(context.Background(), SubmitPickScanCommand{TaskID: 42, Barcode: " "})
		code, _ := appErrorCode(t, err)
		assert.Equal(t, apperrors.CodeValidationError, code)
		assert.Equal(t, 0, f.resolver.calls())
	})

	t.Run("Unbound barcode", func(t *testing.T) {
		f := newFixture()
		f.resolver.resp = domain.ScanResponse{OK: true}

		_, err := f.service.SubmitPickScan(context.Background(), SubmitPickScanCommand{TaskID: 42, Barcode: "6901234567890"})
		code, appErr := appErrorCode(t, err)
		assert.Equal(t, apperrors.CodeUnprocessable, code)
		assert.Equal(t, string(domain.ScanStatusUnbound), appErr.Details["status"])
		assert.Empty(t, f.tasks.scans)
	})

	t.Run("Resolver error", func(t *testing.T) {
		f := newFixture()
		f.resolver.resp = domain.ScanResponse{OK: false, Errors: []domain.ScanError{{Stage: "resolve", Message: "item disabled"}}}

		_, err := f.service.SubmitPickScan(context.Background(), SubmitPickScanCommand{TaskID: 42, Barcode: "ITEM:1001"})
		_, appErr := appErrorCode(t, err)
		assert.Equal(t, "item disabled", appErr.Message)
	})

	t.Run("Unknown task", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.SubmitPickScan(context.Background(), SubmitPickScanCommand{TaskID: 7, Barcode: "ITEM:1001"})
		code, _ := appErrorCode(t, err)
		assert.Equal(t, apperrors.CodeNotFound, code)
	})
}

func TestSubmitPickScan_RejectsConcurrentScanOnSameTask(t *testing.T) {
	f := newFixture()

	entered := make(chan struct{})
	unblock := make(chan struct{})
	f.tasks.scanHook = func() {
		close(entered)
		<-unblock
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.service.SubmitPickScan(context.Background(), SubmitPickScanCommand{TaskID: 42, Barcode: "ITEM:1001"})
		done <- err
	}()
	<-entered

	_, err := f.service.SubmitPickScan(context.Background(), SubmitPickScanCommand{TaskID: 42, Barcode: "ITEM:1001"})
	code, _ := appErrorCode(t, err)
	assert.Equal(t, apperrors.CodeConflict, code)

	close(unblock)
	require.NoError(t, <-done)

	f.tasks.scanHook = nil
	_, err = f.service.SubmitPickScan(context.Background(), SubmitPickScanCommand{TaskID: 42, Barcode: "ITEM:1001"})
	assert.NoError(t, err, "guard released after the first scan")
}

func TestGetPickTaskDiff(t *testing.T) {
	f := newFixture()
	f.tasks.task.Lines[0].PickedQty = 3

	dto, err := f.service.GetPickTaskDiff(context.Background(), GetPickTaskDiffQuery{TaskID: 42})
	require.NoError(t, err)

	assert.False(t, dto.Clean)
	assert.True(t, dto.Diff.HasOver)
	assert.Equal(t, map[string]int{"OK": 0, "OVER": 1, "UNDER": 1}, dto.Counts)
}

func TestGetConfirmationCode(t *testing.T) {
	f := newFixture()

	dto, err := f.service.GetConfirmationCode(context.Background(), GetConfirmationCodeQuery{TaskID: 42})
	require.NoError(t, err)
	assert.Equal(t, "WMS:ORDER:v1:PDD:1:A1", dto.Code)

	f.tasks.task.Ref = nil
	dto, err = f.service.GetConfirmationCode(context.Background(), GetConfirmationCodeQuery{TaskID: 42})
	require.NoError(t, err)
	assert.Equal(t, "PICKTASK:42", dto.Code)
}

func TestCommitPickTask(t *testing.T) {
	cleanTask := func() *domain.PickTask {
		task := createTestTask()
		task.Lines[0].PickedQty = 2
		task.Lines[1].PickedQty = 1
		return task
	}

	t.Run("Code mismatch sends nothing", func(t *testing.T) {
		f := newFixture()
		f.tasks.task = cleanTask()

		_, err := f.service.CommitPickTask(context.Background(), CommitPickTaskCommand{
			TaskID: 42, ConfirmationCode: "WMS:ORDER:v1:PDD:1:A2", Platform: "PDD", ShopID: "1",
		})
		_, appErr := appErrorCode(t, err)
		assert.Equal(t, "confirmation code mismatch", appErr.Message)
		assert.Empty(t, f.tasks.commits)
	})

	t.Run("Dirty diff blocked unless allowed", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.CommitPickTask(context.Background(), CommitPickTaskCommand{
			TaskID: 42, ConfirmationCode: "WMS:ORDER:v1:PDD:1:A1", Platform: "PDD", ShopID: "1",
		})
		_, appErr := appErrorCode(t, err)
		assert.Equal(t, "diff not clean", appErr.Message)
		assert.Equal(t, "2", appErr.Details["under"])
		assert.Empty(t, f.tasks.commits)

		_, err = f.service.CommitPickTask(context.Background(), CommitPickTaskCommand{
			TaskID: 42, ConfirmationCode: "WMS:ORDER:v1:PDD:1:A1", Platform: "PDD", ShopID: "1", AllowDiff: true,
		})
		require.NoError(t, err)
		require.Len(t, f.tasks.commits, 1)
		assert.True(t, f.tasks.commits[0].AllowDiff)
	})

	t.Run("Default trace id", func(t *testing.T) {
		f := newFixture()
		f.tasks.task = cleanTask()

		dto, err := f.service.CommitPickTask(context.Background(), CommitPickTaskCommand{
			TaskID: 42, ConfirmationCode: " WMS:ORDER:v1:PDD:1:A1 ", Platform: "PDD", ShopID: "1",
		})
		require.NoError(t, err)

		assert.Equal(t, "picktask:42:1700000000000", dto.TraceID)
		assert.Equal(t, "picktask:42:1700000000000", *f.tasks.commits[0].TraceID)
		assert.Equal(t, "COMMITTED", dto.Result.Status)
	})

	t.Run("Explicit trace id kept", func(t *testing.T) {
		f := newFixture()
		f.tasks.task = cleanTask()

		dto, err := f.service.CommitPickTask(context.Background(), CommitPickTaskCommand{
			TaskID: 42, ConfirmationCode: "WMS:ORDER:v1:PDD:1:A1", Platform: "PDD", ShopID: "1", TraceID: "t-1",
		})
		require.NoError(t, err)
		assert.Equal(t, "t-1", dto.TraceID)
	})

	t.Run("Missing platform", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.CommitPickTask(context.Background(), CommitPickTaskCommand{TaskID: 42, ConfirmationCode: "WMS:ORDER:v1:PDD:1:A1"})
		code, _ := appErrorCode(t, err)
		assert.Equal(t, apperrors.CodeValidationError, code)
	})
}

func TestTaskGuard(t *testing.T) {
	g := newTaskGuard()
	assert.True(t, g.acquire(1))
	assert.False(t, g.acquire(1))
	assert.True(t, g.acquire(2), "tasks are independent")
	g.release(1)
	assert.True(t, g.acquire(1))
}
