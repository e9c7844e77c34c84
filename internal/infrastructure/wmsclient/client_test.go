package wmsclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wms-platform/scan-console/internal/domain"
	apperrors "github.com/wms-platform/scan-console/pkg/errors"
	"github.com/wms-platform/scan-console/pkg/logging"
	"github.com/wms-platform/scan-console/pkg/metrics"
	"github.com/wms-platform/scan-console/pkg/resilience"
)

const pickTaskJSON = `{
	"id": 7, "warehouse_id": 2, "ref": "ORD:PDD:1:A1", "source": "order", "priority": 100,
	"status": "PICKING", "assigned_to": null, "note": null,
	"lines": [
		{"id": 1, "task_id": 7, "order_id": 1, "order_line_id": 11, "item_id": 1001,
		 "req_qty": 3, "picked_qty": 1, "batch_code": null, "status": "OPEN", "note": null}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...func(*Config)) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := Config{BaseURL: server.URL + "/", Timeout: 2 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	m := metrics.New(metrics.DefaultConfig("scan-console-test"))
	return New(cfg, nil, logging.Discard(), m), server
}

func withFastRetry(cfg *Config) {
	retry := DefaultRetryConfig()
	retry.MaxAttempts = 3
	retry.InitialDelay = time.Millisecond
	retry.MaxDelay = 5 * time.Millisecond
	cfg.Retry = retry
}

func TestGetPickTask(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/pick-tasks/7", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(pickTaskJSON))
	})

	task, err := client.GetPickTask(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 7, task.ID)
	assert.Equal(t, 2, task.WarehouseID)
	assert.Equal(t, "ORD:PDD:1:A1", task.RefString())
	require.Len(t, task.Lines, 1)
	assert.Equal(t, 1001, task.Lines[0].ItemID)
	assert.Nil(t, task.Lines[0].BatchCode)
}

func TestResolveScan_SendsProbeBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scan", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pick", body["mode"])
		assert.Equal(t, "ITEM:1001", body["barcode"])
		assert.Equal(t, true, body["probe"])
		assert.EqualValues(t, 2, body["warehouse_id"])

		_, _ = w.Write([]byte(`{"ok":true,"committed":false,"scan_ref":"scan:1","event_id":null,
			"source":"scan_probe","item_id":1001,"qty":1,"batch_code":"B1"}`))
	})

	req := domain.NewProbeRequest(domain.ScanModeItems, "ITEM:1001", domain.ProbeOptions{WarehouseID: 2})
	resp, err := client.ResolveScan(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, resp.OK)
	assert.Equal(t, 1001, *resp.ItemID)
	assert.Equal(t, "B1", *resp.BatchCode)
	assert.NotNil(t, resp.Evidence)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantMsg  string
	}{
		{name: "Not found", status: 404, body: `{"detail":"pick task not found"}`, wantCode: apperrors.CodeNotFound, wantMsg: "pick task not found"},
		{name: "Conflict", status: 409, body: `{"detail":"task already committed"}`, wantCode: apperrors.CodeConflict, wantMsg: "task already committed"},
		{name: "Business rejection", status: 422, body: `{"detail":"diff not clean"}`, wantCode: apperrors.CodeUnprocessable, wantMsg: "diff not clean"},
		{name: "Validation list", status: 422, body: `{"detail":[{"msg":"field required"}]}`, wantCode: apperrors.CodeUnprocessable, wantMsg: "field required"},
		{name: "Plain text", status: 400, body: "bad scan", wantCode: apperrors.CodeUnprocessable, wantMsg: "bad scan"},
		{name: "Server error", status: 502, body: "upstream", wantCode: apperrors.CodeServiceUnavailable, wantMsg: "wms backend is temporarily unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.CommitPickTask(context.Background(), 7, domain.PickTaskCommitPayload{Platform: "PDD", ShopID: "1"})
			require.Error(t, err)

			appErr, ok := apperrors.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Equal(t, tt.wantMsg, appErr.Message)
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	_, err := client.ResolveScan(context.Background(), domain.NewProbeRequest(domain.ScanModePick, "X", domain.ProbeOptions{}))
	require.Error(t, err)

	assert.True(t, IsTransport(err))
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeServiceUnavailable, appErr.Code)
}

func TestClient_UndecodableBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>proxy</html>`))
	})

	_, err := client.GetItemMeta(context.Background(), 1001)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeBadGateway, appErr.Code)
}

func TestGetItemMeta(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items/1001", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":1001,"sku":"SKU-1","has_shelf_life":true}`))
	})

	meta, err := client.GetItemMeta(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, 1001, meta.ItemID)
	assert.True(t, meta.BatchTracked())
}

func TestClient_RetriesReadsOnServerError(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(pickTaskJSON))
	}, withFastRetry)

	task, err := client.GetPickTask(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, task.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryRejectionsOrWrites(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}, withFastRetry)

	_, err := client.GetPickTask(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "404 is final")

	calls.Store(0)
	_, err = client.ScanPickTask(context.Background(), 7, domain.PickTaskScanPayload{ItemID: 1, Qty: 1})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "writes are sent once")
}

func TestClient_BreakerOpensOnBackendFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	breakerCfg := BreakerConfig()
	breakerCfg.FailureThreshold = 2
	breakerCfg.MinRequestsToTrip = 0
	breakerCfg.Timeout = time.Minute
	breaker := resilience.NewCircuitBreaker(breakerCfg, nil)
	client := New(Config{BaseURL: server.URL}, breaker, nil, nil)

	for i := 0; i < 2; i++ {
		_, err := client.GetPickTask(context.Background(), 7)
		require.Error(t, err)
	}
	require.Error(t, client.Ready())

	_, err := client.GetPickTask(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load(), "open circuit short-circuits the call")
	assert.True(t, IsTransport(err))

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeServiceUnavailable, appErr.Code)
	assert.Equal(t, "open", client.BreakerStatus().State)
}

func TestClient_RejectionsKeepBreakerClosed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"batch required"}`))
	}))
	t.Cleanup(server.Close)

	breakerCfg := BreakerConfig()
	breakerCfg.FailureThreshold = 1
	client := New(Config{BaseURL: server.URL}, resilience.NewCircuitBreaker(breakerCfg, nil), nil, nil)

	for i := 0; i < 3; i++ {
		_, err := client.ScanPickTask(context.Background(), 7, domain.PickTaskScanPayload{ItemID: 1, Qty: 1})
		require.Error(t, err)
	}
	assert.NoError(t, client.Ready())
}

func TestClient_PropagatesRequestAndTraceContext(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTextMapPropagator(prevProp)
		_ = tp.Shutdown(context.Background())
	})

	var traceparent, reqID string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		reqID = r.Header.Get("X-Request-ID")
		_, _ = w.Write([]byte(pickTaskJSON))
	})

	ctx, parent := tp.Tracer("test").Start(context.Background(), "handler")
	ctx = logging.ContextWithRequestID(ctx, "req-99")
	_, err := client.GetPickTask(ctx, 7)
	parent.End()
	require.NoError(t, err)

	traceID := parent.SpanContext().TraceID().String()
	assert.True(t, strings.Contains(traceparent, traceID), "traceparent %q carries trace %s", traceparent, traceID)
	assert.Equal(t, "req-99", reqID)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Contains(t, names, "wms.GetPickTask")
}

func TestClient_MintsRequestID(t *testing.T) {
	var reqID string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reqID = r.Header.Get("X-Request-ID")
		_, _ = w.Write([]byte(pickTaskJSON))
	})

	_, err := client.GetPickTask(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, reqID, 36)
}
