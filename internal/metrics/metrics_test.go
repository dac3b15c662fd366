package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestInitMeterProvider(t *testing.T) {
	ctx := context.Background()
	handler, err := InitMeterProvider(ctx, "test-service")
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	if handler == nil {
		t.Fatal("expected non-nil handler")
	}
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics: status=%d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("GET /metrics: empty body")
	}
}

func TestInitAndRecord(t *testing.T) {
	ctx := context.Background()
	if _, err := InitMeterProvider(ctx, "metrics-test"); err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	if err := Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	// Recorders must be safe to call in any order and with any inputs.
	RecordTick(ctx, true, 120*time.Millisecond)
	RecordTick(ctx, false, time.Second)
	RecordTaskCreated(ctx, "t1")
	RecordDispatch(ctx, "t1")
	RecordReassignment(ctx, "t1")
	RecordEscalation(ctx, "timeout_cap", true)
	RecordEscalation(ctx, "no_supervisor", false)
	RecordUnsafeFallback(ctx)
	RecordEmergencyEscalation(ctx)
}

func TestRecordersBeforeInitAreNoops(t *testing.T) {
	// Instruments may be nil when Init was never called in this process
	// order; recording must not panic.
	ctx := context.Background()
	RecordTick(ctx, true, time.Millisecond)
	RecordTaskCreated(ctx, "t1")
	RecordEscalation(ctx, "x", false)
}
