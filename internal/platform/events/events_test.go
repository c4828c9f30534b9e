package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestBus_DispatchesByName(t *testing.T) {
	bus := NewBus()
	var hits int
	bus.Subscribe(StageChanged, func(_ context.Context, e Event) {
		hits++
	})

	bus.Publish(context.Background(), New(StageChanged, uuid.New(), uuid.New(), nil))
	bus.Publish(context.Background(), New(ToothStateChanged, uuid.New(), uuid.New(), nil))

	if hits != 1 {
		t.Errorf("expected 1 StageChanged dispatch, got %d", hits)
	}
}

func TestBus_WildcardSubscriber(t *testing.T) {
	bus := NewBus()
	var hits int
	bus.Subscribe(All, func(_ context.Context, e Event) {
		hits++
	})

	bus.Publish(context.Background(), New(StageChanged, uuid.New(), uuid.Nil, nil))
	bus.Publish(context.Background(), New(SlaBreached, uuid.New(), uuid.Nil, nil))

	if hits != 2 {
		t.Errorf("expected wildcard to see both events, got %d", hits)
	}
}

func TestBus_SynchronousDispatch(t *testing.T) {
	bus := NewBus()
	var seen Event
	bus.Subscribe(ProcedureCompleted, func(_ context.Context, e Event) {
		seen = e
	})

	pid := uuid.New()
	bus.Publish(context.Background(), New(ProcedureCompleted, pid, uuid.Nil, nil))

	// Dispatch happens on the publisher's goroutine; the event is visible
	// immediately after Publish returns.
	if seen.PatientID != pid {
		t.Error("expected event observed synchronously after Publish")
	}
}

func TestRecorder_Named(t *testing.T) {
	rec := NewRecorder()
	rec.Publish(context.Background(), New(LowStockWarning, uuid.New(), uuid.Nil, nil))
	rec.Publish(context.Background(), New(StageChanged, uuid.New(), uuid.Nil, nil))

	if got := len(rec.Named(LowStockWarning)); got != 1 {
		t.Errorf("expected 1 LowStockWarning, got %d", got)
	}
	if got := len(rec.Events()); got != 2 {
		t.Errorf("expected 2 total, got %d", got)
	}
}

func TestWebhookEngine_DeliversMatchingEvents(t *testing.T) {
	var delivered int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&delivered, 1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	bus := NewBus()
	engine := NewWebhookEngine(zerolog.New(os.Stderr))
	engine.DeliveryInterval = 10 * time.Millisecond
	engine.Register(Endpoint{Name: "billing", URL: srv.URL, EventName: BillingLineRequested})
	engine.AttachTo(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Start(ctx)

	bus.Publish(ctx, New(BillingLineRequested, uuid.New(), uuid.New(), nil))
	bus.Publish(ctx, New(StageChanged, uuid.New(), uuid.New(), nil))

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&delivered) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if got := atomic.LoadInt64(&delivered); got != 1 {
		t.Errorf("expected exactly 1 delivery, got %d", got)
	}
}
