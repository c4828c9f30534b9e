// Package events carries the effect requests this core emits for external
// collaborators (billing ledger, inventory system, escalation pager). The
// clinical services never apply financial or stock state themselves; they
// publish events here and move on.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event names exposed to collaborators.
const (
	ToothStateChanged       = "ToothStateChanged"
	IndexSnapshotUpdated    = "ClinicalIndexSnapshotUpdated"
	StageChanged            = "StageChanged"
	ProcedureCompleted      = "ProcedureCompleted"
	BillingLineRequested    = "BillingLineItemRequested"
	StockDeductionRequested = "StockDeductionRequested"
	LowStockWarning         = "LowStockWarning"
	StockDepletionError     = "StockDepletionError"
	ComplicationClassified  = "ComplicationClassified"
	SlaBreached             = "SlaBreached"
	UrgentEscalation        = "UrgentEscalation"
)

// Event is a single emitted effect request. Every event carries the owning
// patient and encounter ids for correlation.
type Event struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	PatientID   uuid.UUID   `json:"patient_id"`
	EncounterID uuid.UUID   `json:"encounter_id,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Payload     interface{} `json:"payload,omitempty"`
}

// New builds an event stamped with a fresh id and the current time.
func New(name string, patientID, encounterID uuid.UUID, payload interface{}) Event {
	return Event{
		ID:          uuid.New(),
		Name:        name,
		PatientID:   patientID,
		EncounterID: encounterID,
		OccurredAt:  time.Now().UTC(),
		Payload:     payload,
	}
}

// Handler consumes a published event.
type Handler func(ctx context.Context, e Event)

// Publisher is the emit side of the bus, all the domain services need.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Bus is a synchronous in-process event dispatcher. Subscribers registered
// for an event name (or for All) run on the publisher's goroutine, so a
// caller observing a state mutation also observes its emitted events.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]Handler
}

// All subscribes a handler to every event name.
const All = "*"

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]Handler)}
}

// Subscribe registers a handler for the given event name.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[name] = append(b.subs[name], h)
}

// Publish dispatches the event to all matching subscribers synchronously.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[e.Name])+len(b.subs[All]))
	handlers = append(handlers, b.subs[e.Name]...)
	handlers = append(handlers, b.subs[All]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, e)
	}
}

// Recorder is a test helper that captures published events.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns the recorded events with the given name.
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
