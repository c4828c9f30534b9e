package billing

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Nobledental/NOBLE-OS-sub004/internal/domain/inventory"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/platform/events"
)

type mockRepo struct {
	tariffs map[string]*TariffItem
	boms    map[string][]BOMLine
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		tariffs: make(map[string]*TariffItem),
		boms:    make(map[string][]BOMLine),
	}
}

func (m *mockRepo) UpsertTariff(_ context.Context, t *TariffItem) error {
	m.tariffs[t.ProcedureCode] = t
	return nil
}

func (m *mockRepo) GetTariff(_ context.Context, code string) (*TariffItem, error) {
	t, ok := m.tariffs[code]
	if !ok {
		return nil, ErrTariffNotFound
	}
	return t, nil
}

func (m *mockRepo) ListTariffs(_ context.Context, _, _ int) ([]*TariffItem, int, error) {
	return nil, 0, nil
}

func (m *mockRepo) SetBOM(_ context.Context, code string, lines []BOMLine) error {
	m.boms[code] = lines
	return nil
}

func (m *mockRepo) GetBOM(_ context.Context, code string) ([]BOMLine, error) {
	return m.boms[code], nil
}

// mockMarker mimics the repository compare-and-set on billed_already.
type mockMarker struct {
	mu     sync.Mutex
	billed map[uuid.UUID]bool
}

func newMockMarker() *mockMarker {
	return &mockMarker{billed: make(map[uuid.UUID]bool)}
}

func (m *mockMarker) MarkBilled(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.billed[id] {
		return false, nil
	}
	m.billed[id] = true
	return true, nil
}

type mockStock struct {
	mu        sync.Mutex
	stock     map[string]int
	threshold map[string]int
}

func newMockStock() *mockStock {
	return &mockStock{stock: make(map[string]int), threshold: make(map[string]int)}
}

func (m *mockStock) Deduct(_ context.Context, code string, qty int) (*inventory.Deduction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.stock[code]
	if cur < qty {
		return nil, inventory.ErrInsufficientStock
	}
	m.stock[code] = cur - qty
	return &inventory.Deduction{
		ConsumableCode: code,
		Quantity:       qty,
		Remaining:      m.stock[code],
		LowStock:       m.stock[code] < m.threshold[code],
	}, nil
}

func newTestTrigger(t *testing.T) (*Trigger, *mockRepo, *mockStock, *events.Recorder) {
	t.Helper()
	repo := newMockRepo()
	stock := newMockStock()
	rec := events.NewRecorder()
	trig := NewTrigger(repo, stock, newMockMarker(), rec, zerolog.Nop())
	return trig, repo, stock, rec
}

func completion(code string) ProcedureCompletion {
	return ProcedureCompletion{
		TreatmentID:   uuid.New(),
		EncounterID:   uuid.New(),
		PatientID:     uuid.New(),
		DoctorID:      uuid.New(),
		ProcedureCode: code,
	}
}

func TestFire_EmitsBillingLineAndDeductions(t *testing.T) {
	trig, repo, stock, rec := newTestTrigger(t)
	repo.tariffs["RCT"] = &TariffItem{ProcedureCode: "RCT", UnitPrice: 450000, Currency: "INR"}
	repo.boms["RCT"] = []BOMLine{
		{ProcedureCode: "RCT", ConsumableCode: "GLOVES", Quantity: 2},
		{ProcedureCode: "RCT", ConsumableCode: "GP_POINTS", Quantity: 4},
	}
	stock.stock["GLOVES"] = 50
	stock.stock["GP_POINTS"] = 20

	if err := trig.Fire(context.Background(), completion("RCT")); err != nil {
		t.Fatalf("fire: %v", err)
	}

	lines := rec.Named(events.BillingLineRequested)
	if len(lines) != 1 {
		t.Fatalf("expected 1 billing line, got %d", len(lines))
	}
	line := lines[0].Payload.(BillingLine)
	if !line.PriceFound || line.Amount != 450000 {
		t.Errorf("unexpected billing line: %+v", line)
	}
	if n := len(rec.Named(events.StockDeductionRequested)); n != 2 {
		t.Errorf("expected 2 stock deductions, got %d", n)
	}
	if n := len(rec.Named(events.StockDepletionError)); n != 0 {
		t.Errorf("expected no depletion errors, got %d", n)
	}
}

func TestFire_TwiceEmitsOnce(t *testing.T) {
	trig, repo, stock, rec := newTestTrigger(t)
	repo.tariffs["SCALING"] = &TariffItem{ProcedureCode: "SCALING", UnitPrice: 80000, Currency: "INR"}
	repo.boms["SCALING"] = []BOMLine{{ProcedureCode: "SCALING", ConsumableCode: "GLOVES", Quantity: 2}}
	stock.stock["GLOVES"] = 50

	pc := completion("SCALING")
	if err := trig.Fire(context.Background(), pc); err != nil {
		t.Fatalf("first fire: %v", err)
	}
	if err := trig.Fire(context.Background(), pc); err != nil {
		t.Fatalf("second fire: %v", err)
	}

	if n := len(rec.Named(events.BillingLineRequested)); n != 1 {
		t.Errorf("expected exactly 1 billing line after double fire, got %d", n)
	}
	if n := len(rec.Named(events.StockDeductionRequested)); n != 1 {
		t.Errorf("expected exactly 1 deduction after double fire, got %d", n)
	}
	if got := stock.stock["GLOVES"]; got != 48 {
		t.Errorf("expected stock deducted once to 48, got %d", got)
	}
}

func TestFire_PriceNotFoundEmitsZeroLine(t *testing.T) {
	trig, _, _, rec := newTestTrigger(t)

	if err := trig.Fire(context.Background(), completion("UNPRICED")); err != nil {
		t.Fatalf("fire: %v", err)
	}

	lines := rec.Named(events.BillingLineRequested)
	if len(lines) != 1 {
		t.Fatalf("expected 1 billing line, got %d", len(lines))
	}
	line := lines[0].Payload.(BillingLine)
	if line.PriceFound || line.Amount != 0 {
		t.Errorf("expected zero-amount line with price_found=false, got %+v", line)
	}
}

func TestFire_DepletionRejectsLineOnly(t *testing.T) {
	trig, repo, stock, rec := newTestTrigger(t)
	repo.tariffs["EXTRACTION"] = &TariffItem{ProcedureCode: "EXTRACTION", UnitPrice: 150000, Currency: "INR"}
	repo.boms["EXTRACTION"] = []BOMLine{
		{ProcedureCode: "EXTRACTION", ConsumableCode: "GLOVES", Quantity: 10},
		{ProcedureCode: "EXTRACTION", ConsumableCode: "GAUZE", Quantity: 5},
	}
	stock.stock["GLOVES"] = 5
	stock.stock["GAUZE"] = 30

	if err := trig.Fire(context.Background(), completion("EXTRACTION")); err != nil {
		t.Fatalf("fire: %v", err)
	}

	if n := len(rec.Named(events.StockDepletionError)); n != 1 {
		t.Fatalf("expected 1 depletion error, got %d", n)
	}
	if got := stock.stock["GLOVES"]; got != 5 {
		t.Errorf("expected rejected line to leave stock at 5, got %d", got)
	}
	if got := stock.stock["GAUZE"]; got != 25 {
		t.Errorf("expected other line deducted to 25, got %d", got)
	}
	if n := len(rec.Named(events.BillingLineRequested)); n != 1 {
		t.Errorf("expected billing line still emitted, got %d", n)
	}
}

func TestFire_LowStockWarning(t *testing.T) {
	trig, repo, stock, rec := newTestTrigger(t)
	repo.boms["FILLING"] = []BOMLine{{ProcedureCode: "FILLING", ConsumableCode: "COMPOSITE", Quantity: 3}}
	stock.stock["COMPOSITE"] = 5
	stock.threshold["COMPOSITE"] = 4

	if err := trig.Fire(context.Background(), completion("FILLING")); err != nil {
		t.Fatalf("fire: %v", err)
	}

	if n := len(rec.Named(events.LowStockWarning)); n != 1 {
		t.Errorf("expected 1 low-stock warning, got %d", n)
	}
	if n := len(rec.Named(events.StockDeductionRequested)); n != 1 {
		t.Errorf("expected the deduction to proceed, got %d", n)
	}
}

func TestFire_ConcurrentInvocationsEmitOnce(t *testing.T) {
	trig, repo, stock, rec := newTestTrigger(t)
	repo.tariffs["RCT"] = &TariffItem{ProcedureCode: "RCT", UnitPrice: 450000, Currency: "INR"}
	stock.stock["GLOVES"] = 100

	pc := completion("RCT")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = trig.Fire(context.Background(), pc)
		}()
	}
	wg.Wait()

	if n := len(rec.Named(events.BillingLineRequested)); n != 1 {
		t.Errorf("expected exactly 1 billing line under concurrent fire, got %d", n)
	}
}
