// Package integration exercises the Postgres repositories against a real
// embedded database: schema migration, the compare-and-set guards on
// billing and escalation, and the conditional stock deduction.
package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nobledental/NOBLE-OS-sub004/internal/domain/billing"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/domain/chart"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/domain/complication"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/domain/encounter"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/domain/inventory"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/platform/db"
)

const (
	testPort     = 15433
	testDB       = "nobletest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var (
	testDSN string
	pg      *embeddedpostgres.EmbeddedPostgres
	pool    *pgxpool.Pool
)

func TestMain(m *testing.M) {
	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg = embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30 * time.Second),
	)

	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	var err error
	pool, err = db.NewPool(ctx, testDSN, 5, 1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		pg.Stop()
		os.Exit(1)
	}

	if _, err := db.NewMigrator(pool, "../../migrations").Up(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "migrations: %v\n", err)
		pool.Close()
		pg.Stop()
		os.Exit(1)
	}

	code := m.Run()

	pool.Close()
	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}
	os.Exit(code)
}

func createEncounter(t *testing.T, repo encounter.Repository) *encounter.Encounter {
	t.Helper()
	enc := &encounter.Encounter{
		PatientID:  uuid.New(),
		DoctorID:   uuid.New(),
		PatientAge: 30,
		Stage:      encounter.StageIntake,
	}
	if err := repo.Create(context.Background(), enc); err != nil {
		t.Fatalf("create encounter: %v", err)
	}
	return enc
}

func TestEncounterRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := encounter.NewRepo(pool)

	enc := createEncounter(t, repo)
	got, err := repo.GetByID(ctx, enc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Stage != encounter.StageIntake || got.PatientAge != 30 {
		t.Errorf("unexpected row: %+v", got)
	}

	got.Stage = encounter.StageExamination
	if err := repo.UpdateStage(ctx, got, encounter.StageIntake); err != nil {
		t.Fatalf("update stage: %v", err)
	}

	// A writer holding the stale stage loses.
	got.Stage = encounter.StageInvestigation
	err = repo.UpdateStage(ctx, got, encounter.StageIntake)
	if !errors.Is(err, encounter.ErrStageConflict) {
		t.Fatalf("expected ErrStageConflict, got %v", err)
	}

	if err := repo.AddTransition(ctx, &encounter.StageTransition{
		EncounterID: enc.ID,
		FromStage:   encounter.StageIntake,
		ToStage:     encounter.StageExamination,
	}); err != nil {
		t.Fatalf("add transition: %v", err)
	}
	history, err := repo.StageHistory(ctx, enc.ID)
	if err != nil || len(history) != 1 {
		t.Fatalf("expected 1 transition, got %d (err %v)", len(history), err)
	}
}

func TestTreatmentMarkBilledOnce(t *testing.T) {
	ctx := context.Background()
	repo := encounter.NewRepo(pool)

	enc := createEncounter(t, repo)
	rec := &encounter.TreatmentRecord{
		EncounterID:   enc.ID,
		PatientID:     enc.PatientID,
		DoctorID:      enc.DoctorID,
		ProcedureCode: "RCT-MOLAR",
		Category:      "endodontics",
		Teeth:         []string{"16"},
		Status:        encounter.TreatmentPlanned,
		SessionNumber: 1,
		TotalSessions: 1,
	}
	if err := repo.CreateTreatment(ctx, rec); err != nil {
		t.Fatalf("create treatment: %v", err)
	}

	won, err := repo.MarkBilled(ctx, rec.ID)
	if err != nil || !won {
		t.Fatalf("first mark: won=%v err=%v", won, err)
	}
	won, err = repo.MarkBilled(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Error("second mark must lose the compare-and-set")
	}

	got, err := repo.GetTreatment(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.BilledAlready {
		t.Error("expected billed_already persisted")
	}
}

func TestChartPersistsSnapshot(t *testing.T) {
	ctx := context.Background()
	encRepo := encounter.NewRepo(pool)
	chartRepo := chart.NewRepo(pool)

	enc := createEncounter(t, encRepo)
	c := &chart.Chart{
		EncounterID: enc.ID,
		PatientID:   enc.PatientID,
		Mode:        chart.DentitionAdult,
		Teeth:       map[string]*chart.Tooth{},
	}
	if err := chartRepo.CreateChart(ctx, c); err != nil {
		t.Fatalf("create chart: %v", err)
	}

	tooth := &chart.Tooth{
		FDI:      "16",
		Status:   chart.StatusDecayed,
		Surfaces: chart.Surfaces{Occlusal: true, Mesial: true},
	}
	c.Teeth[tooth.FDI] = tooth
	snap := chart.Recompute(c)
	if err := chartRepo.ApplyToothUpdate(ctx, c, tooth, snap); err != nil {
		t.Fatalf("apply update: %v", err)
	}

	got, err := chartRepo.GetByEncounter(ctx, enc.ID)
	if err != nil {
		t.Fatalf("get chart: %v", err)
	}
	if got.Teeth["16"] == nil || got.Teeth["16"].Status != chart.StatusDecayed {
		t.Fatalf("tooth state not persisted: %+v", got.Teeth)
	}

	stored, err := chartRepo.GetSnapshot(ctx, enc.ID)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if stored.CavityByTooth["16"] != snap.CavityByTooth["16"] {
		t.Errorf("snapshot mismatch: stored %v computed %v", stored.CavityByTooth, snap.CavityByTooth)
	}
}

func TestInventoryDeductConditional(t *testing.T) {
	ctx := context.Background()
	repo := inventory.NewRepo(pool)

	if err := repo.CreateConsumable(ctx, &inventory.Consumable{
		Code: "GLOVES", Name: "Nitrile gloves", Unit: "pair", ReorderThreshold: 10,
	}); err != nil {
		t.Fatalf("create consumable: %v", err)
	}
	if _, err := repo.Restock(ctx, "GLOVES", 5); err != nil {
		t.Fatalf("restock: %v", err)
	}

	if _, err := repo.Deduct(ctx, "GLOVES", 10); !errors.Is(err, inventory.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	remaining, err := repo.Deduct(ctx, "GLOVES", 3)
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if remaining != 2 {
		t.Errorf("expected 2 remaining, got %d", remaining)
	}

	// The failed deduction must not have touched the balance.
	stock, err := repo.GetStock(ctx, "GLOVES")
	if err != nil {
		t.Fatal(err)
	}
	if stock.Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", stock.Quantity)
	}
}

func TestTariffAndBOM(t *testing.T) {
	ctx := context.Background()
	repo := billing.NewRepo(pool)

	item := &billing.TariffItem{
		ProcedureCode: "EXT-SIMPLE",
		Description:   "Simple extraction",
		UnitPrice:     150000,
		Currency:      "INR",
	}
	if err := repo.UpsertTariff(ctx, item); err != nil {
		t.Fatalf("upsert tariff: %v", err)
	}

	got, err := repo.GetTariff(ctx, "EXT-SIMPLE")
	if err != nil {
		t.Fatalf("get tariff: %v", err)
	}
	if got.UnitPrice != 150000 {
		t.Errorf("expected 150000 paise, got %d", got.UnitPrice)
	}

	if _, err := repo.GetTariff(ctx, "NO-SUCH-CODE"); !errors.Is(err, billing.ErrTariffNotFound) {
		t.Fatalf("expected ErrTariffNotFound, got %v", err)
	}

	lines := []billing.BOMLine{
		{ProcedureCode: "EXT-SIMPLE", ConsumableCode: "GAUZE", Quantity: 4},
		{ProcedureCode: "EXT-SIMPLE", ConsumableCode: "LIDOCAINE", Quantity: 1},
	}
	if err := repo.SetBOM(ctx, "EXT-SIMPLE", lines); err != nil {
		t.Fatalf("set bom: %v", err)
	}
	bom, err := repo.GetBOM(ctx, "EXT-SIMPLE")
	if err != nil || len(bom) != 2 {
		t.Fatalf("expected 2 bom lines, got %d (err %v)", len(bom), err)
	}

	// Replacing the BOM removes the old lines.
	if err := repo.SetBOM(ctx, "EXT-SIMPLE", lines[:1]); err != nil {
		t.Fatalf("replace bom: %v", err)
	}
	bom, err = repo.GetBOM(ctx, "EXT-SIMPLE")
	if err != nil || len(bom) != 1 {
		t.Fatalf("expected 1 bom line after replace, got %d (err %v)", len(bom), err)
	}
}

func TestComplicationEscalationRace(t *testing.T) {
	ctx := context.Background()
	repo := complication.NewRepo(pool)

	created := time.Now().UTC().Truncate(time.Microsecond)
	rep := &complication.ComplicationReport{
		PatientID:   uuid.New(),
		EncounterID: uuid.New(),
		Severity:    complication.SeverityHigh,
		SymptomPath: []string{"root", "swelling", "swelling_spreading"},
		CreatedAt:   created,
		SLADeadline: created.Add(complication.ResponseSLA),
	}
	if err := repo.Create(ctx, rep); err != nil {
		t.Fatalf("create report: %v", err)
	}

	open, err := repo.ListOpen(ctx)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range open {
		if r.ID == rep.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the fresh report listed as open")
	}

	at := created.Add(complication.ResponseSLA + time.Minute)
	won, err := repo.MarkEscalated(ctx, rep.ID, at)
	if err != nil || !won {
		t.Fatalf("escalate: won=%v err=%v", won, err)
	}
	won, err = repo.MarkEscalated(ctx, rep.ID, at.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Error("repeat escalation must lose the compare-and-set")
	}

	won, err = repo.MarkResolved(ctx, rep.ID, at.Add(2*time.Minute))
	if err != nil || !won {
		t.Fatalf("resolve: won=%v err=%v", won, err)
	}
	won, err = repo.MarkResolved(ctx, rep.ID, at.Add(3*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Error("repeat resolution must lose the compare-and-set")
	}

	got, err := repo.GetByID(ctx, rep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Escalated || got.ResolvedAt == nil {
		t.Errorf("unexpected terminal state: %+v", got)
	}
}
