package chart

import (
	"encoding/json"
	"testing"
)

func TestCavityClass_PosteriorCompound(t *testing.T) {
	// Posterior tooth with occlusal + mesial involvement is the compound
	// proximal class, not the single-surface pit class.
	s := Surfaces{Occlusal: true, Mesial: true}
	if got := CavityClass(s, false); got != CavityII {
		t.Errorf("expected Class II, got %d", got)
	}
}

func TestCavityClass_Table(t *testing.T) {
	cases := []struct {
		name     string
		surfaces Surfaces
		anterior bool
		want     int
	}{
		{"posterior occlusal only", Surfaces{Occlusal: true}, false, CavityI},
		{"posterior distal only", Surfaces{Distal: true}, false, CavityII},
		{"posterior buccal smooth", Surfaces{Buccal: true}, false, CavityV},
		{"anterior proximal", Surfaces{Mesial: true}, true, CavityIII},
		{"anterior proximal incisal", Surfaces{Mesial: true, Occlusal: true}, true, CavityIV},
		{"anterior lingual smooth", Surfaces{Lingual: true}, true, CavityV},
		{"anterior incisal edge", Surfaces{Occlusal: true}, true, CavityVI},
		{"no surfaces", Surfaces{}, false, CavityNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CavityClass(tc.surfaces, tc.anterior); got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func missingSet(ids ...string) map[string]bool {
	m := make(map[string]bool)
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func TestClassifyArch_BoundedSaddle(t *testing.T) {
	// 12-17 missing, 11 and 18 present: the saddle is tooth-bounded at
	// both ends, so the class must be a bounded one.
	missing := missingSet("12", "13", "14", "15", "16", "17")
	got := ClassifyArch(missing, true)
	if got.Class != KennedyClassIII {
		t.Errorf("expected Class III (bounded), got %s", got.Class)
	}
	if got.Modifications != 0 {
		t.Errorf("expected 0 modifications, got %d", got.Modifications)
	}
}

func TestClassifyArch_BilateralDistalExtension(t *testing.T) {
	missing := missingSet("17", "18", "27", "28")
	got := ClassifyArch(missing, true)
	if got.Class != KennedyClassI {
		t.Errorf("expected Class I, got %s", got.Class)
	}
}

func TestClassifyArch_UnilateralDistalExtension(t *testing.T) {
	missing := missingSet("46", "47", "48")
	got := ClassifyArch(missing, false)
	if got.Class != KennedyClassII {
		t.Errorf("expected Class II, got %s", got.Class)
	}
}

func TestClassifyArch_ClassIIWithModification(t *testing.T) {
	missing := missingSet("46", "47", "48", "35")
	got := ClassifyArch(missing, false)
	if got.Class != KennedyClassII {
		t.Errorf("expected Class II, got %s", got.Class)
	}
	if got.Modifications != 1 {
		t.Errorf("expected 1 modification, got %d", got.Modifications)
	}
}

func TestClassifyArch_AnteriorMidlineIsClassIV(t *testing.T) {
	missing := missingSet("11", "21")
	got := ClassifyArch(missing, true)
	if got.Class != KennedyClassIV {
		t.Errorf("expected Class IV, got %s", got.Class)
	}
	if got.Modifications != 0 {
		t.Errorf("Class IV admits no modifications, got %d", got.Modifications)
	}
}

func TestClassifyArch_MissingThirdMolarsIgnored(t *testing.T) {
	// Absent third molars alone do not open a saddle.
	missing := missingSet("18", "28")
	got := ClassifyArch(missing, true)
	if got.Class != KennedyNone {
		t.Errorf("expected no classification, got %s", got.Class)
	}
}

func TestClassifyArch_FullyEdentulous(t *testing.T) {
	ids := make([]string, 0, 16)
	for _, id := range archSequence(true) {
		ids = append(ids, id)
	}
	got := ClassifyArch(missingSet(ids...), true)
	if got.Class != KennedyEdentulous {
		t.Errorf("expected edentulous, got %s", got.Class)
	}
}

func TestClassifyArch_NoMissingTeeth(t *testing.T) {
	got := ClassifyArch(map[string]bool{}, false)
	if got.Class != KennedyNone {
		t.Errorf("expected no classification, got %s", got.Class)
	}
}

func newTestChart(mode DentitionMode) *Chart {
	return &Chart{Mode: mode, Teeth: make(map[string]*Tooth)}
}

func TestScoreDMFT(t *testing.T) {
	c := newTestChart(DentitionAdult)
	c.Teeth["16"] = &Tooth{FDI: "16", Status: StatusDecayed}
	c.Teeth["26"] = &Tooth{FDI: "26", Status: StatusMissing}
	c.Teeth["36"] = &Tooth{FDI: "36", Status: StatusRestored}
	c.Teeth["46"] = &Tooth{FDI: "46", Status: StatusCrowned}
	c.Teeth["11"] = &Tooth{FDI: "11", Status: StatusHealthy}

	score := ScoreDMFT(c)
	if score.Decayed != 1 || score.Missing != 1 || score.Filled != 2 {
		t.Errorf("unexpected counts: %+v", score)
	}
	if score.Total != 32 {
		t.Errorf("expected denominator 32 for adult dentition, got %d", score.Total)
	}
	want := 4.0 / 32.0
	if score.Rate != want {
		t.Errorf("expected rate %f, got %f", want, score.Rate)
	}
}

func TestRecompute_PSRWorstPerSextant(t *testing.T) {
	c := newTestChart(DentitionAdult)
	c.Teeth["16"] = &Tooth{FDI: "16", Status: StatusHealthy, ProbingCode: 2}
	c.Teeth["17"] = &Tooth{FDI: "17", Status: StatusHealthy, ProbingCode: 4}
	c.Teeth["14"] = &Tooth{FDI: "14", Status: StatusHealthy, ProbingCode: 4}
	c.Teeth["11"] = &Tooth{FDI: "11", Status: StatusHealthy, ProbingCode: 1}

	snap := Recompute(c)
	// 14, 16, 17 share the upper-right posterior sextant; ties on the worst
	// code collapse to the severity value.
	if got := snap.PSRBySextant[1]; got != 4 {
		t.Errorf("expected sextant 1 code 4, got %d", got)
	}
	if got := snap.PSRBySextant[2]; got != 1 {
		t.Errorf("expected sextant 2 code 1, got %d", got)
	}
}

func TestRecompute_Pure(t *testing.T) {
	build := func() *Chart {
		c := newTestChart(DentitionAdult)
		c.Teeth["16"] = &Tooth{FDI: "16", Status: StatusDecayed, Surfaces: Surfaces{Occlusal: true, Mesial: true}}
		c.Teeth["21"] = &Tooth{FDI: "21", Status: StatusMissing}
		c.Teeth["36"] = &Tooth{FDI: "36", Status: StatusRestored, ProbingCode: 3}
		return c
	}

	first, err := json.Marshal(Recompute(build()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(Recompute(build()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Error("expected byte-identical snapshots for identical charts")
	}
}

func TestRecompute_CariousToothClassified(t *testing.T) {
	c := newTestChart(DentitionAdult)
	c.Teeth["16"] = &Tooth{FDI: "16", Status: StatusDecayed, Surfaces: Surfaces{Occlusal: true, Mesial: true}}
	c.Teeth["36"] = &Tooth{FDI: "36", Status: StatusRestored, Surfaces: Surfaces{Occlusal: true}}

	snap := Recompute(c)
	if got := snap.CavityByTooth["16"]; got != CavityII {
		t.Errorf("expected Class II on 16, got %d", got)
	}
	if _, ok := snap.CavityByTooth["36"]; ok {
		t.Error("restored tooth must not carry a cavity class")
	}
}

func TestDentitionForAge(t *testing.T) {
	cases := []struct {
		age  int
		want DentitionMode
	}{
		{3, DentitionChild},
		{6, DentitionMixed},
		{12, DentitionMixed},
		{13, DentitionAdult},
		{40, DentitionAdult},
	}
	for _, tc := range cases {
		if got := DentitionForAge(tc.age); got != tc.want {
			t.Errorf("age %d: expected %s, got %s", tc.age, tc.want, got)
		}
	}
}

func TestValidFDI(t *testing.T) {
	if !ValidFDI("11", DentitionAdult) || !ValidFDI("48", DentitionAdult) {
		t.Error("expected permanent ids valid in adult mode")
	}
	if ValidFDI("51", DentitionAdult) {
		t.Error("deciduous id must be invalid in adult mode")
	}
	if !ValidFDI("51", DentitionChild) || !ValidFDI("85", DentitionChild) {
		t.Error("expected deciduous ids valid in child mode")
	}
	if ValidFDI("16", DentitionChild) {
		t.Error("permanent id must be invalid in child mode")
	}
	if !ValidFDI("16", DentitionMixed) || !ValidFDI("55", DentitionMixed) {
		t.Error("expected both sets valid in mixed mode")
	}
	if ValidFDI("19", DentitionAdult) || ValidFDI("99", DentitionMixed) {
		t.Error("expected out-of-range ids rejected")
	}
}

func TestSextant_DeciduousFolds(t *testing.T) {
	if got := Sextant("55"); got != 1 {
		t.Errorf("expected deciduous 55 in sextant 1, got %d", got)
	}
	if got := Sextant("71"); got != 5 {
		t.Errorf("expected deciduous 71 in sextant 5, got %d", got)
	}
}
