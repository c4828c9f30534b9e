package chart

import (
	"time"

	"github.com/google/uuid"
)

// Tooth statuses recorded on the chart.
const (
	StatusHealthy   = "healthy"
	StatusDecayed   = "decayed"
	StatusRestored  = "restored"
	StatusMissing   = "missing"
	StatusRootCanal = "root_canal"
	StatusImpacted  = "impacted"
	StatusCrowned   = "crowned"
	StatusBridged   = "bridged"
)

var validStatuses = map[string]bool{
	StatusHealthy:   true,
	StatusDecayed:   true,
	StatusRestored:  true,
	StatusMissing:   true,
	StatusRootCanal: true,
	StatusImpacted:  true,
	StatusCrowned:   true,
	StatusBridged:   true,
}

// Surfaces are the five independently chartable tooth surfaces. Occlusal
// doubles as incisal for anterior teeth, buccal as facial, lingual as
// palatal.
type Surfaces struct {
	Mesial   bool `db:"mesial" json:"mesial"`
	Distal   bool `db:"distal" json:"distal"`
	Occlusal bool `db:"occlusal" json:"occlusal"`
	Buccal   bool `db:"buccal" json:"buccal"`
	Lingual  bool `db:"lingual" json:"lingual"`
}

// Any reports whether at least one surface is marked.
func (s Surfaces) Any() bool {
	return s.Mesial || s.Distal || s.Occlusal || s.Buccal || s.Lingual
}

func (s Surfaces) proximal() bool { return s.Mesial || s.Distal }

// Tooth maps to the tooth_state table: one row per charted tooth per
// encounter. Rows are overwritten, never deleted; visit history is
// reconstructed from the treatment log.
type Tooth struct {
	FDI          string    `db:"fdi" json:"fdi"`
	Status       string    `db:"status" json:"status"`
	Surfaces     Surfaces  `db:"surfaces" json:"surfaces"`
	Notes        string    `db:"notes" json:"notes,omitempty"`
	ProcedureIDs []string  `db:"procedure_ids" json:"procedure_ids,omitempty"`
	ProbingCode  int       `db:"probing_code" json:"probing_code"`
	Bleeding     bool      `db:"bleeding" json:"bleeding"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Chart is the full tooth map for one encounter.
type Chart struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	EncounterID uuid.UUID         `db:"encounter_id" json:"encounter_id"`
	PatientID   uuid.UUID         `db:"patient_id" json:"patient_id"`
	Mode        DentitionMode     `db:"mode" json:"mode"`
	Teeth       map[string]*Tooth `json:"teeth"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// Charted returns the number of teeth recorded beyond the healthy default.
func (c *Chart) Charted() int {
	n := 0
	for _, t := range c.Teeth {
		if t.Status != StatusHealthy || t.Surfaces.Any() || t.ProbingCode > 0 || t.Bleeding {
			n++
		}
	}
	return n
}

// ToothEvent is a single charting edit applied to one tooth.
type ToothEvent struct {
	FDI         string    `json:"fdi"`
	Status      string    `json:"status,omitempty"`
	Surfaces    *Surfaces `json:"surfaces,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	ProcedureID string    `json:"procedure_id,omitempty"`
	ProbingCode *int      `json:"probing_code,omitempty"`
	Bleeding    *bool     `json:"bleeding,omitempty"`
}
