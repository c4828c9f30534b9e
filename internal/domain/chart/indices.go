package chart

// Clinical index calculators. All of them are pure functions of the full
// chart snapshot: indices such as the decay rate and the edentulism class
// need arch-wide context, so recomputation always rebuilds the whole
// snapshot rather than patching a single tooth's contribution.

// Cavity classes per G.V. Black (1-6); 0 means no classifiable lesion.
const (
	CavityNone = 0
	CavityI    = 1
	CavityII   = 2
	CavityIII  = 3
	CavityIV   = 4
	CavityV    = 5
	CavityVI   = 6
)

// Kennedy partial-edentulism classes.
const (
	KennedyNone       = ""
	KennedyClassI     = "I"
	KennedyClassII    = "II"
	KennedyClassIII   = "III"
	KennedyClassIV    = "IV"
	KennedyEdentulous = "EDENTULOUS"
)

// ArchClassification is the Kennedy class for one arch plus the
// modification count (additional edentulous spaces beyond the classifying
// one).
type ArchClassification struct {
	Class         string `json:"class"`
	Modifications int    `json:"modifications"`
}

// DMFTScore aggregates decayed/missing/filled counts over the dentition.
type DMFTScore struct {
	Decayed int     `json:"decayed"`
	Missing int     `json:"missing"`
	Filled  int     `json:"filled"`
	Total   int     `json:"total"`
	Rate    float64 `json:"rate"`
}

// IndexSnapshot is the derived classification state for a chart. It is a
// cache: invalidated and rebuilt in full on every tooth mutation, never
// partially updated, and never edited directly.
type IndexSnapshot struct {
	CavityByTooth map[string]int             `json:"cavity_by_tooth"`
	Edentulism    map[string]ArchClassification `json:"edentulism"`
	DMFT          DMFTScore                  `json:"dmft"`
	PSRBySextant  map[int]int                `json:"psr_by_sextant"`
}

// Recompute derives the full index snapshot from a chart. It is
// deterministic and side-effect free: identical charts produce identical
// snapshots regardless of the order the underlying events arrived in.
func Recompute(c *Chart) *IndexSnapshot {
	snap := &IndexSnapshot{
		CavityByTooth: make(map[string]int),
		Edentulism:    make(map[string]ArchClassification),
		PSRBySextant:  make(map[int]int),
	}

	for fdi, tooth := range c.Teeth {
		if tooth.Status == StatusDecayed {
			if class := CavityClass(tooth.Surfaces, IsAnterior(fdi)); class != CavityNone {
				snap.CavityByTooth[fdi] = class
			}
		}
		if sx := Sextant(fdi); tooth.ProbingCode > snap.PSRBySextant[sx] {
			snap.PSRBySextant[sx] = tooth.ProbingCode
		}
	}

	missing := make(map[string]bool)
	for fdi, tooth := range c.Teeth {
		if tooth.Status == StatusMissing {
			missing[fdi] = true
		}
	}
	if upper := ClassifyArch(missing, true); upper.Class != KennedyNone {
		snap.Edentulism["upper"] = upper
	}
	if lower := ClassifyArch(missing, false); lower.Class != KennedyNone {
		snap.Edentulism["lower"] = lower
	}

	snap.DMFT = ScoreDMFT(c)
	return snap
}

// CavityClass maps the set of affected surfaces plus tooth position to a
// Black class. The mapping is the fixed published scheme, not
// configurable:
//
//	posterior: proximal involvement -> II, occlusal pits/fissures -> I,
//	           smooth buccal/lingual only -> V
//	anterior:  proximal + incisal angle -> IV, proximal only -> III,
//	           incisal edge only -> VI, smooth surface only -> V
func CavityClass(s Surfaces, anterior bool) int {
	if !s.Any() {
		return CavityNone
	}
	if anterior {
		switch {
		case s.proximal() && s.Occlusal:
			return CavityIV
		case s.proximal():
			return CavityIII
		case s.Occlusal:
			return CavityVI
		default:
			return CavityV
		}
	}
	switch {
	case s.proximal():
		return CavityII
	case s.Occlusal:
		return CavityI
	default:
		return CavityV
	}
}

// ClassifyArch derives the Kennedy classification for one permanent arch
// from the set of missing FDI ids. Rules are purely positional:
// contiguous runs of missing teeth form saddles; a saddle touching the
// distal end of the arch is unbounded. Missing third molars do not open a
// saddle on their own, but a present third molar bounds one.
func ClassifyArch(missing map[string]bool, upper bool) ArchClassification {
	seq := archSequence(upper)

	// Trim absent third molars off both ends so they neither bound nor
	// extend a saddle.
	start, end := 0, len(seq)
	if IsThirdMolar(seq[0]) && missing[seq[0]] {
		start++
	}
	if IsThirdMolar(seq[end-1]) && missing[seq[end-1]] {
		end--
	}
	seq = seq[start:end]

	type gap struct {
		from, to  int
		unbounded bool
	}
	var gaps []gap
	for i := 0; i < len(seq); {
		if !missing[seq[i]] {
			i++
			continue
		}
		j := i
		for j < len(seq) && missing[seq[j]] {
			j++
		}
		gaps = append(gaps, gap{from: i, to: j - 1, unbounded: i == 0 || j == len(seq)})
		i = j
	}

	if len(gaps) == 0 {
		return ArchClassification{Class: KennedyNone}
	}
	if len(gaps) == 1 && gaps[0].from == 0 && gaps[0].to == len(seq)-1 {
		return ArchClassification{Class: KennedyEdentulous}
	}

	unbounded := 0
	for _, g := range gaps {
		if g.unbounded {
			unbounded++
		}
	}

	switch unbounded {
	case 2:
		return ArchClassification{Class: KennedyClassI, Modifications: len(gaps) - 2}
	case 1:
		return ArchClassification{Class: KennedyClassII, Modifications: len(gaps) - 1}
	}

	// All saddles bounded. A single anterior saddle crossing the midline
	// is Class IV, which admits no modifications by definition.
	mid := len(seq) / 2 // first index of the left half
	if len(gaps) == 1 && gaps[0].from < mid && gaps[0].to >= mid {
		return ArchClassification{Class: KennedyClassIV}
	}
	return ArchClassification{Class: KennedyClassIII, Modifications: len(gaps) - 1}
}

// ScoreDMFT counts decayed, missing, and filled teeth over the dentition
// in play. Restorations, crowns, and root-canal-treated teeth all count as
// filled. The rate is normalized against the full dentition size for the
// chart's mode.
func ScoreDMFT(c *Chart) DMFTScore {
	var score DMFTScore
	for _, tooth := range c.Teeth {
		switch tooth.Status {
		case StatusDecayed:
			score.Decayed++
		case StatusMissing:
			score.Missing++
		case StatusRestored, StatusCrowned, StatusRootCanal:
			score.Filled++
		}
	}
	score.Total = DentitionSize(c.Mode)
	if score.Total > 0 {
		score.Rate = float64(score.Decayed+score.Missing+score.Filled) / float64(score.Total)
	}
	return score
}
