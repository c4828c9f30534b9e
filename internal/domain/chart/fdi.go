package chart

import "fmt"

// DentitionMode selects which FDI tooth set is valid for a patient.
type DentitionMode string

const (
	DentitionAdult DentitionMode = "ADULT"
	DentitionMixed DentitionMode = "MIXED"
	DentitionChild DentitionMode = "CHILD"
)

// DentitionForAge maps patient age to the dentition mode consulted at
// chart-edit validation time. Primary teeth only under 6, mixed dentition
// through 12, permanent from 13 on.
func DentitionForAge(ageYears int) DentitionMode {
	switch {
	case ageYears < 6:
		return DentitionChild
	case ageYears < 13:
		return DentitionMixed
	default:
		return DentitionAdult
	}
}

// FDI ids are two-digit strings: quadrant digit then tooth-in-quadrant digit.
// Permanent quadrants are 1-4 with positions 1-8; deciduous quadrants are
// 5-8 with positions 1-5.

var (
	permanentSet = buildFDISet(1, 4, 8)
	deciduousSet = buildFDISet(5, 8, 5)
)

func buildFDISet(qFrom, qTo, maxPos int) map[string]bool {
	set := make(map[string]bool)
	for q := qFrom; q <= qTo; q++ {
		for p := 1; p <= maxPos; p++ {
			set[fmt.Sprintf("%d%d", q, p)] = true
		}
	}
	return set
}

// ValidFDI reports whether id names a tooth in the given dentition mode.
func ValidFDI(id string, mode DentitionMode) bool {
	switch mode {
	case DentitionAdult:
		return permanentSet[id]
	case DentitionChild:
		return deciduousSet[id]
	case DentitionMixed:
		return permanentSet[id] || deciduousSet[id]
	}
	return false
}

// DentitionSize is the number of teeth in a full dentition of the given
// mode, used as the DMFT denominator.
func DentitionSize(mode DentitionMode) int {
	switch mode {
	case DentitionChild:
		return len(deciduousSet)
	case DentitionMixed:
		return len(permanentSet) + len(deciduousSet)
	default:
		return len(permanentSet)
	}
}

func quadrant(id string) int { return int(id[0] - '0') }
func position(id string) int { return int(id[1] - '0') }

// IsPermanent reports whether the FDI id names a permanent tooth.
func IsPermanent(id string) bool { return permanentSet[id] }

// IsUpper reports whether the tooth sits in the maxillary arch.
func IsUpper(id string) bool {
	q := quadrant(id)
	return q == 1 || q == 2 || q == 5 || q == 6
}

// IsAnterior reports whether the tooth is an incisor or canine
// (positions 1-3 in any quadrant).
func IsAnterior(id string) bool { return position(id) <= 3 }

// IsThirdMolar reports whether the tooth is a third molar. Third molars
// bound an edentulous gap only when present; a missing third molar is not
// itself counted as a gap.
func IsThirdMolar(id string) bool { return IsPermanent(id) && position(id) == 8 }

// Sextant returns the periodontal screening sextant (1-6) for a tooth:
// upper right posterior, upper anterior, upper left posterior, lower left
// posterior, lower anterior, lower right posterior.
func Sextant(id string) int {
	q, anterior := quadrant(id), IsAnterior(id)
	// Deciduous quadrants fold onto the permanent ones.
	if q >= 5 {
		q -= 4
	}
	switch {
	case q <= 2 && anterior:
		return 2
	case q == 1:
		return 1
	case q == 2:
		return 3
	case anterior:
		return 5
	case q == 3:
		return 4
	default:
		return 6
	}
}

// archSequence returns the FDI ids of one permanent arch in anatomical
// order, most-distal right to most-distal left. Used by the edentulism
// classifier.
func archSequence(upper bool) []string {
	qRight, qLeft := 4, 3
	if upper {
		qRight, qLeft = 1, 2
	}
	seq := make([]string, 0, 16)
	for p := 8; p >= 1; p-- {
		seq = append(seq, fmt.Sprintf("%d%d", qRight, p))
	}
	for p := 1; p <= 8; p++ {
		seq = append(seq, fmt.Sprintf("%d%d", qLeft, p))
	}
	return seq
}
