package ocr

import (
	"regexp"
	"strings"
)

var (
	reRefRange = regexp.MustCompile(`\b\d+(\.\d+)?\s*-\s*\d+(\.\d+)?\b`)
	reLabUnits = regexp.MustCompile(`\b(mg/dl|mmol/l|g/dl|iu/l|u/l|%|k/ul|x10)\b`)
	reLabFlag  = regexp.MustCompile(`\((h|l|a|abn|c)\)|\b(high|low|abnormal|critical)\b`)
)

func hasRefRangePattern(s string) bool { return reRefRange.MatchString(s) }
func hasUnitsPattern(s string) bool    { return reLabUnits.MatchString(s) }
func hasFlagPattern(s string) bool     { return reLabFlag.MatchString(s) }

// naive heuristic confidence based on decoded text characteristics
func heuristicConfidence(txt string) float32 {
	// boost if we see common lab-report artifacts
	// (reference-range-ish, units-ish, flag-ish). Each adds ~0.15.
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if hasRefRangePattern(txtL) {
		score += 0.2
	}
	if hasUnitsPattern(txtL) {
		score += 0.15
	}
	if hasFlagPattern(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}
