package labs

import (
	"regexp"
	"sort"
	"strings"
)

// abbreviations maps medical shorthand to plain English. Expand over time.
var abbreviations = map[string]string{
	"DX":  "Diagnosis",
	"HTN": "Hypertension (high blood pressure)",
	"DM":  "Diabetes mellitus (diabetes)",
	"HLD": "Hyperlipidemia (high cholesterol)",
	"BID": "Twice a day",
	"TID": "Three times a day",
	"QID": "Four times a day",
	"QD":  "Once daily",
	"QHS": "Every night at bedtime",
	"PRN": "As needed",
	"PO":  "By mouth",
	"IV":  "Into a vein",
	"IM":  "Into a muscle",
	"SOB": "Shortness of breath",
	"CP":  "Chest pain",
	"WNL": "Within normal limits",
	"CBC": "Complete blood count (blood test)",
	"CMP": "Comprehensive metabolic panel (blood test)",
	"A1C": "Hemoglobin A1C (average blood sugar over ~3 months)",
}

// FindTerms returns the sorted, de-duplicated abbreviations present in text.
// Word-boundary matching keeps false positives down ("HTN," and "Dx:" still hit).
func FindTerms(text string) []string {
	if text == "" {
		return nil
	}
	upper := strings.ToUpper(text)

	var found []string
	for abbr := range abbreviations {
		pattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(abbr) + `\b`)
		if pattern.MatchString(upper) {
			found = append(found, abbr)
		}
	}
	sort.Strings(found)
	return found
}

// ExplainTerms maps found abbreviations to their plain-English explanations.
func ExplainTerms(terms []string) map[string]string {
	out := make(map[string]string, len(terms))
	for _, t := range terms {
		if expl, ok := abbreviations[t]; ok {
			out[t] = expl
		} else {
			out[t] = "Unknown term"
		}
	}
	return out
}
