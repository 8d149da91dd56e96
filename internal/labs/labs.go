// Package labs extracts lab measurements from OCR'd document text and
// renders plain-English explanations of them.
package labs

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/anthill1650-eng/Medscan/internal/entity"
)

// Line shapes handled:
//
//	A1C 6.1 (H)
//	GLUCOSE 102 H 70-99
//	WBC 8.2 4.0-10.5
//	Creatinine: 1.10 (0.70-1.30)
var (
	// NAME <value> (<flag>) [units] [ref], ref optionally parenthesized
	reNameValueParenFlag = regexp.MustCompile(
		`(?i)^(?P<name>[A-Za-z][A-Za-z0-9\s/\-%]+?)[:\s]+(?P<value>-?\d+(\.\d+)?)\s*(?P<units>[A-Za-z%/.\-\s]{0,12})?\s*(\((?P<flag>[A-Za-z]+)\))?\s*(\(?\s*(?P<ref>\d+(\.\d+)?\s*-\s*\d+(\.\d+)?)\s*\)?)?$`)

	// NAME <value> <flag> [units] [ref]
	reNameValueBareFlag = regexp.MustCompile(
		`(?i)^(?P<name>[A-Za-z][A-Za-z0-9\s/\-%]+?)\s+(?P<value>-?\d+(\.\d+)?)\s+(?P<flag>H|L|A|ABN|HIGH|LOW|ABNORMAL|CRITICAL|C)\s*(?P<units>[A-Za-z%/.\-\s]{0,12})?\s*(?P<ref>\d+(\.\d+)?\s*-\s*\d+(\.\d+)?)?$`)

	reRange  = regexp.MustCompile(`(-?\d+(\.\d+)?)\s*-\s*(-?\d+(\.\d+)?)`)
	reSpaces = regexp.MustCompile(`\s+`)
)

// Status values assigned to extracted labs.
const (
	StatusHigh     = "high"
	StatusLow      = "low"
	StatusInRange  = "in_range"
	StatusAbnormal = "abnormal"
	StatusCritical = "critical"
	StatusUnknown  = "unknown"
)

func flagToStatus(flag string) string {
	switch strings.ToUpper(strings.TrimSpace(flag)) {
	case "H", "HIGH":
		return StatusHigh
	case "L", "LOW":
		return StatusLow
	case "A", "ABN", "ABNORMAL":
		return StatusAbnormal
	case "C", "CRITICAL":
		return StatusCritical
	}
	return StatusUnknown
}

// ParseRange parses a "lo-hi" reference range.
func ParseRange(s string) (lo, hi float64, ok bool) {
	m := reRange.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	lo, err1 := strconv.ParseFloat(m[1], 64)
	hi, err2 := strconv.ParseFloat(m[3], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

func statusFromRange(value *float64, ref string) string {
	if value == nil {
		return StatusUnknown
	}
	lo, hi, ok := ParseRange(ref)
	if !ok {
		return StatusUnknown
	}
	switch {
	case *value < lo:
		return StatusLow
	case *value > hi:
		return StatusHigh
	}
	return StatusInRange
}

// Extractor finds lab values in free text using a replaceable explanation
// catalog.
type Extractor struct {
	catalog *Catalog
}

func NewExtractor(catalog *Catalog) *Extractor {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Extractor{catalog: catalog}
}

// Find runs heuristic line-oriented extraction over text. Results keep
// document order; exact duplicates (name, value, flag, range) are dropped.
func (e *Extractor) Find(text string) []entity.LabValue {
	if text == "" {
		return nil
	}

	var results []entity.LabValue
	seen := make(map[string]struct{})

	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}

		m, names := matchLine(ln)
		if m == nil {
			continue
		}

		rawName := strings.TrimSpace(group(m, names, "name"))
		if rawName == "" {
			continue
		}

		var value *float64
		if v, err := strconv.ParseFloat(group(m, names, "value"), 64); err == nil {
			value = &v
		}
		units := strings.TrimSpace(group(m, names, "units"))
		flag := strings.TrimSpace(group(m, names, "flag"))
		refText := strings.TrimSpace(group(m, names, "ref"))

		status := StatusUnknown
		if flag != "" {
			status = flagToStatus(flag)
		} else {
			status = statusFromRange(value, refText)
		}

		item := entity.LabValue{
			Name:        rawName,
			Value:       value,
			Status:      status,
			Explanation: e.catalog.Explain(rawName),
		}
		if units != "" {
			item.Units = &units
		}
		if flag != "" {
			item.Flag = &flag
		}
		if refText != "" {
			item.ReferenceRange = &refText
		}

		sig := sigOf(item)
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		results = append(results, item)
	}

	return results
}

func matchLine(ln string) ([]string, []string) {
	if m := reNameValueBareFlag.FindStringSubmatch(ln); m != nil {
		return m, reNameValueBareFlag.SubexpNames()
	}
	if m := reNameValueParenFlag.FindStringSubmatch(ln); m != nil {
		return m, reNameValueParenFlag.SubexpNames()
	}
	return nil, nil
}

func group(m, names []string, want string) string {
	for i, n := range names {
		if n == want && i < len(m) {
			return m[i]
		}
	}
	return ""
}

func sigOf(v entity.LabValue) string {
	var b strings.Builder
	b.WriteString(v.Name)
	b.WriteByte('|')
	if v.Value != nil {
		b.WriteString(strconv.FormatFloat(*v.Value, 'g', -1, 64))
	}
	b.WriteByte('|')
	if v.Flag != nil {
		b.WriteString(*v.Flag)
	}
	b.WriteByte('|')
	if v.ReferenceRange != nil {
		b.WriteString(*v.ReferenceRange)
	}
	return b.String()
}

// CanonicalName normalizes an analyte name for catalog lookup.
func CanonicalName(name string) string {
	return reSpaces.ReplaceAllString(strings.ToUpper(strings.TrimSpace(name)), " ")
}
