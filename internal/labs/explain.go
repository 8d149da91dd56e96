package labs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anthill1650-eng/Medscan/internal/entity"
)

// Severity grades for out-of-range results.
const (
	SeverityNone     = "none"
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
	SeverityUnknown  = "unknown"
)

const safetyNote = "Note: This is informational only and not medical advice. " +
	"If you have symptoms or concerns, or if a result is very high or low, contact a clinician."

// Explain builds the full report for a piece of document text.
func (e *Extractor) Explain(text string) *entity.LabReport {
	values := e.Find(text)

	items := make([]entity.ExplainedLab, 0, len(values))
	for _, v := range values {
		items = append(items, entity.ExplainedLab{
			Name:      v.Name,
			Status:    v.Status,
			Severity:  Severity(v),
			Sentence:  Sentence(v),
			WhatItIs:  v.Explanation,
			NextSteps: NextSteps(v),
		})
	}

	report := &entity.LabReport{
		Count:          len(values),
		OverallSummary: countsSummary(values),
		Items:          items,
		Note:           safetyNote,
	}
	if found := FindTerms(text); len(found) > 0 {
		report.Terms = ExplainTerms(found)
	}
	return report
}

// Severity grades how far outside the reference range a value falls:
// <=10% mild, <=25% moderate, beyond that severe.
func Severity(v entity.LabValue) string {
	if v.Status != StatusHigh && v.Status != StatusLow {
		if v.Status == StatusInRange {
			return SeverityNone
		}
		return SeverityUnknown
	}
	if v.Value == nil || v.ReferenceRange == nil {
		return SeverityUnknown
	}
	lo, hi, ok := ParseRange(*v.ReferenceRange)
	if !ok {
		return SeverityUnknown
	}

	var pct float64
	switch {
	case v.Status == StatusHigh && hi > 0:
		pct = (*v.Value - hi) / hi
	case v.Status == StatusLow && lo > 0:
		pct = (lo - *v.Value) / lo
	default:
		return SeverityUnknown
	}

	switch {
	case pct <= 0.10:
		return SeverityMild
	case pct <= 0.25:
		return SeverityModerate
	}
	return SeveritySevere
}

// Sentence renders one lab value as a single plain-English sentence.
func Sentence(v entity.LabValue) string {
	var meaning string
	switch v.Status {
	case StatusHigh:
		meaning = "is higher than expected"
	case StatusLow:
		meaning = "is lower than expected"
	case StatusInRange:
		meaning = "is within the expected range"
	default:
		meaning = "could not be compared to a reference range"
	}

	val := "unknown"
	if v.Value != nil {
		val = strconv.FormatFloat(*v.Value, 'g', -1, 64)
	}
	units := ""
	if v.Units != nil && *v.Units != "" {
		units = " " + *v.Units
	}
	ref := "not provided"
	if v.ReferenceRange != nil && *v.ReferenceRange != "" {
		ref = *v.ReferenceRange
	}

	return fmt.Sprintf("%s is %s%s, which %s (ref: %s).", v.Name, val, units, meaning, ref)
}

// NextSteps builds up to 4 suggested follow-ups for one lab value: generic
// guidance plus analyte-specific inserts.
func NextSteps(v entity.LabValue) []string {
	name := CanonicalName(v.Name)

	if v.Status == StatusInRange {
		return []string{
			"This result is within the expected range based on the reference range shown.",
			"If you have symptoms or concerns, discuss them with a clinician even if labs look normal.",
		}
	}
	if v.Status != StatusHigh && v.Status != StatusLow {
		return []string{
			"This result could not be compared to a reference range from the text provided.",
			"If you have the full report, compare it to the reference range listed there or review it with a clinician.",
		}
	}

	steps := []string{
		"Review this result in context with your other labs, symptoms, and medical history.",
		"If you have a prior result, comparing trends over time can be more helpful than one number.",
	}

	if strings.Contains(name, "GLUCOSE") {
		if v.Status == StatusHigh {
			steps = insert(steps, 0,
				"If this was a fasting glucose, a repeat fasting test may help confirm the result.",
				"If this was not fasting, ask whether a fasting re-check is appropriate.")
		} else {
			steps = insert(steps, 0,
				"If you felt shaky, sweaty, confused, or weak around the test time, note it and mention it to a clinician.")
		}
	}

	if strings.Contains(name, "A1C") || strings.Contains(name, "HBA1C") {
		if v.Status == StatusHigh {
			steps = insert(steps, 0,
				"A1C reflects average blood sugar over ~2-3 months; it's often reviewed together with glucose results.",
				"Ask about follow-up timing and what A1C target range applies to you personally.")
		}
	}

	if name == "WBC" || strings.Contains(name, "WHITE BLOOD") {
		steps = insert(steps, 0,
			"WBC can change with infection, inflammation, stress, or some medications; context matters.")
		steps = append(steps,
			"If you were sick recently or took steroids, mention that when reviewing the result.")
	}

	if strings.Contains(name, "CREATININE") {
		steps = insert(steps, 0,
			"Creatinine can be influenced by hydration, muscle mass, and some medications; it's often reviewed with other kidney markers.")
		steps = append(steps,
			"If your report includes eGFR or BUN, reviewing them together can give better kidney context.")
	}

	if len(steps) > 4 {
		steps = steps[:4]
	}
	return steps
}

func insert(steps []string, at int, items ...string) []string {
	out := make([]string, 0, len(steps)+len(items))
	out = append(out, steps[:at]...)
	out = append(out, items...)
	out = append(out, steps[at:]...)
	return out
}

func countsSummary(values []entity.LabValue) string {
	if len(values) == 0 {
		return "No lab results were detected in the text."
	}
	counts := map[string]int{}
	for _, v := range values {
		switch v.Status {
		case StatusHigh, StatusLow, StatusInRange:
			counts[v.Status]++
		default:
			counts[StatusUnknown]++
		}
	}
	return fmt.Sprintf("Summary: %d high, %d low, %d in range, %d unknown.",
		counts[StatusHigh], counts[StatusLow], counts[StatusInRange], counts[StatusUnknown])
}
