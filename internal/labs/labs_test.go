package labs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthill1650-eng/Medscan/internal/entity"
)

func fptr(v float64) *float64 { return &v }
func sptr(s string) *string   { return &s }

func TestFindParenFlag(t *testing.T) {
	results := NewExtractor(nil).Find("A1C 6.1 (H)")

	require.Len(t, results, 1)
	v := results[0]
	assert.Equal(t, "A1C", v.Name)
	require.NotNil(t, v.Value)
	assert.InDelta(t, 6.1, *v.Value, 1e-9)
	require.NotNil(t, v.Flag)
	assert.Equal(t, "H", *v.Flag)
	assert.Equal(t, StatusHigh, v.Status)
}

func TestFindBareFlagWithRange(t *testing.T) {
	results := NewExtractor(nil).Find("GLUCOSE 102 H 70-99")

	require.Len(t, results, 1)
	v := results[0]
	assert.Equal(t, "GLUCOSE", v.Name)
	assert.Equal(t, StatusHigh, v.Status)
	require.NotNil(t, v.ReferenceRange)
	assert.Equal(t, "70-99", *v.ReferenceRange)
}

func TestFindRangeOnlyClassifies(t *testing.T) {
	results := NewExtractor(nil).Find("WBC 8.2 4.0-10.5")

	require.Len(t, results, 1)
	assert.Equal(t, "WBC", results[0].Name)
	assert.Equal(t, StatusInRange, results[0].Status)
}

func TestFindColonAndParenthesizedRange(t *testing.T) {
	results := NewExtractor(nil).Find("Creatinine: 1.10 (0.70-1.30)")

	require.Len(t, results, 1)
	v := results[0]
	assert.Equal(t, "Creatinine", v.Name)
	assert.Equal(t, StatusInRange, v.Status)
	require.NotNil(t, v.ReferenceRange)
	assert.Equal(t, "0.70-1.30", *v.ReferenceRange)
}

func TestFindDropsExactDuplicates(t *testing.T) {
	text := "GLUCOSE 102 H 70-99\nsome noise\nGLUCOSE 102 H 70-99"
	results := NewExtractor(nil).Find(text)
	assert.Len(t, results, 1)
}

func TestFindKeepsDocumentOrder(t *testing.T) {
	text := "WBC 8.2 4.0-10.5\nA1C 6.1 (H)\nGLUCOSE 102 H 70-99"
	results := NewExtractor(nil).Find(text)

	require.Len(t, results, 3)
	assert.Equal(t, "WBC", results[0].Name)
	assert.Equal(t, "A1C", results[1].Name)
	assert.Equal(t, "GLUCOSE", results[2].Name)
}

func TestFindIgnoresProse(t *testing.T) {
	assert.Empty(t, NewExtractor(nil).Find("Patient reports feeling well.\nFollow up in 3 months."))
	assert.Empty(t, NewExtractor(nil).Find(""))
}

func TestParseRange(t *testing.T) {
	lo, hi, ok := ParseRange("4.0-10.5")
	require.True(t, ok)
	assert.InDelta(t, 4.0, lo, 1e-9)
	assert.InDelta(t, 10.5, hi, 1e-9)

	_, _, ok = ParseRange("not a range")
	assert.False(t, ok)
}

func TestSeverityGrades(t *testing.T) {
	high := func(value float64) entity.LabValue {
		return entity.LabValue{
			Name:           "GLUCOSE",
			Value:          fptr(value),
			Status:         StatusHigh,
			ReferenceRange: sptr("70-99"),
		}
	}

	assert.Equal(t, SeverityMild, Severity(high(102)))     // ~3% over
	assert.Equal(t, SeverityModerate, Severity(high(115))) // ~16% over
	assert.Equal(t, SeveritySevere, Severity(high(150)))   // ~52% over

	low := entity.LabValue{Name: "HGB", Value: fptr(10), Status: StatusLow, ReferenceRange: sptr("12-16")}
	assert.Equal(t, SeverityModerate, Severity(low)) // ~17% under

	assert.Equal(t, SeverityNone, Severity(entity.LabValue{Status: StatusInRange}))
	assert.Equal(t, SeverityUnknown, Severity(entity.LabValue{Status: StatusHigh})) // no value/range
	assert.Equal(t, SeverityUnknown, Severity(entity.LabValue{Status: StatusAbnormal}))
}

func TestSentence(t *testing.T) {
	s := Sentence(entity.LabValue{
		Name:           "GLUCOSE",
		Value:          fptr(102),
		Units:          sptr("mg/dL"),
		Status:         StatusHigh,
		ReferenceRange: sptr("70-99"),
	})
	assert.Equal(t, "GLUCOSE is 102 mg/dL, which is higher than expected (ref: 70-99).", s)

	s = Sentence(entity.LabValue{Name: "A1C", Value: fptr(6.1), Status: StatusUnknown})
	assert.Contains(t, s, "could not be compared")
	assert.Contains(t, s, "ref: not provided")
}

func TestNextStepsCapsAtFour(t *testing.T) {
	steps := NextSteps(entity.LabValue{
		Name:           "GLUCOSE",
		Value:          fptr(150),
		Status:         StatusHigh,
		ReferenceRange: sptr("70-99"),
	})

	require.NotEmpty(t, steps)
	assert.LessOrEqual(t, len(steps), 4)
	assert.Contains(t, steps[0], "fasting glucose")
}

func TestNextStepsInRange(t *testing.T) {
	steps := NextSteps(entity.LabValue{Name: "WBC", Status: StatusInRange})
	require.Len(t, steps, 2)
	assert.Contains(t, steps[0], "within the expected range")
}

func TestExplainBuildsReport(t *testing.T) {
	report := NewExtractor(nil).Explain("A1C 6.1 (H)\nWBC 8.2 4.0-10.5")

	assert.Equal(t, 2, report.Count)
	assert.Equal(t, "Summary: 1 high, 0 low, 1 in range, 0 unknown.", report.OverallSummary)
	require.Len(t, report.Items, 2)
	assert.Equal(t, "A1C", report.Items[0].Name)
	assert.Contains(t, report.Items[0].WhatItIs, "average blood sugar")
	assert.Contains(t, report.Terms, "A1C")
	assert.NotEmpty(t, report.Note)
}

func TestExplainEmptyText(t *testing.T) {
	report := NewExtractor(nil).Explain("nothing medical here")

	assert.Zero(t, report.Count)
	assert.Equal(t, "No lab results were detected in the text.", report.OverallSummary)
	assert.Empty(t, report.Items)
}

func TestFindTerms(t *testing.T) {
	found := FindTerms("Dx: HTN, DM. Take med PO qd.")
	assert.Equal(t, []string{"DM", "DX", "HTN", "PO", "QD"}, found)

	assert.Empty(t, FindTerms("PODIUM"), "substrings must not match")
	assert.Empty(t, FindTerms(""))
}

func TestExplainTerms(t *testing.T) {
	out := ExplainTerms([]string{"HTN", "BOGUS"})
	assert.Equal(t, "Hypertension (high blood pressure)", out["HTN"])
	assert.Equal(t, "Unknown term", out["BOGUS"])
}

func TestCanonicalName(t *testing.T) {
	assert.Equal(t, "HGB A1C", CanonicalName("  hgb   a1c "))
}
