package entity

// LabValue is one lab measurement extracted from document text.
type LabValue struct {
	Name           string   `json:"name"`
	Value          *float64 `json:"value"`
	Units          *string  `json:"units"`
	Flag           *string  `json:"flag"`
	ReferenceRange *string  `json:"reference_range"`
	Status         string   `json:"status"`
	Explanation    string   `json:"explanation"`
}

// ExplainedLab is a lab value rendered for a reader: severity grading,
// a plain-English sentence and suggested next steps.
type ExplainedLab struct {
	Name      string   `json:"name"`
	Status    string   `json:"status"`
	Severity  string   `json:"severity"`
	Sentence  string   `json:"sentence"`
	WhatItIs  string   `json:"what_it_is"`
	NextSteps []string `json:"next_steps"`
}

// LabReport is the full explanation payload for a piece of document text.
type LabReport struct {
	Count          int               `json:"count"`
	OverallSummary string            `json:"overall_summary"`
	Items          []ExplainedLab    `json:"items"`
	Terms          map[string]string `json:"terms,omitempty"`
	Note           string            `json:"note"`
}
