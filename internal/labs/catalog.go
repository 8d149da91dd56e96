package labs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// defaultExplanations maps canonical analyte names to plain-English meaning.
// Expand over time.
var defaultExplanations = map[string]string{
	"A1C":               "Hemoglobin A1C: shows an estimate of your average blood sugar over about 2-3 months.",
	"HGB A1C":           "Hemoglobin A1C: shows an estimate of your average blood sugar over about 2-3 months.",
	"GLUCOSE":           "Glucose: the amount of sugar in your blood at the time of the test.",
	"WBC":               "WBC (white blood cells): cells involved in fighting infection and inflammation.",
	"RBC":               "RBC (red blood cells): cells that carry oxygen throughout the body.",
	"HGB":               "Hemoglobin: oxygen-carrying protein in red blood cells.",
	"HCT":               "Hematocrit: percentage of your blood made up of red blood cells.",
	"PLT":               "Platelets: help your blood clot.",
	"NA":                "Sodium: an electrolyte involved in fluid balance and nerve/muscle function.",
	"K":                 "Potassium: an electrolyte important for heart rhythm and muscle function.",
	"CL":                "Chloride: an electrolyte involved in fluid balance and acid-base balance.",
	"CO2":               "CO2/Bicarbonate: relates to acid-base balance in the blood.",
	"BUN":               "BUN: a measure related to kidney function and protein metabolism.",
	"CREATININE":        "Creatinine: a measure related to kidney function.",
	"EGFR":              "eGFR: estimated kidney filtration rate (how well kidneys filter).",
	"ALT":               "ALT: a liver enzyme that can rise with liver irritation/injury.",
	"AST":               "AST: a liver enzyme that can rise with liver irritation/injury.",
	"ALK PHOS":          "Alkaline phosphatase: an enzyme related to liver/bile ducts and bone.",
	"BILIRUBIN":         "Bilirubin: a breakdown product processed by the liver.",
	"ALBUMIN":           "Albumin: a protein made by the liver; relates to nutrition and fluid balance.",
	"TOTAL PROTEIN":     "Total protein: includes albumin and other proteins in blood.",
	"LDL":               "LDL cholesterol: often called 'bad' cholesterol.",
	"HDL":               "HDL cholesterol: often called 'good' cholesterol.",
	"TRIGLYCERIDES":     "Triglycerides: a type of fat in the blood.",
	"TOTAL CHOLESTEROL": "Total cholesterol: combined measure of cholesterol types.",
}

const unknownExplanation = "Lab test: explanation not yet added."

// Catalog resolves analyte explanations. Entries loaded from a file are
// merged over the defaults.
type Catalog struct {
	entries map[string]string
}

func DefaultCatalog() *Catalog {
	entries := make(map[string]string, len(defaultExplanations))
	for k, v := range defaultExplanations {
		entries[k] = v
	}
	return &Catalog{entries: entries}
}

// catalogSchema constrains a catalog override file: a flat object of
// name -> explanation strings.
func catalogSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"additionalProperties": map[string]any{
			"type":      "string",
			"minLength": 1,
		},
	}
}

// LoadCatalog reads a JSON catalog file, validates it against the catalog
// schema, and merges it over the defaults.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if err := validateAgainstSchema(catalogSchema(), raw); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}

	var overrides map[string]string
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := DefaultCatalog()
	for name, expl := range overrides {
		c.entries[CanonicalName(name)] = expl
	}
	return c, nil
}

// Explain returns the catalog explanation for an analyte name, trying a
// couple of common normalization variants before giving up.
func (c *Catalog) Explain(name string) string {
	key := CanonicalName(name)
	if e, ok := c.entries[key]; ok {
		return e
	}
	if e, ok := c.entries[strings.Replace(key, "HEMOGLOBIN ", "HGB ", 1)]; ok {
		return e
	}
	return unknownExplanation
}

func validateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
