package ai

import (
	"encoding/json"
	"strings"
)

// AnalysisRecord is the normalized result of one financial analysis.
// Every field is free-form narrative text; absent fields are filled with a
// fixed default sentence so downstream consumers always see a complete shape.
type AnalysisRecord struct {
	Overview            string `json:"overview"`
	SpendingTrends      string `json:"spendingTrends"`
	CategoryAnalysis    string `json:"categoryAnalysis"`
	AnomaliesOrRedFlags string `json:"anomaliesOrRedFlags"`
	TimeBasedInsights   string `json:"timeBasedInsights"`
	Recommendations     string `json:"recommendations"`
	RiskAssessment      string `json:"riskAssessment"`
	Opportunities       string `json:"opportunities"`
	FutureProjections   string `json:"futureProjections"`
	ComparativeAnalysis string `json:"comparativeAnalysis"`
	Disclaimer          string `json:"disclaimer"`
}

// FieldSpec describes one record field: the key names accepted for it in
// lookup order (primary name first), and the sentence substituted when no
// key matches or the value is empty.
type FieldSpec struct {
	Name    string
	Keys    []string
	Default string
}

// DefaultFieldSpecs returns the field table used in production. The model
// occasionally drifts on key names, so each field carries the alternates
// observed from it alongside the primary name.
func DefaultFieldSpecs() []FieldSpec {
	return []FieldSpec{
		{"overview", []string{"overview", "summary"}, "No overview provided"},
		{"spendingTrends", []string{"spendingTrends", "trends"}, "No spending trends identified"},
		{"categoryAnalysis", []string{"categoryAnalysis", "categories"}, "No category analysis available"},
		{"anomaliesOrRedFlags", []string{"anomaliesOrRedFlags", "anomalies", "redFlags"}, "No anomalies detected"},
		{"timeBasedInsights", []string{"timeBasedInsights", "timeInsights"}, "No time-based insights available"},
		{"recommendations", []string{"recommendations", "advice"}, "No recommendations provided"},
		{"riskAssessment", []string{"riskAssessment", "risks"}, "No risk assessment available"},
		{"opportunities", []string{"opportunities"}, "No opportunities identified"},
		{"futureProjections", []string{"futureProjections", "projections"}, "No future projections available"},
		{"comparativeAnalysis", []string{"comparativeAnalysis", "comparisonAnalysis"}, "No comparative analysis available"},
		{"disclaimer", []string{"disclaimer"}, "This analysis is AI-generated and should not be considered professional financial advice"},
	}
}

// flattenFields reduces a decoded object to a flat string map. String values
// pass through as-is; the model sometimes nests arrays or sub-objects where
// plain text is expected, and those are re-serialized to compact JSON text so
// field extraction always sees a string.
func flattenFields(obj map[string]any) map[string]string {
	flat := make(map[string]string, len(obj))
	for key, value := range obj {
		switch v := value.(type) {
		case string:
			flat[key] = v
		case nil:
			flat[key] = ""
		default:
			if data, err := json.Marshal(v); err == nil {
				flat[key] = string(data)
			}
		}
	}
	return flat
}

// newRecord builds a record from a flat field map. For each spec the keys
// are tried in order and the first present one wins; empty or missing values
// fall back to the spec's default sentence.
func newRecord(flat map[string]string, specs []FieldSpec) AnalysisRecord {
	var record AnalysisRecord
	for _, spec := range specs {
		value := ""
		for _, key := range spec.Keys {
			if v, ok := flat[key]; ok {
				value = strings.TrimSpace(v)
				break
			}
		}
		if value == "" {
			value = spec.Default
		}
		record.set(spec.Name, value)
	}
	return record
}

// set assigns a field by its primary name. The field list is small and
// fixed, so an explicit switch is used instead of reflection.
func (r *AnalysisRecord) set(name, value string) {
	switch name {
	case "overview":
		r.Overview = value
	case "spendingTrends":
		r.SpendingTrends = value
	case "categoryAnalysis":
		r.CategoryAnalysis = value
	case "anomaliesOrRedFlags":
		r.AnomaliesOrRedFlags = value
	case "timeBasedInsights":
		r.TimeBasedInsights = value
	case "recommendations":
		r.Recommendations = value
	case "riskAssessment":
		r.RiskAssessment = value
	case "opportunities":
		r.Opportunities = value
	case "futureProjections":
		r.FutureProjections = value
	case "comparativeAnalysis":
		r.ComparativeAnalysis = value
	case "disclaimer":
		r.Disclaimer = value
	}
}
