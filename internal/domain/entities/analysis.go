package entities

import "strings"

// RiskLevel grades how dangerous a deviation is.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "High"
	RiskMedium RiskLevel = "Medium"
	RiskLow    RiskLevel = "Low"
)

// ParseRiskLevel accepts any casing of High, Medium or Low.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return RiskHigh, true
	case "medium":
		return RiskMedium, true
	case "low":
		return RiskLow, true
	}
	return "", false
}

// AnalysisRequest carries extracted texts into the orchestrator.
type AnalysisRequest struct {
	RFQText        string
	AuxiliaryTexts []string // SOW/MSA texts; later entries override earlier ones
}

// Deviation is one clause where the RFQ departs from our standards.
type Deviation struct {
	Clause       string    `json:"clause"`
	Issue        string    `json:"issue"`
	RiskLevel    RiskLevel `json:"riskLevel"`
	CustomerAsk  string    `json:"customerAsk,omitempty"`
	OurStandard  string    `json:"ourStandard,omitempty"`
	DeviationPct *float64  `json:"deviationPct,omitempty"`
	Suggestion   string    `json:"suggestion,omitempty"`
}

// KPIs are best-effort estimates of the effect of redlining.
type KPIs struct {
	CycleTimeDays    float64 `json:"cycleTimeDays"`
	CoveragePct      float64 `json:"coveragePct"`
	RiskReductionPct float64 `json:"riskReductionPct"`
}

// AnalysisResult is the validated payload returned to the caller.
type AnalysisResult struct {
	Deviations  []Deviation `json:"deviations"`
	RedlineHTML string      `json:"redlineHtml"`
	KPIs        KPIs        `json:"kpis"`

	// Context is the grounding retrieved for this analysis.
	Context []QueryResult `json:"-"`
	// Trace lists the orchestrator states visited, in order.
	Trace []AnalysisState `json:"-"`
}

// AnalysisState is a stage of the analysis pipeline.
type AnalysisState string

const (
	StateCollectingInput    AnalysisState = "collecting_input"
	StateRetrievingContext  AnalysisState = "retrieving_context"
	StateInvokingModel      AnalysisState = "invoking_model"
	StateValidatingResponse AnalysisState = "validating_response"
	StateDone               AnalysisState = "done"
	StateFailed             AnalysisState = "failed"
)
