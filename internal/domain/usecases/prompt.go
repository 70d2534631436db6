package usecases

import (
	"strings"

	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

// AnalysisSchema is the response contract handed to the generative model.
var AnalysisSchema = ports.ResponseSchema{
	Name: "contract_analysis",
	Schema: map[string]any{
		"type":     "object",
		"required": []string{"deviations", "redlineHtml", "kpis"},
		"properties": map[string]any{
			"deviations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"clause", "issue", "riskLevel"},
					"properties": map[string]any{
						"clause":       map[string]any{"type": "string"},
						"issue":        map[string]any{"type": "string"},
						"riskLevel":    map[string]any{"type": "string", "enum": []string{"High", "Medium", "Low"}},
						"customerAsk":  map[string]any{"type": "string"},
						"ourStandard":  map[string]any{"type": "string"},
						"deviationPct": map[string]any{"type": "number", "minimum": 0, "maximum": 100},
						"suggestion":   map[string]any{"type": "string"},
					},
				},
			},
			"redlineHtml": map[string]any{"type": "string"},
			"kpis": map[string]any{
				"type":     "object",
				"required": []string{"cycleTimeDays", "coveragePct", "riskReductionPct"},
				"properties": map[string]any{
					"cycleTimeDays":    map[string]any{"type": "number"},
					"coveragePct":      map[string]any{"type": "number"},
					"riskReductionPct": map[string]any{"type": "number"},
				},
			},
		},
	},
}

const schemaInstructions = `Return ONLY valid JSON with this exact shape:
{
  "deviations": [
    {
      "clause": "string",
      "issue": "string",
      "riskLevel": "High" | "Medium" | "Low",
      "customerAsk": "string",
      "ourStandard": "string",
      "deviationPct": 0-100,
      "suggestion": "string"
    }
  ],
  "redlineHtml": "<p>...</p>",
  "kpis": {
    "cycleTimeDays": number,
    "coveragePct": number,
    "riskReductionPct": number
  }
}`

// BuildAnalysisPrompt assembles the single prompt sent to the model.
// standards are SOW/MSA texts in upload order; retrieved is the formatted
// knowledge base context and may be empty.
func BuildAnalysisPrompt(rfq string, standards []string, retrieved string) string {
	var sb strings.Builder
	sb.WriteString("You are a contracts analyst. Compare the customer's RFQ to our SOW/MSA standards.\n\n")
	sb.WriteString("Tasks:\n")
	sb.WriteString("1) Identify key clauses and show the customer's ask vs. our standard.\n")
	sb.WriteString("2) Describe the issue with each deviating clause.\n")
	sb.WriteString("3) Score \"deviationPct\" as a percentage (0-100) based on how far the ask is from our standard.\n")
	sb.WriteString("4) Assign riskLevel: High / Medium / Low, justified in the suggestion text.\n")
	sb.WriteString("5) Produce concise counter-suggestions aligned to common B2B SaaS norms.\n")
	sb.WriteString("6) Generate a short redlined draft snippet as HTML:\n")
	sb.WriteString("   - Use <span class=\"line-through\">deleted</span> for removals\n")
	sb.WriteString("   - Use <span class=\"underline\">added</span> for additions\n")
	sb.WriteString("7) Provide rough KPIs after redlining (best-effort estimates).\n\n")

	sb.WriteString("RFQ (customer ask):\n\"\"\"")
	sb.WriteString(rfq)
	sb.WriteString("\"\"\"\n\n")

	sb.WriteString("Our standards (one or more SOWs/MSAs; later docs override earlier if conflicts):\n\"\"\"")
	sb.WriteString(strings.Join(standards, "\n"))
	sb.WriteString("\"\"\"\n\n")

	if retrieved != "" {
		sb.WriteString("Relevant excerpts from previously stored contracts (reference only; the standards above take precedence):\n\"\"\"")
		sb.WriteString(retrieved)
		sb.WriteString("\"\"\"\n\n")
	}

	sb.WriteString(schemaInstructions)
	sb.WriteString("\nOnly output JSON. No extra text.")
	return sb.String()
}
