package usecases

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
)

var (
	errMissingDeviations = errors.New(`payload has no "deviations" array`)
	errMissingKPIs       = errors.New(`payload has no "kpis" object`)
	errMissingRedline    = errors.New(`payload has no "redlineHtml" string`)
)

// ParseAnalysisResponse validates raw model output. The strict parse is
// tried first. If it fails, balanced JSON objects embedded in the text
// are tried largest first, then the span from the first '{' to the last '}'.
// Anything that cannot be repaired is returned as *entities.MalformedOutputError.
func ParseAnalysisResponse(raw string) (*entities.AnalysisResult, error) {
	result, strictErr := decodeAnalysis([]byte(strings.TrimSpace(raw)))
	if strictErr == nil {
		return result, nil
	}

	for _, candidate := range recoveryCandidates(raw) {
		if result, err := decodeAnalysis([]byte(candidate)); err == nil {
			return result, nil
		}
	}

	return nil, &entities.MalformedOutputError{Raw: raw, Err: strictErr}
}

// wireDeviation accepts the field names of the schema and the older
// risk/deviation spellings some prompts produce.
type wireDeviation struct {
	Clause       string       `json:"clause"`
	Issue        string       `json:"issue"`
	RiskLevel    string       `json:"riskLevel"`
	Risk         string       `json:"risk"`
	CustomerAsk  string       `json:"customerAsk"`
	OurStandard  string       `json:"ourStandard"`
	DeviationPct *looseNumber `json:"deviationPct"`
	Deviation    *looseNumber `json:"deviation"`
	Suggestion   string       `json:"suggestion"`
}

type wireKPIs struct {
	CycleTimeDays         *looseNumber `json:"cycleTimeDays"`
	CycleTimeCutPct       *looseNumber `json:"cycleTimeCutPct"`
	CoveragePct           *looseNumber `json:"coveragePct"`
	FirstDraftCoveragePct *looseNumber `json:"firstDraftCoveragePct"`
	RiskReductionPct      *looseNumber `json:"riskReductionPct"`
}

// toKPIs requires every estimate; a missing or null field fails the payload.
func (k wireKPIs) toKPIs() (entities.KPIs, error) {
	cycle := firstNumber(k.CycleTimeDays, k.CycleTimeCutPct)
	coverage := firstNumber(k.CoveragePct, k.FirstDraftCoveragePct)
	risk := firstNumber(k.RiskReductionPct)

	var missing []string
	if cycle == nil {
		missing = append(missing, "cycleTimeDays")
	}
	if coverage == nil {
		missing = append(missing, "coveragePct")
	}
	if risk == nil {
		missing = append(missing, "riskReductionPct")
	}
	if len(missing) > 0 {
		return entities.KPIs{}, fmt.Errorf("kpis missing %s", strings.Join(missing, ", "))
	}
	return entities.KPIs{CycleTimeDays: *cycle, CoveragePct: *coverage, RiskReductionPct: *risk}, nil
}

type wireAnalysis struct {
	Deviations   *[]wireDeviation `json:"deviations"`
	RedlineHTML  *string          `json:"redlineHtml"`
	RedlinesHTML *string          `json:"redlinesHTML"`
	KPIs         *wireKPIs        `json:"kpis"`
}

func decodeAnalysis(data []byte) (*entities.AnalysisResult, error) {
	var w wireAnalysis
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	if w.Deviations == nil {
		return nil, errMissingDeviations
	}
	if w.KPIs == nil {
		return nil, errMissingKPIs
	}
	if w.RedlineHTML == nil && w.RedlinesHTML == nil {
		return nil, errMissingRedline
	}
	kpis, err := w.KPIs.toKPIs()
	if err != nil {
		return nil, err
	}

	result := &entities.AnalysisResult{
		Deviations:  make([]entities.Deviation, 0, len(*w.Deviations)),
		RedlineHTML: firstNonEmpty(deref(w.RedlineHTML), deref(w.RedlinesHTML)),
		KPIs:        kpis,
	}

	for i, d := range *w.Deviations {
		dev, err := d.toDeviation()
		if err != nil {
			return nil, fmt.Errorf("deviation %d: %w", i, err)
		}
		result.Deviations = append(result.Deviations, dev)
	}
	return result, nil
}

func (d wireDeviation) toDeviation() (entities.Deviation, error) {
	clause := strings.TrimSpace(d.Clause)
	if clause == "" {
		return entities.Deviation{}, errors.New("clause is empty")
	}

	rawRisk := firstNonEmpty(d.RiskLevel, d.Risk)
	risk, ok := entities.ParseRiskLevel(rawRisk)
	if !ok {
		return entities.Deviation{}, fmt.Errorf("unknown risk level %q", rawRisk)
	}

	return entities.Deviation{
		Clause:       clause,
		Issue:        firstNonEmpty(d.Issue, d.CustomerAsk),
		RiskLevel:    risk,
		CustomerAsk:  d.CustomerAsk,
		OurStandard:  d.OurStandard,
		DeviationPct: firstNumber(d.DeviationPct, d.Deviation),
		Suggestion:   d.Suggestion,
	}, nil
}

// looseNumber decodes a JSON number or a numeric string such as "35%".
type looseNumber float64

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*n = looseNumber(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = looseNumber(f)
	return nil
}

func firstNumber(ns ...*looseNumber) *float64 {
	for _, n := range ns {
		if n != nil {
			f := float64(*n)
			return &f
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// recoveryCandidates lists substrings that may hold the payload: every
// top-level balanced object, largest first, then the first '{' to last '}'.
func recoveryCandidates(raw string) []string {
	candidates := balancedObjects(raw)
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i]) > len(candidates[j])
	})

	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start >= 0 && end > start {
		span := raw[start : end+1]
		if len(candidates) == 0 || candidates[0] != span {
			candidates = append(candidates, span)
		}
	}
	return candidates
}

// balancedObjects scans for top-level {...} regions. Braces inside JSON
// strings are ignored and backslash escapes are honoured. A '{' that never
// closes is skipped and the scan restarts just after it.
func balancedObjects(s string) []string {
	var out []string
	for from := 0; from < len(s); {
		found, open := scanObjects(s[from:])
		out = append(out, found...)
		if open < 0 {
			break
		}
		from += open + 1
	}
	return out
}

// scanObjects returns the closed objects in s and the offset of the first
// unclosed '{', or -1 when every object closed.
func scanObjects(s string) ([]string, int) {
	var (
		out      []string
		depth    int
		start    = -1
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				out = append(out, s[start:i+1])
				start = -1
			}
		}
	}
	return out, start
}
