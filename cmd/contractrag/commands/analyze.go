package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
)

// AnalyzeAction compares an RFQ file against SOW/MSA files and prints the
// analysis as JSON, or writes it to --out.
func AnalyzeAction(ctx context.Context, cmd *cli.Command) error {
	rfqPath := cmd.String("rfq")

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	c := appCtx.Container
	rfq, err := c.Extractor.LoadFile(ctx, rfqPath)
	if err != nil {
		return err
	}

	req := entities.AnalysisRequest{RFQText: rfq.Content}
	for _, path := range cmd.StringSlice("sow") {
		doc, err := c.Extractor.LoadFile(ctx, path)
		if err != nil {
			return err
		}
		req.AuxiliaryTexts = append(req.AuxiliaryTexts, doc.Content)
	}

	result, err := c.Analyze.Analyze(ctx, req)
	if err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if path := cmd.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := writeAnalysis(out, result); err != nil {
		return err
	}
	if path := cmd.String("out"); path != "" {
		fmt.Printf("✓ %d deviations written to %s\n", len(result.Deviations), path)
	}
	return nil
}

type analysisOutput struct {
	*entities.AnalysisResult
	Sources []string `json:"sources"`
}

func writeAnalysis(w io.Writer, result *entities.AnalysisResult) error {
	sources := make([]string, 0, len(result.Context))
	seen := make(map[string]bool)
	for _, r := range result.Context {
		name := r.Chunk.Filename()
		if !seen[name] {
			seen[name] = true
			sources = append(sources, name)
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(analysisOutput{AnalysisResult: result, Sources: sources})
}
