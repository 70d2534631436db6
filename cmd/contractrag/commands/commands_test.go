package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/contractrag/internal/adapters/extractor"
	"github.com/0xcro3dile/contractrag/internal/domain/entities"
)

func TestCollectPaths(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(nested, 0755))
	for _, name := range []string{"a_msa.txt", "notes.json", "nested/b_sow.docx"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	single := filepath.Join(t.TempDir(), "terms.json")
	require.NoError(t, os.WriteFile(single, []byte("x"), 0644))

	paths, err := collectPaths([]string{dir, single}, extractor.New().Supports)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a_msa.txt"),
		filepath.Join(nested, "b_sow.docx"),
		single,
	}, paths)
}

func TestCollectPaths_Missing(t *testing.T) {
	_, err := collectPaths([]string{filepath.Join(t.TempDir(), "absent")}, extractor.New().Supports)
	assert.Error(t, err)
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf, nil)
	assert.Equal(t, "no matching chunks\n", buf.String())

	buf.Reset()
	printResults(&buf, []entities.QueryResult{{
		Chunk: entities.Chunk{
			DocumentID: "d1",
			Index:      2,
			Content:    "Payment terms:\n\n net   30 days.",
			Metadata:   map[string]string{entities.MetaFilename: "acme_msa.pdf"},
		},
		Score: 0.8123,
	}})
	assert.Contains(t, buf.String(), "1. acme_msa.pdf #2 (score 0.812)")
	assert.Contains(t, buf.String(), "Payment terms: net 30 days.")
}

func TestPrintStats(t *testing.T) {
	var buf bytes.Buffer
	printStats(&buf, entities.CorpusStats{ChunkCount: 7, DocumentCount: 2, ApproxBytes: 4096})
	assert.Contains(t, buf.String(), "Documents:  2")
	assert.Contains(t, buf.String(), "Chunks:     7")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b", preview(" a \n b ", 10))
	assert.Equal(t, "ab…", preview("abcdef", 2))
}

func TestWriteAnalysis(t *testing.T) {
	pct := 200.0
	result := &entities.AnalysisResult{
		Deviations: []entities.Deviation{{
			Clause:       "Payment",
			Issue:        "Net 90 requested",
			RiskLevel:    entities.RiskHigh,
			DeviationPct: &pct,
		}},
		RedlineHTML: "<p>Net <del>90</del></p>",
		Context: []entities.QueryResult{
			{Chunk: entities.Chunk{Metadata: map[string]string{entities.MetaFilename: "msa.pdf"}}},
			{Chunk: entities.Chunk{Metadata: map[string]string{entities.MetaFilename: "msa.pdf"}}},
			{Chunk: entities.Chunk{Metadata: map[string]string{entities.MetaFilename: "sow.docx"}}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeAnalysis(&buf, result))
	assert.True(t, strings.Contains(buf.String(), "<del>90</del>"), "HTML must not be escaped")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, []any{"msa.pdf", "sow.docx"}, decoded["sources"])
	assert.Len(t, decoded["deviations"], 1)
	assert.NotContains(t, decoded, "Context")
}
