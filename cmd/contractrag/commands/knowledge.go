package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
)

// SearchAction prints the stored chunks closest to a query.
func SearchAction(ctx context.Context, cmd *cli.Command) error {
	query := cmd.String("query")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: --query is required", entities.ErrInvalidInput)
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	results := appCtx.Container.Retrieve.Retrieve(ctx, query, int(cmd.Int("k")))
	printResults(os.Stdout, results)
	return nil
}

// StatsAction prints corpus size.
func StatsAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	stats, err := appCtx.Container.Corpus.Stats(ctx)
	if err != nil {
		return err
	}
	printStats(os.Stdout, stats)
	return nil
}

// ClearAction empties the knowledge base. It refuses without --yes.
func ClearAction(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("%w: refusing to clear the knowledge base without --yes", entities.ErrInvalidInput)
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Container.Corpus.Clear(ctx); err != nil {
		return err
	}
	fmt.Println("✓ knowledge base cleared")
	return nil
}

func printResults(w io.Writer, results []entities.QueryResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no matching chunks")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s #%d (score %.3f)\n", i+1, r.Chunk.Filename(), r.Chunk.Index, r.Score)
		fmt.Fprintf(w, "   %s\n\n", preview(r.Chunk.Content, 240))
	}
}

func printStats(w io.Writer, stats entities.CorpusStats) {
	fmt.Fprintf(w, "Documents:  %d\n", stats.DocumentCount)
	fmt.Fprintf(w, "Chunks:     %d\n", stats.ChunkCount)
	fmt.Fprintf(w, "Text bytes: %d\n", stats.ApproxBytes)
}

// preview flattens whitespace and cuts s to at most limit runes.
func preview(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
