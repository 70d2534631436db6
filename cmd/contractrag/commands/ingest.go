package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
)

// IngestAction adds files, or every supported file under a directory, to
// the knowledge base.
func IngestAction(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return fmt.Errorf("%w: at least one file or directory is required", entities.ErrInvalidInput)
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	c := appCtx.Container
	paths, err := collectPaths(args, c.Extractor.Supports)
	if err != nil {
		return err
	}

	var docType entities.DocumentType
	if tag := cmd.String("type"); tag != "" {
		docType = entities.ParseDocumentType(tag)
	}

	total, skipped, failed := 0, 0, 0
	for _, path := range paths {
		doc, err := c.Extractor.LoadFile(ctx, path)
		if err == nil {
			if docType != "" {
				doc.Type = docType
			}
			var n int
			n, err = c.Ingest.Ingest(ctx, doc)
			total += n
			if err == nil {
				fmt.Printf("✓ %s (%s): %d chunks\n", path, doc.Type, n)
				continue
			}
			if errors.Is(err, entities.ErrDuplicateDocument) {
				skipped++
				fmt.Printf("- %s: already ingested\n", path)
				continue
			}
		}
		failed++
		fmt.Printf("✗ %s: %v\n", path, err)
	}

	fmt.Printf("\n%d files, %d chunks added, %d skipped, %d failed\n", len(paths), total, skipped, failed)
	if failed > 0 && failed == len(paths) {
		return fmt.Errorf("no files were ingested")
	}
	return nil
}

// collectPaths expands directories into the supported files they contain.
// Explicit file arguments are kept even when their extension is not listed.
func collectPaths(args []string, supported func(string) bool) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && supported(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}
