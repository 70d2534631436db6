package filewatcher

import (
	"context"
	"errors"
	"log/slog"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

// DocumentLoader reads a file from disk into a document.
type DocumentLoader interface {
	LoadFile(ctx context.Context, path string) (*entities.Document, error)
}

// DocumentIngester adds a document to the knowledge base.
type DocumentIngester interface {
	Ingest(ctx context.Context, doc *entities.Document) (int, error)
}

// AutoIngest ingests every file created or modified in dir until ctx is
// done or the watcher stops. Deletions are logged and ignored because the
// corpus is append-only. A modified file keeps its path-derived ID, so its
// re-ingestion is rejected as a duplicate and the stored version stays.
// Failures are logged per file and never stop the loop.
func AutoIngest(
	ctx context.Context,
	watcher ports.FileWatcher,
	dir string,
	loader DocumentLoader,
	ingester DocumentIngester,
	logger *slog.Logger,
) error {
	if logger == nil {
		logger = slog.Default()
	}

	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		return err
	}
	logger.Info("watching for contracts", "dir", dir)

	for event := range events {
		if event.Operation == ports.FileDeleted {
			logger.Info("file removed, stored chunks are kept", "path", event.Path)
			continue
		}

		doc, err := loader.LoadFile(ctx, event.Path)
		if err != nil {
			logger.Warn("could not load watched file", "path", event.Path, "error", err)
			continue
		}

		n, err := ingester.Ingest(ctx, doc)
		if errors.Is(err, entities.ErrDuplicateDocument) {
			logger.Info("file already ingested, stored version kept", "path", event.Path, "document_id", doc.ID)
			continue
		}
		if err != nil {
			logger.Warn("could not ingest watched file", "path", event.Path, "error", err)
			continue
		}
		logger.Info("watched file ingested", "path", event.Path, "op", event.Operation, "chunks", n)
	}
	return nil
}
