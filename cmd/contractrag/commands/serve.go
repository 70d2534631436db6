package commands

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/contractrag/internal/adapters/filewatcher"
	httpserver "github.com/0xcro3dile/contractrag/internal/infrastructure/http"
)

// ServeAction runs the HTTP API, and the drop-folder watcher when
// WATCH_DIR is set.
func ServeAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	c := appCtx.Container
	addr := appCtx.Config.HTTPAddr
	if a := cmd.String("addr"); a != "" {
		addr = a
	}

	server := httpserver.NewServer(c.Ingest, c.Retrieve, c.Analyze, c.Corpus, c.Extractor, addr, c.Logger)

	var watcher *filewatcher.FSNotifyWatcher
	if appCtx.Config.WatchDir != "" {
		watcher, err = filewatcher.NewFSNotifyWatcher(c.Extractor.SupportedExtensions(), filewatcher.DefaultSettle)
		if err != nil {
			return err
		}
		defer watcher.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	if watcher != nil {
		g.Go(func() error {
			return filewatcher.AutoIngest(gctx, watcher, appCtx.Config.WatchDir, c.Extractor, c.Ingest, c.Logger)
		})
	}

	err = g.Wait()
	slog.Info("server stopped")
	return err
}
