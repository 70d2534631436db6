package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/0xcro3dile/contractrag/cmd/contractrag/commands"
)

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "path to a .env file",
		Value: ".env",
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "contractrag",
		Usage: "RFQ vs SOW/MSA contract analysis backed by a local knowledge base",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the HTTP API",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "addr",
						Usage: "listen address (overrides HTTP_ADDR)",
					},
				},
				Action: commands.ServeAction,
			},
			{
				Name:      "ingest",
				Usage:     "add SOW/MSA files or directories to the knowledge base",
				ArgsUsage: "<file|dir>...",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "type",
						Usage: "document type (SOW/MSA/RFQ/OTHER); inferred from the file name when empty",
					},
				},
				Action: commands.IngestAction,
			},
			{
				Name:  "search",
				Usage: "show the stored chunks closest to a query",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "query text",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "k",
						Usage: "number of results",
						Value: 5,
					},
				},
				Action: commands.SearchAction,
			},
			{
				Name:  "analyze",
				Usage: "compare an RFQ against SOW/MSA standards",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:     "rfq",
						Usage:    "RFQ file (PDF, DOCX or TXT)",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "sow",
						Usage: "SOW/MSA file; repeat for several, later files override earlier ones",
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "write the JSON result to this file instead of stdout",
					},
				},
				Action: commands.AnalyzeAction,
			},
			{
				Name:   "stats",
				Usage:  "show knowledge base size",
				Flags:  []cli.Flag{envFlag()},
				Action: commands.StatsAction,
			},
			{
				Name:  "clear",
				Usage: "remove every stored chunk",
				Flags: []cli.Flag{
					envFlag(),
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "confirm deletion",
					},
				},
				Action: commands.ClearAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
