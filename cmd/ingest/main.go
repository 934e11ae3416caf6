package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/storeops/o2o-insight/internal/ingest"
	"github.com/storeops/o2o-insight/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "ingest",
		Usage: "Load platform sale export CSVs into the raw_sale_records table",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db-url",
				Usage:    "Database connection string",
				Required: true,
				EnvVars:  []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:     "file",
				Usage:    "Path to the CSV export",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Store name override when the export has no store column",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("ingest failed")
	}
}

func run(c *cli.Context) error {
	db, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	loader := ingest.NewLoader(db)
	result, err := loader.LoadCSV(c.Context, c.String("file"), c.String("store"))
	if err != nil {
		return err
	}

	logger.Log.Info().
		Int("processed", result.Processed).
		Int("skipped", result.Skipped).
		Msg("ingest complete")
	return nil
}
