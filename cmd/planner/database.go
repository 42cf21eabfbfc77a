package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/mixplan/backend-go/internal/config"
	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/drive"
	"github.com/andresuchdata/mixplan/backend-go/internal/repository"
	"github.com/andresuchdata/mixplan/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/mixplan/backend-go/internal/scenariofile"
	"github.com/andresuchdata/mixplan/backend-go/pkg/logger"
)

func runMigrate(c *cli.Context) error {
	db, err := dbFrom(c)
	if err != nil {
		return err
	}
	return postgres.Migrate(c.Context, db)
}

func seedCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Store a starter scenario with the default production line",
		Flags: []cli.Flag{
			newDBURLFlag(),
			&cli.StringFlag{
				Name:  "id",
				Usage: "Scenario id",
				Value: "default",
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Scenario name",
				Value: "Default week",
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "Seed from a scenario file instead of the default production line",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Seed even when scenarios already exist",
			},
		},
		Before: initDB,
		After:  closeDB,
		Action: func(c *cli.Context) error {
			db, err := dbFrom(c)
			if err != nil {
				return err
			}
			if err := postgres.Migrate(c.Context, db); err != nil {
				return err
			}
			repo := repository.NewIngestRepository(db)

			count, err := repo.CountScenarios(c.Context)
			if err != nil {
				return err
			}
			if count > 0 && !c.Bool("force") {
				logger.Log.Info().Int("scenarios", count).Msg("scenarios already present, nothing seeded")
				return nil
			}

			snap := &domain.Snapshot{
				Name:      c.String("name"),
				Days:      append([]string(nil), cfg.Planner.Days...),
				Resources: domain.DefaultResources(),
			}
			if path := strings.TrimSpace(c.String("file")); path != "" {
				if snap, err = scenariofile.Load(path, cfg.Planner.Days); err != nil {
					return err
				}
			}
			if err := snap.Validate(); err != nil {
				return err
			}

			if err := repo.UpsertScenario(c.Context, &domain.Scenario{ID: c.String("id"), Snapshot: *snap}); err != nil {
				return err
			}
			logger.Log.Info().Str("id", c.String("id")).Str("name", snap.Name).Msg("scenario seeded")
			return nil
		},
	}
}

func importDriveCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import-drive",
		Usage: "Merge the product catalogs of a Google Drive folder into a scenario",
		Flags: []cli.Flag{
			newDBURLFlag(),
			&cli.StringFlag{
				Name:    "folder",
				Usage:   "Drive folder id",
				Value:   cfg.Drive.FolderID,
				EnvVars: []string{"DRIVE_FOLDER_ID"},
			},
			&cli.StringFlag{
				Name:     "scenario",
				Usage:    "Scenario id the products are merged into",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "credentials",
				Usage:   "Service account credentials file",
				Value:   cfg.Drive.CredentialsFile,
				EnvVars: []string{"DRIVE_CREDENTIALS_FILE"},
			},
		},
		Before: initDB,
		After:  closeDB,
		Action: func(c *cli.Context) error {
			folder := strings.TrimSpace(c.String("folder"))
			if folder == "" {
				return cli.Exit("--folder is required", 2)
			}

			db, err := dbFrom(c)
			if err != nil {
				return err
			}

			driveCfg := cfg.Drive
			driveCfg.CredentialsFile = c.String("credentials")
			svc, err := drive.NewServiceFromConfig(c.Context, driveCfg)
			if err != nil {
				return fmt.Errorf("failed to initialize Drive service: %w", err)
			}

			importer := drive.NewImporter(svc, repository.NewIngestRepository(db), cfg.Planner.Days)
			summary, err := importer.ImportFolder(c.Context, folder, c.String("scenario"))
			if err != nil {
				return err
			}

			logger.Log.Info().
				Str("scenario", summary.ScenarioID).
				Int("files", len(summary.Files)).
				Int("added", summary.Added).
				Int("updated", summary.Updated).
				Msg("catalog imported")
			return nil
		},
	}
}
