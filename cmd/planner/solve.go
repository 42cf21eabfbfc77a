package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/mixplan/backend-go/internal/config"
	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/export"
	"github.com/andresuchdata/mixplan/backend-go/internal/pipeline"
	"github.com/andresuchdata/mixplan/backend-go/internal/planner"
	"github.com/andresuchdata/mixplan/backend-go/internal/scenariofile"
	"github.com/andresuchdata/mixplan/backend-go/internal/solver"
	"github.com/andresuchdata/mixplan/backend-go/internal/storage"
	"github.com/andresuchdata/mixplan/backend-go/pkg/logger"
)

func solverFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:  "time-limit",
			Usage: "Solver time limit per scenario",
			Value: cfg.Solver.TimeLimit(),
		},
		&cli.BoolFlag{
			Name:  "presolve",
			Usage: "Drop duplicate rows before solving",
			Value: cfg.Solver.Presolve,
		},
		&cli.Float64Flag{
			Name:  "mip-gap",
			Usage: "Relative gap at which a long search may stop, zero for a full proof",
			Value: cfg.Solver.MIPGap,
		},
		&cli.StringFlag{
			Name:  "engine",
			Usage: "Solver engine (simplex or remote)",
			Value: cfg.Solver.Engine,
		},
		&cli.StringFlag{
			Name:  "remote-url",
			Usage: "Base URL of a planner service used by the remote engine",
			Value: cfg.Solver.RemoteURL,
		},
	}
}

func solverOptions(c *cli.Context, cfg *config.Config) solver.Options {
	return solver.Options{
		TimeLimit: c.Duration("time-limit"),
		Presolve:  c.Bool("presolve"),
		Verbosity: cfg.Solver.Verbosity,
		MIPGap:    c.Float64("mip-gap"),
	}
}

func openAdapter(c *cli.Context) (*solver.Adapter, error) {
	engine, err := solver.Open(c.Context, solver.Config{Engine: c.String("engine"), RemoteURL: c.String("remote-url")})
	if err != nil {
		return nil, err
	}
	return solver.NewAdapter(engine), nil
}

func solveCommand(cfg *config.Config) *cli.Command {
	flags := append(solverFlags(cfg),
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Number of scenarios solved concurrently",
			Value: pipeline.DefaultPipelineConfig().WorkerCount,
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the full batch report as JSON",
		},
		&cli.BoolFlag{
			Name:  "upload",
			Usage: "Store the CSV of every planned scenario in the export storage",
		},
	)

	return &cli.Command{
		Name:      "solve",
		Usage:     "Solve scenario files or directories of them",
		ArgsUsage: "FILE...",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("at least one scenario file is required", 2)
			}

			adapter, err := openAdapter(c)
			if err != nil {
				return err
			}

			pcfg := pipeline.DefaultPipelineConfig()
			pcfg.WorkerCount = c.Int("workers")
			pcfg.Days = cfg.Planner.Days
			pcfg.Options = solverOptions(c, cfg)

			worker := pipeline.NewWorker(pcfg, adapter, scenariofile.Load)
			if c.Bool("upload") {
				store, err := storage.New(cfg.Storage, cfg.App.DataDir)
				if err != nil {
					return fmt.Errorf("failed to initialize export storage: %w", err)
				}
				worker.OnDone(uploadPlanned(c.Context, store))
			}

			report, err := pipeline.NewOrchestrator(worker).Run(c.Context, c.Args().Slice())
			if report != nil {
				if c.Bool("json") {
					if werr := writeJSON(os.Stdout, report); werr != nil {
						return werr
					}
				} else {
					printReport(os.Stdout, report)
				}
			}
			if err != nil {
				return err
			}
			if report.Failed > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d scenario files failed", report.Failed, len(report.Jobs)), 1)
			}
			return nil
		},
	}
}

func uploadPlanned(ctx context.Context, store storage.ObjectStorage) func(*pipeline.FileJob) {
	return func(job *pipeline.FileJob) {
		if job.Result == nil || job.Result.Plan == nil {
			return
		}
		data, err := export.PlanCSV(job.Result.Plan)
		if err != nil {
			logger.Log.Error().Err(err).Str("file", job.FilePath).Msg("failed to render plan export")
			return
		}
		key := export.ObjectKey(domain.Slug(job.ScenarioName), uuid.NewString())
		if err := store.UploadObject(ctx, key, data); err != nil {
			logger.Log.Error().Err(err).Str("key", key).Msg("failed to upload plan export")
			return
		}
		logger.Log.Info().Str("file", job.FilePath).Str("key", key).Msg("plan export uploaded")
	}
}

func printReport(w io.Writer, report *pipeline.Report) {
	for _, job := range report.Jobs {
		if job.Status == pipeline.FileStatusFailed {
			fmt.Fprintf(w, "%s\tFAILED\t%s\n", job.FilePath, job.ErrorMessage)
			continue
		}
		res := job.Result
		if res == nil {
			fmt.Fprintf(w, "%s\t%s\n", job.FilePath, job.Status)
			continue
		}
		line := fmt.Sprintf("%s\t%s", job.FilePath, res.Outcome)
		if res.Plan != nil {
			line += fmt.Sprintf("\tprofit=%.2f", res.Plan.Profit)
		}
		fmt.Fprintf(w, "%s\t%s\n", line, job.Elapsed.Round(time.Millisecond))
		for _, msg := range append(append([]string{}, res.Problems...), res.Diagnostics...) {
			fmt.Fprintf(w, "\t- %s\n", msg)
		}
	}
	fmt.Fprintf(w, "planned %d, completed %d, failed %d\n", report.Planned, report.Completed, report.Failed)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func precheckCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "precheck",
		Usage:     "Validate a scenario file and check capacity before solving",
		ArgsUsage: "FILE",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("exactly one scenario file is required", 2)
			}
			snap, err := scenariofile.Load(c.Args().First(), cfg.Planner.Days)
			if err != nil {
				return err
			}

			res := planner.New(nil, solver.DefaultOptions()).Check(snap)
			if err := writeJSON(os.Stdout, res); err != nil {
				return err
			}
			if res.Outcome != planner.OutcomeReady {
				return cli.Exit(string(res.Outcome), 1)
			}
			return nil
		},
	}
}

func compileCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "compile",
		Usage:     "Print the optimization model of a scenario file in CPLEX LP format",
		ArgsUsage: "FILE",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("exactly one scenario file is required", 2)
			}
			snap, err := scenariofile.Load(c.Args().First(), cfg.Planner.Days)
			if err != nil {
				return err
			}
			if err := snap.Validate(); err != nil {
				return err
			}

			compiled, err := planner.Compile(snap)
			if err != nil {
				return err
			}
			for _, name := range compiled.Skipped {
				logger.Log.Warn().Str("constraint", name).Msg("constraint has no coefficients, skipped")
			}
			return solver.WriteLP(os.Stdout, compiled.Program)
		},
	}
}
