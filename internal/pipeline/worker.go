package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/planner"
)

// Loader reads a scenario file into a snapshot.
type Loader func(path string, defaultDays []string) (*domain.Snapshot, error)

// Worker solves scenario files concurrently. Every goroutine owns a planner, since a planner
// runs one solve at a time.
type Worker struct {
	config    PipelineConfig
	submitter planner.Submitter
	load      Loader
	options   []planner.Option
	onDone    func(*FileJob)
}

// NewWorker creates a new batch worker
func NewWorker(config PipelineConfig, submitter planner.Submitter, load Loader, options ...planner.Option) *Worker {
	return &Worker{
		config:    config,
		submitter: submitter,
		load:      load,
		options:   options,
	}
}

// OnDone registers a callback invoked after each job finishes. It may run on any worker
// goroutine and must be safe for concurrent use.
func (w *Worker) OnDone(fn func(*FileJob)) {
	w.onDone = fn
}

// ProcessBatch solves every file. Per-file problems are recorded on the job; the returned
// error is only set when ctx ends before the batch is done.
func (w *Worker) ProcessBatch(ctx context.Context, files []string) (*Report, error) {
	start := time.Now()
	log.Info().Int("files", len(files)).Msg("starting batch solve")

	jobs := make([]*FileJob, len(files))
	for i, file := range files {
		jobs[i] = &FileJob{FilePath: file, Status: FileStatusQueued}
	}

	workerCount := w.config.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}
	if workerCount > len(jobs) && len(jobs) > 0 {
		workerCount = len(jobs)
	}

	jobChan := make(chan *FileJob)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobChan)
		for _, job := range jobs {
			if err := gctx.Err(); err != nil {
				return err
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			case jobChan <- job:
			}
		}
		return nil
	})

	for i := 0; i < workerCount; i++ {
		workerID := i
		g.Go(func() error {
			p := planner.New(w.submitter, w.config.Options, w.options...)
			for job := range jobChan {
				w.processFile(gctx, p, job)
				log.Debug().Int("worker", workerID).Str("file", job.FilePath).Str("status", string(job.Status)).Msg("job finished")
				if w.onDone != nil {
					w.onDone(job)
				}
			}
			return nil
		})
	}

	err := g.Wait()

	report := &Report{Jobs: jobs}
	for _, job := range jobs {
		switch job.Status {
		case FileStatusCompleted:
			report.Completed++
			if job.Result.Outcome == planner.OutcomePlanned {
				report.Planned++
			}
		case FileStatusFailed:
			report.Failed++
		}
	}

	log.Info().
		Int("completed", report.Completed).
		Int("planned", report.Planned).
		Int("failed", report.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("batch solve finished")

	if err != nil {
		return report, fmt.Errorf("batch interrupted: %w", err)
	}
	return report, nil
}

// processFile solves a single file
func (w *Worker) processFile(ctx context.Context, p *planner.Planner, job *FileJob) {
	startTime := time.Now()
	job.Status = FileStatusProcessing
	defer func() { job.Elapsed = time.Since(startTime) }()

	snap, err := w.load(job.FilePath, w.config.Days)
	if err != nil {
		w.markJobFailed(job, fmt.Errorf("load failed: %w", err))
		return
	}
	job.ScenarioName = snap.Name
	job.Snapshot = snap

	for {
		job.Attempts++
		job.Result = p.Solve(ctx, snap)
		if !job.Result.Retryable() || job.Attempts > w.config.RetryAttempts || ctx.Err() != nil {
			break
		}
		log.Warn().Str("file", job.FilePath).Str("outcome", string(job.Result.Outcome)).Int("attempt", job.Attempts).Msg("retrying solve")
		select {
		case <-ctx.Done():
		case <-time.After(w.config.RetryBackoff):
		}
	}

	job.Status = FileStatusCompleted
}

func (w *Worker) markJobFailed(job *FileJob, err error) {
	log.Error().Err(err).Str("file", job.FilePath).Msg("job failed")
	job.Status = FileStatusFailed
	job.ErrorMessage = err.Error()
}
