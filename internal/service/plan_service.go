package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/mixplan/backend-go/internal/cache"
	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/export"
	"github.com/andresuchdata/mixplan/backend-go/internal/planner"
	"github.com/andresuchdata/mixplan/backend-go/internal/repository"
	"github.com/andresuchdata/mixplan/backend-go/internal/storage"
)

// ErrNoPlan is returned when exporting a run that produced no plan.
var ErrNoPlan = errors.New("run has no production plan")

// CacheObserver is told about every plan cache lookup.
type CacheObserver interface {
	ObserveCache(hit bool)
}

type PlanServiceConfig struct {
	Planner   *planner.Planner
	Scenarios repository.ScenarioRepository
	Runs      repository.PlanRunRepository
	Cache     cache.PlanCache
	Storage   storage.ObjectStorage
	Observer  CacheObserver
	Days      []string
	// UploadExports stores the CSV of every planned run in Storage.
	UploadExports bool
}

type PlanService struct {
	planner   *planner.Planner
	scenarios repository.ScenarioRepository
	runs      repository.PlanRunRepository
	cache     cache.PlanCache
	storage   storage.ObjectStorage
	observer  CacheObserver
	days      []string
	upload    bool
	now       func() time.Time
}

func NewPlanService(cfg PlanServiceConfig) *PlanService {
	if cfg.Cache == nil {
		cfg.Cache = cache.NewNoopPlanCache()
	}
	if len(cfg.Days) == 0 {
		cfg.Days = domain.DefaultDays
	}
	return &PlanService{
		planner:   cfg.Planner,
		scenarios: cfg.Scenarios,
		runs:      cfg.Runs,
		cache:     cfg.Cache,
		storage:   cfg.Storage,
		observer:  cfg.Observer,
		days:      cfg.Days,
		upload:    cfg.UploadExports && cfg.Storage != nil,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// PrecheckScenario validates a stored scenario and runs the feasibility pre-check.
func (s *PlanService) PrecheckScenario(ctx context.Context, scenarioID string) (*planner.Result, error) {
	sc, err := s.scenarios.GetScenario(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	return s.planner.Check(&sc.Snapshot), nil
}

// PrecheckSnapshot is PrecheckScenario for a snapshot sent with the request.
func (s *PlanService) PrecheckSnapshot(in domain.SnapshotInput) (*planner.Result, error) {
	snap, err := in.ToSnapshot(s.days)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.planner.Check(snap), nil
}

// SolveScenario plans a stored scenario and records the run. BUSY results are not recorded.
func (s *PlanService) SolveScenario(ctx context.Context, scenarioID string) (*domain.PlanRun, *planner.Result, error) {
	sc, err := s.scenarios.GetScenario(ctx, scenarioID)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	res := s.solve(ctx, &sc.Snapshot)
	if res.Outcome == planner.OutcomeBusy {
		return nil, res, nil
	}

	run := s.newRun(scenarioID, &sc.Snapshot, res, time.Since(start))
	if err := s.runs.SaveRun(ctx, run); err != nil {
		return nil, res, fmt.Errorf("failed to record run: %w", err)
	}
	s.uploadExport(ctx, run)

	return run, res, nil
}

// SolveSnapshot plans a snapshot sent with the request without recording it.
func (s *PlanService) SolveSnapshot(ctx context.Context, in domain.SnapshotInput) (*planner.Result, error) {
	snap, err := in.ToSnapshot(s.days)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.solve(ctx, snap), nil
}

func (s *PlanService) solve(ctx context.Context, snap *domain.Snapshot) *planner.Result {
	hash := snap.Hash()
	opts := s.planner.Options()

	if res, ok, err := s.cache.GetPlan(ctx, hash, opts); err != nil {
		log.Warn().Err(err).Msg("plan: cache get failed")
	} else {
		if s.observer != nil {
			s.observer.ObserveCache(ok)
		}
		if ok {
			return res
		}
	}

	res := s.planner.Solve(ctx, snap)
	if res.Outcome == planner.OutcomePlanned {
		if err := s.cache.SetPlan(ctx, hash, opts, res); err != nil {
			log.Warn().Err(err).Msg("plan: cache set failed")
		}
	}
	return res
}

// ClearCache drops every cached plan. Cache keys carry the snapshot and the solver options
// but not the engine build, so plans cached before an engine change are only cleared here.
func (s *PlanService) ClearCache(ctx context.Context) error {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("failed to clear plan cache: %w", err)
	}
	log.Info().Msg("plan cache cleared")
	return nil
}

func (s *PlanService) newRun(scenarioID string, snap *domain.Snapshot, res *planner.Result, elapsed time.Duration) *domain.PlanRun {
	run := &domain.PlanRun{
		ID:           uuid.NewString(),
		ScenarioID:   scenarioID,
		SnapshotHash: snap.Hash(),
		Outcome:      string(res.Outcome),
		Status:       res.Status,
		Snapshot:     snap.Clone(),
		Plan:         res.Plan,
		DurationMs:   elapsed.Milliseconds(),
		CreatedAt:    s.now(),
	}
	run.Diagnostics = append(run.Diagnostics, res.Diagnostics...)
	run.Diagnostics = append(run.Diagnostics, res.Warnings...)
	if res.Error != "" {
		run.Diagnostics = append(run.Diagnostics, res.Error)
	}
	if res.Plan != nil {
		run.Profit = res.Plan.Profit
	}
	return run
}

func (s *PlanService) uploadExport(ctx context.Context, run *domain.PlanRun) {
	if !s.upload || run.Plan == nil {
		return
	}
	data, err := export.PlanCSV(run.Plan)
	if err != nil {
		log.Warn().Err(err).Str("run", run.ID).Msg("plan: export render failed")
		return
	}
	key := export.ObjectKey(run.ScenarioID, run.ID)
	if err := s.storage.UploadObject(ctx, key, data); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("plan: export upload failed")
		return
	}
	log.Info().Str("key", key).Msg("plan export uploaded")
}

func (s *PlanService) ListRuns(ctx context.Context, scenarioID string, limit int) ([]*domain.PlanRun, error) {
	if _, err := s.scenarios.GetScenario(ctx, scenarioID); err != nil {
		return nil, err
	}
	runs, err := s.runs.ListRuns(ctx, scenarioID, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = make([]*domain.PlanRun, 0)
	}
	return runs, nil
}

func (s *PlanService) GetRun(ctx context.Context, runID string) (*domain.PlanRun, error) {
	return s.runs.GetRun(ctx, runID)
}

// ExportRun renders the plan of a run as CSV.
func (s *PlanService) ExportRun(ctx context.Context, runID string) ([]byte, error) {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Plan == nil {
		return nil, ErrNoPlan
	}
	return export.PlanCSV(run.Plan)
}
