// Package memory keeps scenarios and plan runs in process. It serves tests and REPOSITORY_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/repository"
)

const defaultRunPage = 20

type Store struct {
	mu        sync.RWMutex
	scenarios map[string]*domain.Scenario
	runs      map[string]*domain.PlanRun
}

func NewStore() *Store {
	return &Store{
		scenarios: make(map[string]*domain.Scenario),
		runs:      make(map[string]*domain.PlanRun),
	}
}

var (
	_ repository.ScenarioRepository = (*Store)(nil)
	_ repository.PlanRunRepository  = (*Store)(nil)
)

func cloneScenario(s *domain.Scenario) *domain.Scenario {
	out := *s
	out.Snapshot = *s.Snapshot.Clone()
	return &out
}

func cloneRun(r *domain.PlanRun) *domain.PlanRun {
	out := *r
	out.Snapshot = r.Snapshot.Clone()
	out.Diagnostics = append([]string(nil), r.Diagnostics...)
	if r.Plan != nil {
		plan := *r.Plan
		plan.Products = make([]domain.ProductPlan, len(r.Plan.Products))
		for i, p := range r.Plan.Products {
			p.Daily = append([]int(nil), p.Daily...)
			plan.Products[i] = p
		}
		plan.Overtime = make([]domain.OvertimeUsage, len(r.Plan.Overtime))
		for i, o := range r.Plan.Overtime {
			o.Daily = append([]float64(nil), o.Daily...)
			plan.Overtime[i] = o
		}
		plan.Days = append([]string(nil), r.Plan.Days...)
		out.Plan = &plan
	}
	return &out
}

func (s *Store) CreateScenario(_ context.Context, scenario *domain.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios[scenario.ID] = cloneScenario(scenario)
	return nil
}

func (s *Store) GetScenario(_ context.Context, id string) (*domain.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scenarios[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneScenario(sc), nil
}

func (s *Store) ListScenarios(_ context.Context) ([]*domain.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Scenario, 0, len(s.scenarios))
	for _, sc := range s.scenarios {
		out = append(out, cloneScenario(sc))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateScenario(_ context.Context, scenario *domain.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scenarios[scenario.ID]; !ok {
		return repository.ErrNotFound
	}
	s.scenarios[scenario.ID] = cloneScenario(scenario)
	return nil
}

func (s *Store) DeleteScenario(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scenarios[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.scenarios, id)
	for runID, run := range s.runs {
		if run.ScenarioID == id {
			delete(s.runs, runID)
		}
	}
	return nil
}

func (s *Store) SaveRun(_ context.Context, run *domain.PlanRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *Store) GetRun(_ context.Context, id string) (*domain.PlanRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRun(run), nil
}

func (s *Store) ListRuns(_ context.Context, scenarioID string, limit int) ([]*domain.PlanRun, error) {
	if limit <= 0 {
		limit = defaultRunPage
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.PlanRun
	for _, run := range s.runs {
		if run.ScenarioID == scenarioID {
			out = append(out, cloneRun(run))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
