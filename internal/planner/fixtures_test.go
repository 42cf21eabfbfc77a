package planner

import (
	"context"
	"sync"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/solver"
)

func weekDays() []string {
	return append([]string(nil), domain.DefaultDays...)
}

// singleProduct is one product with margin 10 on a single 8h/day resource.
func singleProduct() *domain.Snapshot {
	return &domain.Snapshot{
		Name: "single",
		Days: weekDays(),
		Products: []domain.Product{
			{ID: "a", Name: "A", UnitCost: 10, SalePrice: 20, Usage: map[string]float64{"sew": 1}, WeeklyMin: 10, WeeklyMax: 100},
		},
		Resources: []domain.Resource{{ID: "sew", Name: "Sewing", Capacity: 8}},
	}
}

// threeByTwo has three products sharing two resources; product c never touches "cut".
func threeByTwo() *domain.Snapshot {
	return &domain.Snapshot{
		Name: "three-by-two",
		Days: weekDays(),
		Products: []domain.Product{
			{ID: "a", Name: "A", UnitCost: 5, SalePrice: 12, Usage: map[string]float64{"cut": 0.5, "sew": 1}, WeeklyMax: 50},
			{ID: "b", Name: "B", UnitCost: 4, SalePrice: 9, Usage: map[string]float64{"cut": 0.25, "sew": 0.5}, WeeklyMax: 50},
			{ID: "c", Name: "C", UnitCost: 2, SalePrice: 5, Usage: map[string]float64{"sew": 0.25}, WeeklyMax: 50},
		},
		Resources: []domain.Resource{
			{ID: "cut", Name: "Cutting", Capacity: 8},
			{ID: "sew", Name: "Sewing", Capacity: 16},
		},
	}
}

func simplexPlanner() *Planner {
	return New(solver.NewAdapter(solver.NewSimplexEngine()), solver.DefaultOptions())
}

// echoSubmitter answers every program with fixed values and the objective they imply.
type echoSubmitter struct {
	mu      sync.Mutex
	status  domain.SolverStatus
	values  map[string]float64
	drop    string
	skew    float64
	calls   int
	program *solver.Program
}

func (e *echoSubmitter) Submit(_ context.Context, prog *solver.Program, _ solver.Options) (*solver.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.program = prog

	if !e.status.HasSolution() {
		return &solver.Outcome{Status: e.status}, nil
	}
	out := &solver.Outcome{Status: e.status, Values: make(map[string]float64, len(prog.Variables))}
	for _, v := range prog.Variables {
		if v.Name == e.drop {
			continue
		}
		val := e.values[v.Name]
		out.Values[v.Name] = val
		out.Objective += v.Objective * val
	}
	out.Objective += e.skew
	return out, nil
}

// blockingSubmitter parks inside Submit until released.
type blockingSubmitter struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSubmitter) Submit(ctx context.Context, _ *solver.Program, _ solver.Options) (*solver.Outcome, error) {
	close(b.entered)
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return &solver.Outcome{Status: domain.StatusUndefined}, nil
}
