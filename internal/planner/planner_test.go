package planner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/solver"
)

func TestPlanner_CapacityBindsBeforeWeeklyMax(t *testing.T) {
	res := simplexPlanner().Solve(context.Background(), singleProduct())

	require.Equal(t, OutcomePlanned, res.Outcome, res.Error)
	assert.Equal(t, domain.StatusOptimal, res.Status)
	require.NotNil(t, res.Plan)
	assert.Equal(t, 40, res.Plan.Products[0].Total)
	assert.Equal(t, []int{8, 8, 8, 8, 8}, res.Plan.Products[0].Daily)
	assert.InDelta(t, 400, res.Plan.Profit, 1e-6)
	assert.InDelta(t, 400, res.Plan.CrossCheckProfit, 1e-6)
	assert.NotEmpty(t, res.Plan.SnapshotHash)
}

func TestPlanner_FiveStageWeekReachesOptimal(t *testing.T) {
	// Eight products over the five default stages, usage given in seconds per unit.
	type row struct {
		name        string
		cost, price float64
		seconds     [5]float64
	}
	rows := []row{
		{"Bojo Liso", 12.40, 31.90, [5]float64{144, 148, 100, 128, 160}},
		{"Bojo Renda", 18.75, 44.50, [5]float64{133, 156, 140, 122, 159}},
		{"Bojo Bordado", 21.30, 49.90, [5]float64{107, 127, 113, 134, 107}},
		{"Bojo Push-up", 15.10, 36.80, [5]float64{152, 98, 131, 117, 141}},
		{"Bojo Nadador", 10.80, 27.40, [5]float64{96, 121, 155, 139, 102}},
		{"Bojo Tomara", 14.60, 35.20, [5]float64{125, 143, 97, 150, 118}},
		{"Bojo Infantil", 8.90, 22.30, [5]float64{101, 112, 126, 95, 137}},
		{"Bojo Gestante", 19.40, 42.70, [5]float64{158, 134, 119, 147, 128}},
	}
	resources := domain.DefaultResources()
	snap := &domain.Snapshot{Name: "five-stage", Days: weekDays(), Resources: resources}
	for _, r := range rows {
		in := domain.ProductInput{Name: r.name, UnitCost: r.cost, SalePrice: r.price, WeeklyMin: 20, WeeklyMax: 900, UsageSeconds: map[string]float64{}}
		for i, res := range resources {
			in.UsageSeconds[res.ID] = r.seconds[i]
		}
		snap.Products = append(snap.Products, in.ToDomain())
	}

	res := simplexPlanner().Solve(context.Background(), snap)

	require.Equal(t, OutcomePlanned, res.Outcome, res.Error)
	assert.Equal(t, domain.StatusOptimal, res.Status)
	require.NotNil(t, res.Plan)
	// The continuous relaxation tops out just above 29705.
	assert.GreaterOrEqual(t, res.Plan.Profit, 29500.0)
	assert.LessOrEqual(t, res.Plan.Profit, 29706.0)
	for _, p := range res.Plan.Products {
		assert.GreaterOrEqual(t, p.Total, 20, p.Name)
		assert.LessOrEqual(t, p.Total, 900, p.Name)
	}
}

func TestPlanner_OverloadStopsBeforeSolving(t *testing.T) {
	snap := &domain.Snapshot{
		Name: "competing",
		Days: weekDays(),
		Products: []domain.Product{
			{ID: "a", Name: "A", UnitCost: 1, SalePrice: 4, Usage: map[string]float64{"sew": 1}, WeeklyMin: 25, WeeklyMax: 50},
			{ID: "b", Name: "B", UnitCost: 1, SalePrice: 3, Usage: map[string]float64{"sew": 1}, WeeklyMin: 25, WeeklyMax: 50},
		},
		Resources: []domain.Resource{{ID: "sew", Name: "Sewing", Capacity: 8}},
	}
	submitter := &echoSubmitter{status: domain.StatusOptimal}

	res := New(submitter, solver.DefaultOptions()).Solve(context.Background(), snap)

	assert.Equal(t, OutcomeOverloaded, res.Outcome)
	require.Len(t, res.Overloads, 1)
	assert.Equal(t, "sew", res.Overloads[0].ResourceID)
	assert.Equal(t, 50.0, res.Overloads[0].Demand)
	assert.Equal(t, 40.0, res.Overloads[0].Capacity)
	assert.NotEmpty(t, res.Diagnostics)
	assert.Nil(t, res.Plan)
	assert.Zero(t, submitter.calls)
}

func TestPlanner_EqualityConstraintBalancesTotals(t *testing.T) {
	snap := &domain.Snapshot{
		Name: "equal",
		Days: weekDays(),
		Products: []domain.Product{
			{ID: "a", Name: "A", UnitCost: 5, SalePrice: 10, Usage: map[string]float64{"ra": 1}, WeeklyMax: 100},
			{ID: "b", Name: "B", UnitCost: 2, SalePrice: 5, Usage: map[string]float64{"rb": 1}, WeeklyMax: 100},
		},
		Resources: []domain.Resource{
			{ID: "ra", Name: "Line A", Capacity: 8},
			{ID: "rb", Name: "Line B", Capacity: 4},
		},
		Constraints: []domain.CustomConstraint{
			{ID: "c1", Name: "A equals B", Operator: domain.OpEqual, Value: 0, Coefficients: map[string]float64{"a": 1, "b": -1}},
		},
	}

	res := simplexPlanner().Solve(context.Background(), snap)

	require.Equal(t, OutcomePlanned, res.Outcome, res.Error)
	require.Len(t, res.Plan.Products, 2)
	assert.Equal(t, res.Plan.Products[0].Total, res.Plan.Products[1].Total)
	assert.Equal(t, 20, res.Plan.Products[1].Total)
	assert.InDelta(t, 20*5+20*3, res.Plan.Profit, 1e-6)
}

func TestPlanner_OvertimeExtendsCapacity(t *testing.T) {
	snap := singleProduct()
	snap.Resources[0].Overtime = &domain.OvertimeConfig{MaxPerDay: 2, CostPerHour: 3}

	res := simplexPlanner().Solve(context.Background(), snap)

	require.Equal(t, OutcomePlanned, res.Outcome, res.Error)
	assert.Equal(t, 50, res.Plan.Products[0].Total)
	require.Len(t, res.Plan.Overtime, 1)
	assert.InDelta(t, 10, res.Plan.Overtime[0].Total, 1e-6)
	assert.InDelta(t, 470, res.Plan.Profit, 1e-6)
	assert.InDelta(t, 470, res.Plan.CrossCheckProfit, 1e-6)
}

func TestPlanner_ExpensiveOvertimeIsNotBought(t *testing.T) {
	snap := singleProduct()
	snap.Resources[0].Overtime = &domain.OvertimeConfig{MaxPerDay: 2, CostPerHour: 25}

	res := simplexPlanner().Solve(context.Background(), snap)

	require.Equal(t, OutcomePlanned, res.Outcome, res.Error)
	assert.Equal(t, 40, res.Plan.Products[0].Total)
	assert.InDelta(t, 0, res.Plan.Overtime[0].Total, 1e-6)
	assert.InDelta(t, 400, res.Plan.Profit, 1e-6)
}

func TestPlanner_DiversificationShares(t *testing.T) {
	snap := &domain.Snapshot{
		Name: "mix",
		Days: weekDays(),
		Products: []domain.Product{
			{ID: "a", Name: "A", UnitCost: 0, SalePrice: 10, Usage: map[string]float64{"sew": 1}, WeeklyMax: 100},
			{ID: "b", Name: "B", UnitCost: 0, SalePrice: 1, Usage: map[string]float64{"sew": 1}, WeeklyMax: 100},
		},
		Resources:       []domain.Resource{{ID: "sew", Name: "Sewing", Capacity: 8}},
		Diversification: &domain.DiversificationPolicy{Alpha: 0.3},
	}

	res := simplexPlanner().Solve(context.Background(), snap)

	require.Equal(t, OutcomePlanned, res.Outcome, res.Error)
	assert.Equal(t, 28, res.Plan.Products[0].Total)
	assert.Equal(t, 12, res.Plan.Products[1].Total)
	assert.InDelta(t, 292, res.Plan.Profit, 1e-6)
}

func TestPlanner_InfeasibleCustomConstraint(t *testing.T) {
	snap := singleProduct()
	snap.Products[0].WeeklyMin = 0
	snap.Constraints = []domain.CustomConstraint{
		{ID: "c1", Name: "too many", Operator: domain.OpGreaterEqual, Value: 1000, Coefficients: map[string]float64{"a": 1}},
	}

	res := simplexPlanner().Solve(context.Background(), snap)

	assert.Equal(t, OutcomeNoSolution, res.Outcome)
	assert.Equal(t, domain.StatusInfeasible, res.Status)
	assert.Nil(t, res.Plan)
	assert.Contains(t, res.Diagnostics, "Weekly production minimums are too high")
	assert.Contains(t, res.Suggestions, "Review the custom constraints")
	assert.False(t, res.Retryable())
}

func TestPlanner_InvalidSnapshot(t *testing.T) {
	snap := singleProduct()
	snap.Products[0].WeeklyMin = 200
	submitter := &echoSubmitter{status: domain.StatusOptimal}

	res := New(submitter, solver.DefaultOptions()).Solve(context.Background(), snap)

	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.Contains(t, res.Problems, "product A: minimum > maximum")
	assert.Zero(t, submitter.calls)
}

func TestPlanner_WarnsAboutSkippedAndUnprofitableInputs(t *testing.T) {
	snap := singleProduct()
	snap.Products[0].UnitCost = 25
	snap.Products[0].WeeklyMin = 0
	snap.Constraints = []domain.CustomConstraint{
		{ID: "c1", Name: "empty", Operator: domain.OpLessEqual, Value: 3, Coefficients: map[string]float64{"a": 0}},
	}

	res := simplexPlanner().Solve(context.Background(), snap)

	require.Equal(t, OutcomePlanned, res.Outcome, res.Error)
	assert.Equal(t, 0, res.Plan.Products[0].Total)
	assert.Equal(t, []string{"empty"}, res.Skipped)
	assert.Len(t, res.Warnings, 2)
}

func TestPlanner_SolveWorksOnACopy(t *testing.T) {
	snap := singleProduct()
	submitter := &echoSubmitter{status: domain.StatusOptimal, values: map[string]float64{"x_0_mon": 10}}

	res := New(submitter, solver.DefaultOptions()).Solve(context.Background(), snap)
	require.Equal(t, OutcomePlanned, res.Outcome, res.Error)

	snap.Products[0].Usage["sew"] = 99
	require.NotNil(t, submitter.program)
	for _, row := range submitter.program.Rows {
		for _, term := range row.Terms {
			assert.NotEqual(t, 99.0, term.Coef)
		}
	}
}

func TestPlanner_MissingVariableIsFatal(t *testing.T) {
	submitter := &echoSubmitter{status: domain.StatusOptimal, drop: "x_0_tue"}

	res := New(submitter, solver.DefaultOptions()).Solve(context.Background(), singleProduct())

	assert.Equal(t, OutcomeFatal, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrMalformedResponse)
	assert.Nil(t, res.Plan)
}

func TestPlanner_InconsistentObjectiveIsFatal(t *testing.T) {
	submitter := &echoSubmitter{status: domain.StatusOptimal, values: map[string]float64{"x_0_mon": 4}, skew: 50}

	res := New(submitter, solver.DefaultOptions()).Solve(context.Background(), singleProduct())

	assert.Equal(t, OutcomeFatal, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrInconsistentPlan)
}

func TestPlanner_EngineInitFailureIsFatal(t *testing.T) {
	_, err := solver.Open(context.Background(), solver.Config{Engine: "remote", RemoteURL: "http://127.0.0.1:1"})
	require.ErrorIs(t, err, solver.ErrEngineInit)

	failing := submitterFunc(func(context.Context, *solver.Program, solver.Options) (*solver.Outcome, error) {
		return nil, err
	})
	res := New(failing, solver.DefaultOptions()).Solve(context.Background(), singleProduct())

	assert.Equal(t, OutcomeFatal, res.Outcome)
	assert.ErrorIs(t, res.Err, solver.ErrEngineInit)
	assert.Zero(t, res.Status)
}

func TestPlanner_SolverStatusesMapToOutcomes(t *testing.T) {
	tests := []struct {
		status  domain.SolverStatus
		outcome Outcome
	}{
		{domain.StatusNoFeasibleSolution, OutcomeNoSolution},
		{domain.StatusUnbounded, OutcomeUnbounded},
		{domain.StatusUndefined, OutcomeUndefined},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			res := New(&echoSubmitter{status: tt.status}, solver.DefaultOptions()).Solve(context.Background(), singleProduct())
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.status, res.Status)
			assert.Nil(t, res.Plan)
			assert.NotEmpty(t, res.Diagnostics)
		})
	}

	res := New(&echoSubmitter{status: domain.SolverStatus(42)}, solver.DefaultOptions()).Solve(context.Background(), singleProduct())
	assert.Equal(t, OutcomeFatal, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrMalformedResponse)
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, OutcomePlanned, ClassifyStatus(domain.StatusOptimal))
	assert.Equal(t, OutcomePlanned, ClassifyStatus(domain.StatusFeasibleNonOptimal))
	assert.Equal(t, OutcomeNoSolution, ClassifyStatus(domain.StatusInfeasible))
	assert.Equal(t, OutcomeNoSolution, ClassifyStatus(domain.StatusNoFeasibleSolution))
	assert.Equal(t, OutcomeUnbounded, ClassifyStatus(domain.StatusUnbounded))
	assert.Equal(t, OutcomeUndefined, ClassifyStatus(domain.StatusUndefined))
	assert.Equal(t, OutcomeFatal, ClassifyStatus(0))
}

func TestPlanner_RejectsOverlappingSolves(t *testing.T) {
	blocker := &blockingSubmitter{entered: make(chan struct{}), release: make(chan struct{})}
	p := New(blocker, solver.DefaultOptions())

	var wg sync.WaitGroup
	var first *Result
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = p.Solve(context.Background(), singleProduct())
	}()

	select {
	case <-blocker.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first solve never reached the solver")
	}

	second := p.Solve(context.Background(), singleProduct())
	assert.Equal(t, OutcomeBusy, second.Outcome)
	assert.ErrorIs(t, second.Err, ErrBusy)
	assert.True(t, second.Retryable())

	close(blocker.release)
	wg.Wait()
	assert.Equal(t, OutcomeUndefined, first.Outcome)
	assert.True(t, first.Retryable())
}

func TestPlanner_Check(t *testing.T) {
	p := simplexPlanner()

	assert.Equal(t, OutcomeReady, p.Check(singleProduct()).Outcome)

	overloaded := singleProduct()
	overloaded.Products[0].WeeklyMin = 41
	assert.Equal(t, OutcomeOverloaded, p.Check(overloaded).Outcome)

	assert.Equal(t, OutcomeInvalid, p.Check(nil).Outcome)
}

type recordingObserver struct {
	outcomes []Outcome
}

func (r *recordingObserver) ObserveSolve(outcome Outcome, _ domain.SolverStatus, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func TestPlanner_NotifiesObserver(t *testing.T) {
	obs := &recordingObserver{}
	p := New(solver.NewAdapter(solver.NewSimplexEngine()), solver.DefaultOptions(), WithObserver(obs))

	p.Solve(context.Background(), singleProduct())

	assert.Equal(t, []Outcome{OutcomePlanned}, obs.outcomes)
}

type submitterFunc func(ctx context.Context, prog *solver.Program, opts solver.Options) (*solver.Outcome, error)

func (f submitterFunc) Submit(ctx context.Context, prog *solver.Program, opts solver.Options) (*solver.Outcome, error) {
	return f(ctx, prog, opts)
}
