package solver

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
)

func solveInProcess(t *testing.T, prog *Program) *Outcome {
	t.Helper()
	require.NoError(t, prog.Validate())
	out, err := NewSimplexEngine().Solve(context.Background(), prog, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, out)
	return out
}

func TestSimplexEngine_IntegerOptimumDiffersFromRelaxation(t *testing.T) {
	// The relaxation peaks at x=3, y=1.5 (21); the best integer point is x=4, y=0 (20).
	prog := &Program{
		Name:      "knapsack",
		Direction: Maximize,
		Variables: []Variable{
			{Name: "x", Objective: 5, Integer: true},
			{Name: "y", Objective: 4, Integer: true},
		},
		Rows: []Row{
			{Name: "a", Terms: []Term{{"x", 6}, {"y", 4}}, Bound: UpperBound(24)},
			{Name: "b", Terms: []Term{{"x", 1}, {"y", 2}}, Bound: UpperBound(6)},
		},
	}

	out := solveInProcess(t, prog)

	assert.Equal(t, domain.StatusOptimal, out.Status)
	assert.InDelta(t, 20, out.Objective, 1e-6)
	assert.Equal(t, 4.0, out.Values["x"])
	assert.Equal(t, 0.0, out.Values["y"])
}

func TestSimplexEngine_ContinuousRelaxation(t *testing.T) {
	prog := &Program{
		Name:      "lp",
		Direction: Maximize,
		Variables: []Variable{{Name: "x", Objective: 5}, {Name: "y", Objective: 4}},
		Rows: []Row{
			{Name: "a", Terms: []Term{{"x", 6}, {"y", 4}}, Bound: UpperBound(24)},
			{Name: "b", Terms: []Term{{"x", 1}, {"y", 2}}, Bound: UpperBound(6)},
		},
	}

	out := solveInProcess(t, prog)

	assert.Equal(t, domain.StatusOptimal, out.Status)
	assert.InDelta(t, 21, out.Objective, 1e-6)
	assert.InDelta(t, 3, out.Values["x"], 1e-6)
	assert.InDelta(t, 1.5, out.Values["y"], 1e-6)
}

func TestSimplexEngine_Minimize(t *testing.T) {
	prog := &Program{
		Name:      "min",
		Direction: Minimize,
		Variables: []Variable{{Name: "x", Objective: 2, Integer: true}, {Name: "y", Objective: 3, Integer: true}},
		Rows: []Row{
			{Name: "cover", Terms: []Term{{"x", 1}, {"y", 1}}, Bound: LowerBound(4)},
			{Name: "xcap", Terms: []Term{{"x", 1}}, Bound: UpperBound(3)},
		},
	}

	out := solveInProcess(t, prog)

	assert.Equal(t, domain.StatusOptimal, out.Status)
	assert.InDelta(t, 9, out.Objective, 1e-6)
	assert.Equal(t, 3.0, out.Values["x"])
	assert.Equal(t, 1.0, out.Values["y"])
}

func TestSimplexEngine_EqualityAndRangeRows(t *testing.T) {
	prog := &Program{
		Name:      "eq",
		Direction: Maximize,
		Variables: []Variable{{Name: "a", Objective: 1, Integer: true}, {Name: "b", Objective: 1, Integer: true}},
		Rows: []Row{
			{Name: "same", Terms: []Term{{"a", 1}, {"b", -1}}, Bound: FixedBound(0)},
			{Name: "total", Terms: []Term{{"a", 1}, {"b", 1}}, Bound: RangeBound(2, 7)},
		},
	}

	out := solveInProcess(t, prog)

	assert.Equal(t, domain.StatusOptimal, out.Status)
	assert.Equal(t, out.Values["a"], out.Values["b"])
	assert.InDelta(t, 6, out.Objective, 1e-6)
}

func TestSimplexEngine_Infeasible(t *testing.T) {
	prog := &Program{
		Name:      "infeasible",
		Direction: Maximize,
		Variables: []Variable{{Name: "x", Objective: 1}},
		Rows: []Row{
			{Name: "hi", Terms: []Term{{"x", 1}}, Bound: UpperBound(1)},
			{Name: "lo", Terms: []Term{{"x", 1}}, Bound: LowerBound(2)},
		},
	}

	out := solveInProcess(t, prog)

	assert.Equal(t, domain.StatusInfeasible, out.Status)
	assert.Nil(t, out.Values)
}

func TestSimplexEngine_NoIntegerPoint(t *testing.T) {
	prog := &Program{
		Name:      "half",
		Direction: Maximize,
		Variables: []Variable{{Name: "x", Objective: 1, Integer: true}},
		Rows: []Row{
			{Name: "twice", Terms: []Term{{"x", 2}}, Bound: FixedBound(1)},
		},
	}

	out := solveInProcess(t, prog)

	assert.Equal(t, domain.StatusNoFeasibleSolution, out.Status)
}

func TestSimplexEngine_Unbounded(t *testing.T) {
	t.Run("relaxation", func(t *testing.T) {
		prog := &Program{
			Name:      "open",
			Direction: Maximize,
			Variables: []Variable{{Name: "x", Objective: 1}},
			Rows:      []Row{{Name: "floor", Terms: []Term{{"x", 1}}, Bound: LowerBound(1)}},
		}
		assert.Equal(t, domain.StatusUnbounded, solveInProcess(t, prog).Status)
	})

	t.Run("variable in no row", func(t *testing.T) {
		prog := &Program{
			Name:      "free",
			Direction: Maximize,
			Variables: []Variable{{Name: "x", Objective: 1}, {Name: "y", Objective: 3}},
			Rows:      []Row{{Name: "cap", Terms: []Term{{"x", 1}}, Bound: UpperBound(1)}},
		}
		assert.Equal(t, domain.StatusUnbounded, solveInProcess(t, prog).Status)
	})
}

func TestSimplexEngine_TiedBoxedColumnIsNotUnbounded(t *testing.T) {
	// x - y is capped by the row even though x alone is not.
	prog := &Program{
		Name:      "tie",
		Direction: Maximize,
		Variables: []Variable{{Name: "x", Objective: 1, Integer: true}, {Name: "y", Objective: -1, Integer: true}},
		Rows:      []Row{{Name: "spread", Terms: []Term{{"x", 1}, {"y", -1}}, Bound: UpperBound(5)}},
	}

	out := solveInProcess(t, prog)

	assert.Equal(t, domain.StatusOptimal, out.Status)
	assert.InDelta(t, 5, out.Objective, 1e-6)
}

func TestSimplexEngine_FractionalRowCapOnIntegerColumn(t *testing.T) {
	// y <= 3.5 leaves no integer above 3, so branching up on y must be skipped.
	prog := &Program{
		Name:      "half-cap",
		Direction: Maximize,
		Variables: []Variable{{Name: "x", Objective: 1, Integer: true}, {Name: "y", Integer: true}},
		Rows: []Row{
			{Name: "floor", Terms: []Term{{"x", 1}}, Bound: LowerBound(2)},
			{Name: "pair", Terms: []Term{{"x", 1}, {"y", -2}}, Bound: UpperBound(0)},
			{Name: "cap", Terms: []Term{{"y", 1}}, Bound: UpperBound(3.5)},
		},
	}

	out := solveInProcess(t, prog)

	assert.Equal(t, domain.StatusOptimal, out.Status)
	assert.InDelta(t, 6, out.Objective, 1e-6)
	assert.Equal(t, 3.0, out.Values["y"])
}

func TestSimplexEngine_UnboundedAlongTwoColumns(t *testing.T) {
	prog := &Program{
		Name:      "ray",
		Direction: Maximize,
		Variables: []Variable{{Name: "x", Objective: 1, Integer: true}, {Name: "y", Objective: 1, Integer: true}},
		Rows:      []Row{{Name: "spread", Terms: []Term{{"x", 1}, {"y", -1}}, Bound: UpperBound(2)}},
	}

	assert.Equal(t, domain.StatusUnbounded, solveInProcess(t, prog).Status)
}

func TestSimplexEngine_IdleVariableWithoutGainStaysAtZero(t *testing.T) {
	prog := &Program{
		Name:      "idle",
		Direction: Maximize,
		Variables: []Variable{{Name: "x", Objective: 1}, {Name: "y", Objective: -2}},
		Rows:      []Row{{Name: "cap", Terms: []Term{{"x", 1}}, Bound: UpperBound(5)}},
	}

	out := solveInProcess(t, prog)

	assert.Equal(t, domain.StatusOptimal, out.Status)
	assert.InDelta(t, 5, out.Values["x"], 1e-9)
	assert.Equal(t, 0.0, out.Values["y"])
}

func TestSimplexEngine_ExpiredContext(t *testing.T) {
	prog := &Program{
		Name:      "late",
		Direction: Maximize,
		Variables: []Variable{{Name: "x", Objective: 1, Integer: true}},
		Rows:      []Row{{Name: "cap", Terms: []Term{{"x", 1}}, Bound: UpperBound(3)}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := NewSimplexEngine().Solve(ctx, prog, DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, domain.StatusUndefined, out.Status)
}

func TestSimplexEngine_RelativeGapEndsSearchEarly(t *testing.T) {
	// Fifteen fractional columns on one row keep the tree deep, but the rounded root is
	// already within a tenth of the bound.
	prog := &Program{Name: "wide", Direction: Maximize}
	var terms []Term
	for i := 0; i < 15; i++ {
		name := fmt.Sprintf("x%d", i)
		prog.Variables = append(prog.Variables, Variable{Name: name, Objective: 10 + float64(i%4), Integer: true})
		terms = append(terms, Term{Var: name, Coef: 3.7 + 0.13*float64(i)})
	}
	prog.Rows = []Row{{Name: "cap", Terms: terms, Bound: UpperBound(1000)}}
	require.NoError(t, prog.Validate())

	engine := NewSimplexEngine()
	engine.ExactNodes = 0
	opts := DefaultOptions()
	opts.MIPGap = 0.1

	out, err := engine.Solve(context.Background(), prog, opts)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusOptimal, out.Status)
	// The relaxation puts everything on x3, the best ratio column: 1000/4.09*13 = 3178.48.
	assert.GreaterOrEqual(t, out.Objective, 3178.48/1.1)
	assert.LessOrEqual(t, out.Objective, 3178.49)
}

func TestSimplexEngine_MatchesEnumerationOnSmallModels(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 300; trial++ {
		prog := randomProgram(rng, trial)
		want, feasible := enumerate(prog)

		out := solveInProcess(t, prog)

		if !feasible {
			assert.Contains(t, []domain.SolverStatus{domain.StatusInfeasible, domain.StatusNoFeasibleSolution}, out.Status, prog.Name)
			continue
		}
		require.Equal(t, domain.StatusOptimal, out.Status, prog.Name)
		assert.InDelta(t, want, out.Objective, 1e-6, prog.Name)
	}
}

func TestSimplexEngine_RelaxationMatchesGonum(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 50; trial++ {
		nv, nr := 2+rng.Intn(5), 1+rng.Intn(5)
		prog := &Program{Name: fmt.Sprintf("lp-%d", trial), Direction: Maximize}
		for j := 0; j < nv; j++ {
			prog.Variables = append(prog.Variables, Variable{Name: fmt.Sprintf("x%d", j), Objective: 1 + 9*rng.Float64()})
		}
		// Standard form for gonum: one slack per row, rows bounded above with positive
		// coefficients so the origin is feasible and every column is capped.
		A := mat.NewDense(nr, nv+nr, nil)
		b := make([]float64, nr)
		for i := 0; i < nr; i++ {
			row := Row{Name: fmt.Sprintf("r%d", i), Bound: UpperBound(5 + 20*rng.Float64())}
			for j := 0; j < nv; j++ {
				coef := 0.5 + 3*rng.Float64()
				row.Terms = append(row.Terms, Term{Var: prog.Variables[j].Name, Coef: coef})
				A.Set(i, j, coef)
			}
			A.Set(i, nv+i, 1)
			b[i] = row.Bound.Upper
			prog.Rows = append(prog.Rows, row)
		}
		c := make([]float64, nv+nr)
		for j, v := range prog.Variables {
			c[j] = -v.Objective
		}

		optF, _, err := lp.Simplex(c, A, b, 1e-10, nil)
		require.NoError(t, err)

		out := solveInProcess(t, prog)
		require.Equal(t, domain.StatusOptimal, out.Status)
		assert.InDelta(t, -optF, out.Objective, 1e-6, prog.Name)
	}
}

// randomProgram draws a two or three column model with every bound kind, a mix of integral
// and fractional coefficients, and sometimes one continuous column. A capacity row keeps
// every column below 25.
func randomProgram(rng *rand.Rand, trial int) *Program {
	prog := &Program{Name: fmt.Sprintf("random-%d", trial), Direction: Maximize}
	if rng.Intn(2) == 0 {
		prog.Direction = Minimize
	}
	integers := 2 + rng.Intn(2)
	continuous := rng.Intn(2)
	for j := 0; j < integers+continuous; j++ {
		prog.Variables = append(prog.Variables, Variable{
			Name:      fmt.Sprintf("x%d", j),
			Objective: float64(rng.Intn(13) - 3),
			Integer:   j < integers,
		})
	}

	capacity := Row{Name: "cap", Bound: UpperBound(float64(3 + rng.Intn(10)))}
	for _, v := range prog.Variables {
		capacity.Terms = append(capacity.Terms, Term{Var: v.Name, Coef: []float64{0.5, 1, 1.5, 2, 3}[rng.Intn(5)]})
	}
	prog.Rows = append(prog.Rows, capacity)

	extra := rng.Intn(4)
	for i := 0; i < extra; i++ {
		row := Row{Name: fmt.Sprintf("r%d", i)}
		for _, v := range prog.Variables {
			if rng.Float64() < 0.7 {
				coef := float64(rng.Intn(8) - 3)
				if rng.Intn(2) == 0 {
					coef = math.Round((rng.Float64()*5-2)*100) / 100
				}
				if coef != 0 {
					row.Terms = append(row.Terms, Term{Var: v.Name, Coef: coef})
				}
			}
		}
		if len(row.Terms) == 0 {
			continue
		}
		lo := float64(rng.Intn(15) - 4)
		switch rng.Intn(4) {
		case 0:
			row.Bound = UpperBound(lo + float64(rng.Intn(7)))
		case 1:
			row.Bound = LowerBound(lo)
		case 2:
			row.Bound = FixedBound(lo)
		default:
			row.Bound = RangeBound(lo, lo+float64(rng.Intn(7)))
		}
		prog.Rows = append(prog.Rows, row)
	}
	return prog
}

// enumerate finds the best value of a randomProgram model. Integer columns are tried from 0
// to 24 and a continuous column is placed at the better end of the interval left for it.
func enumerate(prog *Program) (float64, bool) {
	var ints []int
	cont := -1
	for j, v := range prog.Variables {
		if v.Integer {
			ints = append(ints, j)
		} else {
			cont = j
		}
	}
	sense := 1.0
	if prog.Direction == Minimize {
		sense = -1
	}

	best, found := 0.0, false
	x := make(map[string]float64, len(prog.Variables))
	var walk func(k int)
	walk = func(k int) {
		if k < len(ints) {
			for v := 0; v < 25; v++ {
				x[prog.Variables[ints[k]].Name] = float64(v)
				walk(k + 1)
			}
			return
		}

		candidates := []float64{0}
		if cont >= 0 {
			name := prog.Variables[cont].Name
			lo, hi := 0.0, math.Inf(1)
			for _, r := range prog.Rows {
				base, a := 0.0, 0.0
				for _, t := range r.Terms {
					if t.Var == name {
						a += t.Coef
					} else {
						base += t.Coef * x[t.Var]
					}
				}
				rlo, rhi := math.Inf(-1), math.Inf(1)
				switch r.Bound.Type {
				case BoundUpper:
					rhi = r.Bound.Upper
				case BoundLower:
					rlo = r.Bound.Lower
				default:
					rlo, rhi = r.Bound.Lower, r.Bound.Upper
				}
				if a == 0 {
					if base < rlo-1e-9 || base > rhi+1e-9 {
						return
					}
					continue
				}
				l, h := (rlo-base)/a, (rhi-base)/a
				if a < 0 {
					l, h = h, l
				}
				lo, hi = math.Max(lo, l), math.Min(hi, h)
			}
			if lo > hi+1e-9 {
				return
			}
			candidates = []float64{lo, hi}
		}

		for _, c := range candidates {
			if cont >= 0 {
				x[prog.Variables[cont].Name] = c
			}
			if !admitted(prog, x) {
				continue
			}
			value := 0.0
			for _, v := range prog.Variables {
				value += v.Objective * x[v.Name]
			}
			if !found || sense*value > sense*best+1e-9 {
				best, found = value, true
			}
		}
	}
	walk(0)
	return best, found
}

func admitted(prog *Program, x map[string]float64) bool {
	for _, r := range prog.Rows {
		a := 0.0
		for _, t := range r.Terms {
			a += t.Coef * x[t.Var]
		}
		switch r.Bound.Type {
		case BoundUpper:
			if a > r.Bound.Upper+1e-7 {
				return false
			}
		case BoundLower:
			if a < r.Bound.Lower-1e-7 {
				return false
			}
		default:
			if a < r.Bound.Lower-1e-7 || a > r.Bound.Upper+1e-7 {
				return false
			}
		}
	}
	return true
}

func TestPresolve_DropsRepeatedRows(t *testing.T) {
	rows := []Row{
		{Name: "a", Terms: []Term{{"x", 1}, {"y", 2}}, Bound: UpperBound(4)},
		{Name: "b", Terms: []Term{{"y", 2}, {"x", 1}}, Bound: UpperBound(4)},
		{Name: "c", Terms: []Term{{"x", 1}, {"y", 2}}, Bound: UpperBound(5)},
	}

	kept, removed := Presolve(rows)

	assert.Equal(t, 1, removed)
	require.Len(t, kept, 2)
	assert.Equal(t, "a", kept[0].Name)
	assert.Equal(t, "c", kept[1].Name)
	assert.Len(t, rows, 3)
}
