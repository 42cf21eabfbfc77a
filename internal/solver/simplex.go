package solver

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
)

// SimplexEngine solves programs in process. Relaxations run through a bounded dual simplex
// that is warm started from node to node, and integer variables are handled by a best-bound
// branch and bound seeded by rounding heuristics.
type SimplexEngine struct {
	// IntegralityTolerance is how far from an integer a value may be and still count as integral.
	IntegralityTolerance float64
	// MaxNodes caps the branch and bound tree. Zero means no cap.
	MaxNodes int
	// ExactNodes is how many nodes are searched before Options.MIPGap may end the search, so
	// small trees are always closed with a full proof.
	ExactNodes int
}

// NewSimplexEngine returns an engine with the default tolerances and node budgets.
func NewSimplexEngine() *SimplexEngine {
	return &SimplexEngine{
		IntegralityTolerance: 1e-6,
		MaxNodes:             200000,
		ExactNodes:           2000,
	}
}

func (e *SimplexEngine) Name() string { return "simplex" }

func (e *SimplexEngine) Solve(ctx context.Context, prog *Program, opts Options) (*Outcome, error) {
	logger := log.With().Str("component", "simplex").Str("program", prog.Name).Logger()

	rows := prog.Rows
	if opts.Presolve {
		var removed int
		rows, removed = Presolve(rows)
		if removed > 0 && opts.Verbosity >= 3 {
			logger.Debug().Int("removed", removed).Msg("presolve dropped duplicate rows")
		}
	}

	rel := newRelaxation(prog, rows)
	switch {
	case rel.infeasible:
		return &Outcome{Status: domain.StatusInfeasible}, nil
	case rel.unbounded:
		return &Outcome{Status: domain.StatusUnbounded}, nil
	}

	s := newSearch(rel, e, opts)
	s.log = logger
	status, x := s.run(ctx)

	out := &Outcome{Status: status}
	if status.HasSolution() {
		out.Values = rel.values(x, e.IntegralityTolerance)
		out.Objective = objectiveOf(prog, out.Values)
	}
	return out, nil
}

// boundedRow keeps the sum of coefs times the columns within [lo, hi]. Either side may be
// infinite.
type boundedRow struct {
	coefs  map[int]float64
	lo, hi float64
}

// relaxation is the continuous version of a program over the columns that appear in some row.
type relaxation struct {
	names     []string
	objective []float64
	integer   []bool
	// sign turns the objective into a minimization: -1 when maximizing.
	sign       float64
	rows       []boundedRow
	idle       []string
	infeasible bool
	unbounded  bool
}

func newRelaxation(prog *Program, rows []Row) *relaxation {
	rel := &relaxation{sign: 1}
	if prog.Direction == Maximize {
		rel.sign = -1
	}

	aggregated := make([]map[string]float64, len(rows))
	used := make(map[string]bool)
	for i, r := range rows {
		coefs := make(map[string]float64, len(r.Terms))
		for _, t := range r.Terms {
			coefs[t.Var] += t.Coef
		}
		for name, v := range coefs {
			if v == 0 {
				delete(coefs, name)
				continue
			}
			used[name] = true
		}
		aggregated[i] = coefs
	}

	col := make(map[string]int, len(prog.Variables))
	for _, v := range prog.Variables {
		if !used[v.Name] {
			// Free of every row, the variable sits at zero unless raising it improves the objective.
			if rel.sign*v.Objective < 0 {
				rel.unbounded = true
			}
			rel.idle = append(rel.idle, v.Name)
			continue
		}
		col[v.Name] = len(rel.names)
		rel.names = append(rel.names, v.Name)
		rel.objective = append(rel.objective, v.Objective)
		rel.integer = append(rel.integer, v.Integer)
	}

	for i, r := range rows {
		if len(aggregated[i]) == 0 {
			if !r.Bound.admits(0) {
				rel.infeasible = true
			}
			continue
		}
		coefs := make(map[int]float64, len(aggregated[i]))
		for name, v := range aggregated[i] {
			coefs[col[name]] = v
		}

		row := boundedRow{coefs: coefs, lo: math.Inf(-1), hi: math.Inf(1)}
		switch r.Bound.Type {
		case BoundUpper:
			row.hi = r.Bound.Upper
		case BoundLower:
			row.lo = r.Bound.Lower
		case BoundFixed, BoundDouble:
			row.lo, row.hi = r.Bound.Lower, r.Bound.Upper
		}
		rel.rows = append(rel.rows, row)
	}

	return rel
}

func (b Bound) admits(v float64) bool {
	switch b.Type {
	case BoundUpper:
		return v <= b.Upper
	case BoundLower:
		return v >= b.Lower
	default:
		return v >= b.Lower && v <= b.Upper
	}
}

// costs returns the objective as a minimization over the relaxation's columns.
func (r *relaxation) costs() []float64 {
	c := make([]float64, len(r.objective))
	for j, v := range r.objective {
		c[j] = r.sign * v
	}
	return c
}

func (r *relaxation) values(x []float64, intTol float64) map[string]float64 {
	out := make(map[string]float64, len(r.names)+len(r.idle))
	for j, v := range x {
		if r.integer[j] && math.Abs(v-math.Round(v)) <= intTol {
			v = math.Round(v)
		}
		if v < 0 && v > -intTol {
			v = 0
		}
		out[r.names[j]] = v
	}
	for _, name := range r.idle {
		out[name] = 0
	}
	return out
}

func objectiveOf(prog *Program, values map[string]float64) float64 {
	total := 0.0
	for _, v := range prog.Variables {
		total += v.Objective * values[v.Name]
	}
	return total
}
