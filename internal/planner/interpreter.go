package planner

import (
	"errors"
	"math"

	pkgerrors "github.com/pkg/errors"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/solver"
)

var (
	// ErrMalformedResponse means the engine answered without a value the program declared.
	ErrMalformedResponse = errors.New("malformed solver response")
	// ErrInconsistentPlan means the decoded plan does not reproduce the engine's objective.
	ErrInconsistentPlan = errors.New("decoded plan disagrees with solver objective")
)

// Interpret decodes a solution-bearing outcome into a production plan. Production quantities
// are rounded to whole units and overtime is reported as returned. The profit recomputed from
// the decoded plan must match the engine objective within rounding tolerance.
func Interpret(s *domain.Snapshot, c *Compiled, out *solver.Outcome) (*domain.ProductionPlan, error) {
	if !out.Status.HasSolution() {
		return nil, pkgerrors.Errorf("status %s carries no solution", out.Status)
	}

	plan := &domain.ProductionPlan{
		Status:   out.Status,
		Days:     append([]string(nil), s.Days...),
		Products: make([]domain.ProductPlan, 0, len(s.Products)),
		Profit:   out.Objective,
	}

	// drift bounds how far rounding can move the recomputed profit.
	drift := 0.0
	crossCheck := 0.0

	for i, p := range s.Products {
		margin := p.Margin()
		pp := domain.ProductPlan{
			ProductID: p.ID,
			Name:      p.Name,
			Daily:     make([]int, len(s.Days)),
			Margin:    margin,
		}
		for d := range s.Days {
			raw, err := lookup(out, c.Index.Production(i, d))
			if err != nil {
				return nil, err
			}
			qty := math.Round(math.Max(raw, 0))
			drift += math.Abs(raw-qty) * math.Abs(margin)
			pp.Daily[d] = int(qty)
			pp.Total += int(qty)
		}
		pp.Profit = float64(pp.Total) * margin
		crossCheck += pp.Profit
		plan.Products = append(plan.Products, pp)
	}

	for _, r := range s.Resources {
		if r.Overtime == nil {
			continue
		}
		usage := domain.OvertimeUsage{
			ResourceID: r.ID,
			Name:       r.Name,
			Daily:      make([]float64, len(s.Days)),
		}
		for d := range s.Days {
			name, ok := c.Index.Overtime(r.ID, d)
			if !ok {
				return nil, pkgerrors.Wrapf(ErrMalformedResponse, "no overtime variable for resource %s", r.ID)
			}
			raw, err := lookup(out, name)
			if err != nil {
				return nil, err
			}
			hours := math.Max(raw, 0)
			drift += (hours - raw) * r.Overtime.CostPerHour
			usage.Daily[d] = hours
			usage.Total += hours
		}
		usage.Cost = usage.Total * r.Overtime.CostPerHour
		crossCheck -= usage.Cost
		plan.Overtime = append(plan.Overtime, usage)
	}

	plan.CrossCheckProfit = crossCheck

	tolerance := 1e-6*math.Max(1, math.Abs(out.Objective)) + drift
	if math.Abs(crossCheck-out.Objective) > tolerance {
		return nil, pkgerrors.Wrapf(ErrInconsistentPlan, "recomputed profit %.6f, solver objective %.6f", crossCheck, out.Objective)
	}

	return plan, nil
}

func lookup(out *solver.Outcome, name string) (float64, error) {
	v, ok := out.Values[name]
	if !ok {
		return 0, pkgerrors.Wrapf(ErrMalformedResponse, "missing value for %s", name)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, pkgerrors.Wrapf(ErrMalformedResponse, "non-finite value for %s", name)
	}
	return v, nil
}
