package solver

import (
	"fmt"
	"time"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
)

// Direction of the objective.
type Direction string

const (
	Maximize Direction = "max"
	Minimize Direction = "min"
)

// Variable is a decision variable. Every variable is implicitly bounded below by zero.
type Variable struct {
	Name      string  `json:"name"`
	Objective float64 `json:"objective"`
	Integer   bool    `json:"integer"`
}

// Term is one non-zero coefficient of a row.
type Term struct {
	Var  string  `json:"var"`
	Coef float64 `json:"coef"`
}

// BoundType follows the GLPK bound kinds.
type BoundType string

const (
	BoundUpper  BoundType = "UP"
	BoundLower  BoundType = "LO"
	BoundFixed  BoundType = "FX"
	BoundDouble BoundType = "DB"
)

type Bound struct {
	Type  BoundType `json:"type"`
	Lower float64   `json:"lower,omitempty"`
	Upper float64   `json:"upper,omitempty"`
}

func UpperBound(v float64) Bound { return Bound{Type: BoundUpper, Upper: v} }
func LowerBound(v float64) Bound { return Bound{Type: BoundLower, Lower: v} }
func FixedBound(v float64) Bound { return Bound{Type: BoundFixed, Lower: v, Upper: v} }

// RangeBound bounds a row on both sides.
func RangeBound(lo, hi float64) Bound { return Bound{Type: BoundDouble, Lower: lo, Upper: hi} }

// Row is a sparse linear constraint.
type Row struct {
	Name  string `json:"name"`
	Terms []Term `json:"terms"`
	Bound Bound  `json:"bound"`
}

// Program is the request half of the solver boundary.
type Program struct {
	Name      string     `json:"name"`
	Direction Direction  `json:"direction"`
	Variables []Variable `json:"variables"`
	Rows      []Row      `json:"rows"`
}

// Validate checks that the program is well formed: unique names, no empty rows, and rows that
// only reference declared variables.
func (p *Program) Validate() error {
	if p.Direction != Maximize && p.Direction != Minimize {
		return fmt.Errorf("program %q: invalid direction %q", p.Name, p.Direction)
	}

	vars := make(map[string]bool, len(p.Variables))
	for _, v := range p.Variables {
		if v.Name == "" {
			return fmt.Errorf("program %q: variable without a name", p.Name)
		}
		if vars[v.Name] {
			return fmt.Errorf("program %q: duplicate variable %q", p.Name, v.Name)
		}
		vars[v.Name] = true
	}

	rows := make(map[string]bool, len(p.Rows))
	for _, r := range p.Rows {
		if rows[r.Name] {
			return fmt.Errorf("program %q: duplicate row %q", p.Name, r.Name)
		}
		rows[r.Name] = true

		if len(r.Terms) == 0 {
			return fmt.Errorf("program %q: row %q has no terms", p.Name, r.Name)
		}
		for _, t := range r.Terms {
			if !vars[t.Var] {
				return fmt.Errorf("program %q: row %q references unknown variable %q", p.Name, r.Name, t.Var)
			}
		}
		switch r.Bound.Type {
		case BoundUpper, BoundLower, BoundFixed:
		case BoundDouble:
			if r.Bound.Lower > r.Bound.Upper {
				return fmt.Errorf("program %q: row %q has an empty range", p.Name, r.Name)
			}
		default:
			return fmt.Errorf("program %q: row %q has invalid bound type %q", p.Name, r.Name, r.Bound.Type)
		}
	}

	return nil
}

// Options configures a single submission.
type Options struct {
	TimeLimit time.Duration `json:"time_limit"`
	Presolve  bool          `json:"presolve"`
	// Verbosity only affects engine logging: 0 off, 1 errors, 2 normal, 3 everything.
	Verbosity int `json:"verbosity"`
	// MIPGap is the relative distance between the best plan and the best bound at which a
	// large search may stop and report OPTIMAL. Zero asks for a full proof.
	MIPGap float64 `json:"mip_gap"`
}

// DefaultMIPGap accepts a plan within half a percent of the best bound.
const DefaultMIPGap = 0.005

// DefaultOptions is a three second limit with presolve enabled and the default gap.
func DefaultOptions() Options {
	return Options{TimeLimit: 3 * time.Second, Presolve: true, MIPGap: DefaultMIPGap}
}

// Outcome is the response half of the solver boundary.
type Outcome struct {
	Status    domain.SolverStatus `json:"status"`
	Objective float64             `json:"objective"`
	Values    map[string]float64  `json:"values,omitempty"`
}

func undefinedOutcome() *Outcome {
	return &Outcome{Status: domain.StatusUndefined}
}
