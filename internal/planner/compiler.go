package planner

import (
	"errors"
	"fmt"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/solver"
)

// ErrNameCollision means two variables or rows were given the same name.
var ErrNameCollision = errors.New("model name collision")

// VarKind tells production variables from overtime variables.
type VarKind int

const (
	ProductionVar VarKind = iota
	OvertimeVar
)

// VarRef locates a variable in the snapshot it was compiled from.
type VarRef struct {
	Kind     VarKind
	Product  int
	Resource string
	Day      int
}

// VariableIndex maps variable names to what they stand for and back.
type VariableIndex struct {
	refs       map[string]VarRef
	production [][]string
	overtime   map[string][]string
}

func newVariableIndex(products, days int) *VariableIndex {
	idx := &VariableIndex{
		refs:       make(map[string]VarRef),
		production: make([][]string, products),
		overtime:   make(map[string][]string),
	}
	for i := range idx.production {
		idx.production[i] = make([]string, days)
	}
	return idx
}

func (idx *VariableIndex) add(name string, ref VarRef) error {
	if _, dup := idx.refs[name]; dup {
		return fmt.Errorf("%w: variable %q", ErrNameCollision, name)
	}
	idx.refs[name] = ref
	switch ref.Kind {
	case ProductionVar:
		idx.production[ref.Product][ref.Day] = name
	case OvertimeVar:
		idx.overtime[ref.Resource][ref.Day] = name
	}
	return nil
}

// Lookup resolves a variable name back to the product or resource and day it stands for.
func (idx *VariableIndex) Lookup(name string) (VarRef, bool) {
	ref, ok := idx.refs[name]
	return ref, ok
}

// Production returns the name of the variable for product p on day d.
func (idx *VariableIndex) Production(p, d int) string {
	return idx.production[p][d]
}

// Overtime returns the name of the overtime variable of a resource on day d.
func (idx *VariableIndex) Overtime(resourceID string, d int) (string, bool) {
	names, ok := idx.overtime[resourceID]
	if !ok {
		return "", false
	}
	return names[d], true
}

// Len is the number of variables in the program.
func (idx *VariableIndex) Len() int {
	return len(idx.refs)
}

// Compiled is a program together with what is needed to decode its solution.
type Compiled struct {
	Program *solver.Program
	Index   *VariableIndex
	// Skipped names the custom constraints dropped for having no non-zero coefficient.
	Skipped []string
}

func productionName(p int, day string) string {
	return fmt.Sprintf("x_%d_%s", p, day)
}

func overtimeName(resourceID, day string) string {
	return fmt.Sprintf("ot_%s_%s", resourceID, day)
}

type programBuilder struct {
	prog  *solver.Program
	index *VariableIndex
	rows  map[string]bool
}

func (b *programBuilder) variable(v solver.Variable, ref VarRef) error {
	if err := b.index.add(v.Name, ref); err != nil {
		return err
	}
	b.prog.Variables = append(b.prog.Variables, v)
	return nil
}

// row appends a row unless it has no terms. Zero coefficients are dropped first.
func (b *programBuilder) row(name string, terms []solver.Term, bound solver.Bound) error {
	sparse := terms[:0]
	for _, t := range terms {
		if t.Coef != 0 {
			sparse = append(sparse, t)
		}
	}
	if len(sparse) == 0 {
		return nil
	}
	if b.rows[name] {
		return fmt.Errorf("%w: row %q", ErrNameCollision, name)
	}
	b.rows[name] = true
	b.prog.Rows = append(b.prog.Rows, solver.Row{Name: name, Terms: sparse, Bound: bound})
	return nil
}

// Compile builds the weekly production program for a validated snapshot. The output depends
// only on the snapshot, so equal snapshots compile to identical programs.
func Compile(s *domain.Snapshot) (*Compiled, error) {
	b := &programBuilder{
		prog: &solver.Program{
			Name:      s.Name,
			Direction: solver.Maximize,
		},
		index: newVariableIndex(len(s.Products), len(s.Days)),
		rows:  make(map[string]bool),
	}
	if b.prog.Name == "" {
		b.prog.Name = "production-mix"
	}
	out := &Compiled{Program: b.prog, Index: b.index}

	for i, p := range s.Products {
		for d, day := range s.Days {
			v := solver.Variable{Name: productionName(i, day), Objective: p.Margin(), Integer: true}
			if err := b.variable(v, VarRef{Kind: ProductionVar, Product: i, Day: d}); err != nil {
				return nil, err
			}
		}
	}

	for _, r := range s.Resources {
		if r.Overtime == nil {
			continue
		}
		b.index.overtime[r.ID] = make([]string, len(s.Days))
		for d, day := range s.Days {
			v := solver.Variable{Name: overtimeName(r.ID, day), Objective: -r.Overtime.CostPerHour, Integer: r.Overtime.Integral}
			if err := b.variable(v, VarRef{Kind: OvertimeVar, Resource: r.ID, Day: d}); err != nil {
				return nil, err
			}
		}
	}

	// Capacity, with overtime relaxing the row where configured.
	for _, r := range s.Resources {
		for d, day := range s.Days {
			terms := make([]solver.Term, 0, len(s.Products)+1)
			for i, p := range s.Products {
				terms = append(terms, solver.Term{Var: b.index.Production(i, d), Coef: p.UsageOf(r.ID)})
			}
			if ot, ok := b.index.Overtime(r.ID, d); ok {
				terms = append(terms, solver.Term{Var: ot, Coef: -1})
			}
			if err := b.row(fmt.Sprintf("cap_%s_%s", r.ID, day), terms, solver.UpperBound(r.Capacity)); err != nil {
				return nil, err
			}
		}
	}

	for _, r := range s.Resources {
		if r.Overtime == nil {
			continue
		}
		for d, day := range s.Days {
			ot, _ := b.index.Overtime(r.ID, d)
			terms := []solver.Term{{Var: ot, Coef: 1}}
			if err := b.row(fmt.Sprintf("otmax_%s_%s", r.ID, day), terms, solver.UpperBound(r.Overtime.MaxPerDay)); err != nil {
				return nil, err
			}
		}
	}

	for i, p := range s.Products {
		if err := b.row(fmt.Sprintf("weeklyMax_%d", i), weeklyTerms(b.index, i, len(s.Days), 1), solver.UpperBound(float64(p.WeeklyMax))); err != nil {
			return nil, err
		}
		if err := b.row(fmt.Sprintf("weeklyMin_%d", i), weeklyTerms(b.index, i, len(s.Days), 1), solver.LowerBound(float64(p.WeeklyMin))); err != nil {
			return nil, err
		}
	}

	// Custom constraints bound weekly totals, so each coefficient repeats across every day.
	for idx, c := range s.Constraints {
		var terms []solver.Term
		for i, p := range s.Products {
			if coef := c.Coefficients[p.ID]; coef != 0 {
				terms = append(terms, weeklyTerms(b.index, i, len(s.Days), coef)...)
			}
		}
		if len(terms) == 0 {
			out.Skipped = append(out.Skipped, displayConstraint(c))
			continue
		}
		if err := b.row(fmt.Sprintf("custom_%d", idx), terms, constraintBound(c)); err != nil {
			return nil, err
		}
	}

	if div := s.Diversification; div != nil {
		alpha := div.Alpha
		for i := range s.Products {
			terms := make([]solver.Term, 0, len(s.Products)*len(s.Days))
			for j := range s.Products {
				coef := -alpha
				if j == i {
					coef = 1 - alpha
				}
				terms = append(terms, weeklyTerms(b.index, j, len(s.Days), coef)...)
			}
			if err := b.row(fmt.Sprintf("div_%d", i), terms, solver.LowerBound(0)); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

func weeklyTerms(idx *VariableIndex, product, days int, coef float64) []solver.Term {
	terms := make([]solver.Term, days)
	for d := 0; d < days; d++ {
		terms[d] = solver.Term{Var: idx.Production(product, d), Coef: coef}
	}
	return terms
}

func constraintBound(c domain.CustomConstraint) solver.Bound {
	switch c.Operator {
	case domain.OpLessEqual:
		return solver.UpperBound(c.Value)
	case domain.OpGreaterEqual:
		return solver.LowerBound(c.Value)
	default:
		return solver.FixedBound(c.Value)
	}
}

func displayConstraint(c domain.CustomConstraint) string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
