package domain

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

var dayKeyPattern = regexp.MustCompile(`^[a-z0-9]+$`)

// ValidationError collects every problem found in a snapshot.
type ValidationError struct {
	Problems []string `json:"problems"`
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Validate checks the invariants a snapshot must satisfy before it can be compiled.
// It returns a *ValidationError listing every problem, or nil.
func (s *Snapshot) Validate() error {
	verr := &ValidationError{}

	if len(s.Days) == 0 {
		verr.add("planning horizon has no days")
	}
	seenDays := make(map[string]bool, len(s.Days))
	for _, d := range s.Days {
		if !dayKeyPattern.MatchString(d) {
			verr.add("invalid day key %q (lowercase letters and digits only)", d)
		}
		if seenDays[d] {
			verr.add("duplicate day key %q", d)
		}
		seenDays[d] = true
	}

	resourceIDs := make(map[string]bool, len(s.Resources))
	for _, r := range s.Resources {
		if strings.TrimSpace(r.ID) == "" || strings.ContainsAny(r.ID, " \t\n") {
			verr.add("resource %q has an invalid id", r.Name)
		}
		if resourceIDs[r.ID] {
			verr.add("duplicate resource id %q", r.ID)
		}
		resourceIDs[r.ID] = true

		if !isFinite(r.Capacity) || r.Capacity < 0 {
			verr.add("invalid capacity for %s", displayName(r.Name, r.ID))
		}
		if ot := r.Overtime; ot != nil {
			if !isFinite(ot.MaxPerDay) || ot.MaxPerDay < 0 {
				verr.add("invalid overtime limit for %s", displayName(r.Name, r.ID))
			}
			if !isFinite(ot.CostPerHour) || ot.CostPerHour < 0 {
				verr.add("invalid overtime cost for %s", displayName(r.Name, r.ID))
			}
		}
	}

	productIDs := make(map[string]bool, len(s.Products))
	productNames := make(map[string]bool, len(s.Products))
	for _, p := range s.Products {
		if strings.TrimSpace(p.ID) == "" {
			verr.add("product %q has no id", p.Name)
		}
		if productIDs[p.ID] {
			verr.add("duplicate product id %q", p.ID)
		}
		productIDs[p.ID] = true
		if productNames[p.Name] {
			verr.add("a product named %q already exists", p.Name)
		}
		productNames[p.Name] = true

		if !isFinite(p.UnitCost) || !isFinite(p.SalePrice) {
			verr.add("product %s: cost and sale price must be numbers", p.Name)
		}
		if p.WeeklyMin < 0 || p.WeeklyMax < 0 {
			verr.add("product %s: weekly bounds must not be negative", p.Name)
		}
		if p.WeeklyMin > p.WeeklyMax {
			verr.add("product %s: minimum > maximum", p.Name)
		}
		for resID, usage := range p.Usage {
			if !resourceIDs[resID] {
				verr.add("product %s uses unknown resource %q", p.Name, resID)
			}
			if !isFinite(usage) || usage < 0 {
				verr.add("product %s: invalid usage of resource %q", p.Name, resID)
			}
		}
	}

	for _, c := range s.Constraints {
		if !c.Operator.Valid() {
			verr.add("constraint %q has invalid operator %q", c.Name, c.Operator)
		}
		if !isFinite(c.Value) {
			verr.add("constraint %q has an invalid value", c.Name)
		}
		for productID, coef := range c.Coefficients {
			if !productIDs[productID] {
				verr.add("constraint %q references unknown product %q", c.Name, productID)
			}
			if !isFinite(coef) {
				verr.add("constraint %q has an invalid coefficient for %q", c.Name, productID)
			}
		}
	}

	if d := s.Diversification; d != nil {
		if !isFinite(d.Alpha) || d.Alpha < 0 || d.Alpha >= 1 {
			verr.add("diversification fraction must be in [0, 1), got %v", d.Alpha)
		}
	}

	if len(verr.Problems) == 0 {
		return nil
	}
	return verr
}

// Warnings lists suspicious but solvable inputs.
func (s *Snapshot) Warnings() []string {
	var warnings []string
	for _, p := range s.Products {
		if p.UnitCost > p.SalePrice {
			warnings = append(warnings, fmt.Sprintf("product %s costs more than its sale price", p.Name))
		}
	}
	return warnings
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
