package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// SolverStatus is the terminal classification of a solve attempt.
// Numeric values follow the GLPK status codes.
type SolverStatus int

const (
	StatusUndefined          SolverStatus = 1
	StatusFeasibleNonOptimal SolverStatus = 2
	StatusInfeasible         SolverStatus = 3
	StatusNoFeasibleSolution SolverStatus = 4
	StatusOptimal            SolverStatus = 5
	StatusUnbounded          SolverStatus = 6
)

var solverStatusLabels = map[SolverStatus]string{
	StatusUndefined:          "UNDEFINED",
	StatusFeasibleNonOptimal: "FEASIBLE_NONOPTIMAL",
	StatusInfeasible:         "INFEASIBLE",
	StatusNoFeasibleSolution: "NO_FEASIBLE_SOLUTION",
	StatusOptimal:            "OPTIMAL",
	StatusUnbounded:          "UNBOUNDED",
}

var solverStatusCodes = map[string]SolverStatus{
	"undefined":            StatusUndefined,
	"feasible_nonoptimal":  StatusFeasibleNonOptimal,
	"feasible":             StatusFeasibleNonOptimal,
	"infeasible":           StatusInfeasible,
	"no_feasible_solution": StatusNoFeasibleSolution,
	"nofeasible":           StatusNoFeasibleSolution,
	"optimal":              StatusOptimal,
	"unbounded":            StatusUnbounded,
}

var solverStatusDescriptions = map[SolverStatus]string{
	StatusUndefined:          "Solution is undefined",
	StatusFeasibleNonOptimal: "Feasible solution found",
	StatusInfeasible:         "Problem is infeasible",
	StatusNoFeasibleSolution: "No feasible solution exists",
	StatusOptimal:            "Optimal solution found",
	StatusUnbounded:          "Problem is unbounded",
}

// String returns the status label, or UNKNOWN for values outside the enumeration.
func (s SolverStatus) String() string {
	if label, ok := solverStatusLabels[s]; ok {
		return label
	}
	return "UNKNOWN"
}

// Valid reports whether s is a member of the enumeration.
func (s SolverStatus) Valid() bool {
	_, ok := solverStatusLabels[s]
	return ok
}

// Description returns a human-readable sentence for the status.
func (s SolverStatus) Description() string {
	if d, ok := solverStatusDescriptions[s]; ok {
		return d
	}
	return "Unknown status"
}

// HasSolution reports whether the engine returned variable values worth decoding.
func (s SolverStatus) HasSolution() bool {
	return s == StatusOptimal || s == StatusFeasibleNonOptimal
}

// ParseSolverStatus accepts a label (case-insensitive) or a numeric GLPK code.
func ParseSolverStatus(label string) (SolverStatus, bool) {
	label = strings.TrimSpace(label)
	if code, err := strconv.Atoi(label); err == nil {
		s := SolverStatus(code)
		return s, s.Valid()
	}

	s, ok := solverStatusCodes[strings.ToLower(label)]
	return s, ok
}

func (s SolverStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SolverStatus) UnmarshalText(text []byte) error {
	if raw := strings.TrimSpace(string(text)); raw == "" || strings.EqualFold(raw, "UNKNOWN") {
		*s = 0
		return nil
	}
	parsed, ok := ParseSolverStatus(string(text))
	if !ok {
		return fmt.Errorf("unknown solver status %q", string(text))
	}
	*s = parsed
	return nil
}
