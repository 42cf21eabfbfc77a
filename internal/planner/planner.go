package planner

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/solver"
)

// Outcome is the category of a planning result.
type Outcome string

const (
	OutcomePlanned    Outcome = "PLANNED"
	OutcomeReady      Outcome = "READY"
	OutcomeInvalid    Outcome = "INVALID"
	OutcomeOverloaded Outcome = "OVERLOADED"
	OutcomeNoSolution Outcome = "NO_SOLUTION"
	OutcomeUnbounded  Outcome = "UNBOUNDED"
	OutcomeUndefined  Outcome = "UNDEFINED"
	OutcomeFatal      Outcome = "FATAL"
	OutcomeBusy       Outcome = "BUSY"
)

// ErrBusy is reported when a solve is already running on the planner.
var ErrBusy = errors.New("a solve is already in progress")

var (
	infeasibleCauses = []string{
		"Custom constraints conflict with each other or are too restrictive",
		"Weekly production minimums are too high",
		"Resources lack the capacity to meet minimum demand",
		"The combination of constraints admits no solution",
	}
	infeasibleSuggestions = []string{
		"Review the custom constraints",
		"Lower the weekly production minimums",
		"Increase the capacity of the critical resources",
		"Relax some equality constraints",
	}
)

// ClassifyStatus maps a solver status onto the planning outcome it leads to.
func ClassifyStatus(s domain.SolverStatus) Outcome {
	switch s {
	case domain.StatusOptimal, domain.StatusFeasibleNonOptimal:
		return OutcomePlanned
	case domain.StatusInfeasible, domain.StatusNoFeasibleSolution:
		return OutcomeNoSolution
	case domain.StatusUnbounded:
		return OutcomeUnbounded
	case domain.StatusUndefined:
		return OutcomeUndefined
	default:
		return OutcomeFatal
	}
}

// Result is what a solve hands back to callers. Exactly one Outcome applies; Plan is set only
// for OutcomePlanned.
type Result struct {
	Outcome     Outcome                `json:"outcome"`
	Status      domain.SolverStatus    `json:"status,omitempty"`
	Plan        *domain.ProductionPlan `json:"plan,omitempty"`
	Problems    []string               `json:"problems,omitempty"`
	Overloads   []Overload             `json:"overloads,omitempty"`
	Diagnostics []string               `json:"diagnostics,omitempty"`
	Suggestions []string               `json:"suggestions,omitempty"`
	Warnings    []string               `json:"warnings,omitempty"`
	Skipped     []string               `json:"skipped_constraints,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Err         error                  `json:"-"`
}

// Retryable reports whether the same request may succeed if tried again.
func (r *Result) Retryable() bool {
	return r.Outcome == OutcomeUndefined || r.Outcome == OutcomeBusy
}

func (r *Result) fail(err error) *Result {
	r.Outcome = OutcomeFatal
	r.Err = err
	r.Error = err.Error()
	return r
}

// Submitter hands a compiled program to an optimizer.
type Submitter interface {
	Submit(ctx context.Context, prog *solver.Program, opts solver.Options) (*solver.Outcome, error)
}

// Observer is notified once per finished solve.
type Observer interface {
	ObserveSolve(outcome Outcome, status domain.SolverStatus, elapsed time.Duration)
}

// Option customizes a Planner built by New.
type Option func(*Planner)

// WithObserver reports every finished solve to o.
func WithObserver(o Observer) Option {
	return func(p *Planner) { p.observer = o }
}

// Planner runs the validate, pre-check, compile, submit and interpret pipeline.
// It runs one solve at a time and rejects overlapping calls.
type Planner struct {
	submitter Submitter
	opts      solver.Options
	guard     *semaphore.Weighted
	observer  Observer
	log       zerolog.Logger
}

// New returns a planner that submits compiled programs to submitter with opts.
func New(submitter Submitter, opts solver.Options, options ...Option) *Planner {
	p := &Planner{
		submitter: submitter,
		opts:      opts,
		guard:     semaphore.NewWeighted(1),
		log:       log.With().Str("component", "planner").Logger(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *Planner) Options() solver.Options {
	return p.opts
}

// Check validates the snapshot and runs the feasibility pre-check without solving.
// A passing check has Outcome READY.
func (p *Planner) Check(snap *domain.Snapshot) *Result {
	if snap == nil {
		return missingSnapshot()
	}
	res, _ := p.prepare(snap.Clone())
	if res.Outcome == "" {
		res.Outcome = OutcomeReady
	}
	return res
}

func missingSnapshot() *Result {
	return &Result{Outcome: OutcomeInvalid, Problems: []string{"no snapshot supplied"}, Diagnostics: []string{"no snapshot supplied"}}
}

// Solve plans production for snap. The snapshot is copied first, so the caller may keep
// editing it while the solve runs.
func (p *Planner) Solve(ctx context.Context, snap *domain.Snapshot) *Result {
	if snap == nil {
		return missingSnapshot()
	}
	if !p.guard.TryAcquire(1) {
		return &Result{Outcome: OutcomeBusy, Error: ErrBusy.Error(), Err: ErrBusy}
	}
	defer p.guard.Release(1)

	start := time.Now()
	res := p.solve(ctx, snap.Clone())
	elapsed := time.Since(start)

	if p.observer != nil {
		p.observer.ObserveSolve(res.Outcome, res.Status, elapsed)
	}

	event := p.log.Info()
	if res.Outcome == OutcomeFatal {
		event = p.log.Error().Err(res.Err)
	}
	event.
		Str("scenario", snap.Name).
		Str("outcome", string(res.Outcome)).
		Str("status", res.Status.String()).
		Dur("elapsed", elapsed).
		Msg("solve finished")

	return res
}

// prepare runs validation and the pre-check. A non-empty Outcome ends the solve.
func (p *Planner) prepare(snap *domain.Snapshot) (*Result, *Compiled) {
	res := &Result{}

	if err := snap.Validate(); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			res.Outcome = OutcomeInvalid
			res.Problems = verr.Problems
			res.Diagnostics = verr.Problems
			return res, nil
		}
		return res.fail(err), nil
	}
	res.Warnings = snap.Warnings()

	report := Precheck(snap)
	if !report.Passed() {
		res.Outcome = OutcomeOverloaded
		res.Overloads = report.Overloads
		res.Diagnostics = report.Diagnostics()
		return res, nil
	}

	compiled, err := Compile(snap)
	if err != nil {
		return res.fail(pkgerrors.Wrap(err, "compile model")), nil
	}
	res.Skipped = compiled.Skipped
	for _, name := range compiled.Skipped {
		res.Warnings = append(res.Warnings, "custom constraint "+name+" has no non-zero coefficient and was skipped")
	}

	return res, compiled
}

func (p *Planner) solve(ctx context.Context, snap *domain.Snapshot) *Result {
	res, compiled := p.prepare(snap)
	if res.Outcome != "" {
		return res
	}

	out, err := p.submitter.Submit(ctx, compiled.Program, p.opts)
	if err != nil {
		return res.fail(err)
	}
	if out == nil {
		return res.fail(pkgerrors.Wrap(ErrMalformedResponse, "empty solver outcome"))
	}

	res.Status = out.Status
	res.Outcome = ClassifyStatus(out.Status)

	switch res.Outcome {
	case OutcomePlanned:
		plan, err := Interpret(snap, compiled, out)
		if err != nil {
			return res.fail(err)
		}
		plan.SnapshotHash = snap.Hash()
		res.Plan = plan
	case OutcomeNoSolution:
		res.Diagnostics = append([]string{out.Status.Description()}, infeasibleCauses...)
		res.Suggestions = append([]string(nil), infeasibleSuggestions...)
	case OutcomeUnbounded:
		res.Diagnostics = []string{
			out.Status.Description(),
			"A product with positive margin is not limited by any resource or weekly maximum",
		}
	case OutcomeUndefined:
		res.Diagnostics = []string{
			out.Status.Description(),
			"The solver stopped before reaching a result; try again or raise the time limit",
		}
	default:
		return res.fail(pkgerrors.Wrapf(ErrMalformedResponse, "unknown solver status %d", int(out.Status)))
	}

	return res
}
