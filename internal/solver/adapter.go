package solver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrEngineInit means the optimizer engine could not be brought up. It is fatal for the solve.
	ErrEngineInit = errors.New("solver engine initialization failed")
	// ErrTimeLimitRequired is returned when a submission carries no time limit.
	ErrTimeLimitRequired = errors.New("solver time limit must be positive")
)

// How long the adapter waits past the deadline for an engine to hand back its incumbent.
const deadlineGrace = 100 * time.Millisecond

// Engine is an optimizer implementation. Solve must honor ctx and should return the best
// solution found so far when the context expires.
type Engine interface {
	Name() string
	Solve(ctx context.Context, prog *Program, opts Options) (*Outcome, error)
}

// Config selects and configures an engine.
type Config struct {
	Engine     string
	RemoteURL  string
	HTTPClient *http.Client
}

// Open initializes the configured engine. Failures wrap ErrEngineInit.
func Open(ctx context.Context, cfg Config) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case "", "simplex":
		return NewSimplexEngine(), nil
	case "remote":
		return NewRemoteEngine(ctx, cfg.RemoteURL, cfg.HTTPClient)
	default:
		return nil, pkgerrors.Wrapf(ErrEngineInit, "unknown engine %q", cfg.Engine)
	}
}

// Adapter is the translation boundary between compiled programs and an engine. It performs no
// business interpretation.
type Adapter struct {
	engine Engine
	log    zerolog.Logger
}

func NewAdapter(engine Engine) *Adapter {
	return &Adapter{
		engine: engine,
		log:    log.With().Str("component", "solver").Str("engine", engine.Name()).Logger(),
	}
}

// EngineName reports which engine backs the adapter.
func (a *Adapter) EngineName() string {
	return a.engine.Name()
}

// Submit runs the program under opts.TimeLimit. Expiry yields an UNDEFINED outcome, or the
// engine's incumbent if it returns one within a short grace period.
func (a *Adapter) Submit(ctx context.Context, prog *Program, opts Options) (*Outcome, error) {
	if opts.TimeLimit <= 0 {
		return nil, ErrTimeLimitRequired
	}
	if err := prog.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.TimeLimit)
	defer cancel()

	type result struct {
		out *Outcome
		err error
	}
	done := make(chan result, 1)
	start := time.Now()

	go func() {
		out, err := a.engine.Solve(ctx, prog, opts)
		done <- result{out: out, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		grace := time.NewTimer(deadlineGrace)
		defer grace.Stop()
		select {
		case res = <-done:
		case <-grace.C:
			a.log.Warn().Dur("limit", opts.TimeLimit).Msg("solver time limit expired")
			return undefinedOutcome(), nil
		}
	}

	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(res.err, context.Canceled) {
			return undefinedOutcome(), nil
		}
		return nil, res.err
	}
	if res.out == nil {
		return undefinedOutcome(), nil
	}

	if opts.Verbosity >= 2 {
		a.log.Info().
			Str("program", prog.Name).
			Str("status", res.out.Status.String()).
			Float64("objective", res.out.Objective).
			Dur("elapsed", time.Since(start)).
			Msg("solver finished")
	}

	return res.out, nil
}
