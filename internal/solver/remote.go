package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
)

// SubmitPath is where a remote engine accepts programs.
const SubmitPath = "/api/v1/solver/submit"

// remoteSlack covers the round trip on top of the remote adapter's own deadline grace.
const remoteSlack = 150 * time.Millisecond

// SubmitRequest is the body posted to a remote engine.
type SubmitRequest struct {
	Program *Program `json:"program" binding:"required"`
	Options Options  `json:"options"`
}

// RemoteEngine forwards programs to another planner service over HTTP.
type RemoteEngine struct {
	baseURL string
	client  *http.Client
}

// NewRemoteEngine checks baseURL/health and fails with ErrEngineInit when the service is unreachable.
func NewRemoteEngine(ctx context.Context, baseURL string, client *http.Client) (*RemoteEngine, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, pkgerrors.Wrap(ErrEngineInit, "remote engine url is empty")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	e := &RemoteEngine{baseURL: baseURL, client: client}
	if err := e.ping(ctx); err != nil {
		return nil, pkgerrors.Wrapf(ErrEngineInit, "remote engine %s: %v", baseURL, err)
	}
	return e, nil
}

func (e *RemoteEngine) Name() string { return "remote" }

func (e *RemoteEngine) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

func (e *RemoteEngine) Solve(ctx context.Context, prog *Program, opts Options) (*Outcome, error) {
	opts.TimeLimit = remoteTimeLimit(opts.TimeLimit)
	payload, err := json.Marshal(SubmitRequest{Program: prog, Options: opts})
	if err != nil {
		return nil, fmt.Errorf("encode program: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+SubmitPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return undefinedOutcome(), nil
		}
		return nil, fmt.Errorf("submit program: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("remote engine returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out Outcome
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode outcome: %w", err)
	}
	return &out, nil
}

// remoteTimeLimit shortens the limit sent to a remote instance so an incumbent it returns at
// its own deadline still arrives before the local one. The remote never gets less than half.
func remoteTimeLimit(limit time.Duration) time.Duration {
	if limit <= 0 {
		return limit
	}
	reduced := limit - deadlineGrace - remoteSlack
	if reduced < limit/2 {
		return limit / 2
	}
	return reduced
}
