package solver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
)

func newRemoteStub(t *testing.T, healthy bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(SubmitPath, func(w http.ResponseWriter, r *http.Request) {
		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out, err := NewSimplexEngine().Solve(r.Context(), req.Program, req.Options)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteEngine_RoundTrip(t *testing.T) {
	srv := newRemoteStub(t, true)

	engine, err := Open(context.Background(), Config{Engine: "remote", RemoteURL: srv.URL + "/"})
	require.NoError(t, err)

	out, err := NewAdapter(engine).Submit(context.Background(), tinyProgram(), DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, domain.StatusOptimal, out.Status)
	assert.Equal(t, 3.0, out.Values["x"])
	assert.InDelta(t, 3, out.Objective, 1e-9)
}

func TestRemoteEngine_UnhealthyServiceFailsInit(t *testing.T) {
	srv := newRemoteStub(t, false)

	_, err := NewRemoteEngine(context.Background(), srv.URL, srv.Client())

	assert.ErrorIs(t, err, ErrEngineInit)
}

func TestRemoteEngine_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc(SubmitPath, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine exploded", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine, err := NewRemoteEngine(context.Background(), srv.URL, srv.Client())
	require.NoError(t, err)

	_, err = engine.Solve(context.Background(), tinyProgram(), DefaultOptions())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine exploded")
}

func TestRemoteEngine_SendsShortenedTimeLimit(t *testing.T) {
	var sent []time.Duration
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc(SubmitPath, func(w http.ResponseWriter, r *http.Request) {
		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sent = append(sent, req.Options.TimeLimit)
		_ = json.NewEncoder(w).Encode(&Outcome{Status: domain.StatusFeasibleNonOptimal, Objective: 3, Values: map[string]float64{"x": 3}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine, err := NewRemoteEngine(context.Background(), srv.URL, srv.Client())
	require.NoError(t, err)

	for _, limit := range []time.Duration{3 * time.Second, 300 * time.Millisecond} {
		opts := DefaultOptions()
		opts.TimeLimit = limit
		out, err := engine.Solve(context.Background(), tinyProgram(), opts)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFeasibleNonOptimal, out.Status)
	}

	assert.Equal(t, []time.Duration{2750 * time.Millisecond, 150 * time.Millisecond}, sent)
}

func TestRemoteTimeLimit(t *testing.T) {
	assert.Equal(t, 750*time.Millisecond, remoteTimeLimit(time.Second))
	assert.Equal(t, 200*time.Millisecond, remoteTimeLimit(400*time.Millisecond))
	assert.Equal(t, time.Duration(0), remoteTimeLimit(0))
}
