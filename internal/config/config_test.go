package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func loadFresh(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return read(v)
}

func TestRead_Defaults(t *testing.T) {
	cfg := loadFresh(t)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "simplex", cfg.Solver.Engine)
	assert.Equal(t, 3*time.Second, cfg.Solver.TimeLimit())
	assert.True(t, cfg.Solver.Presolve)
	assert.Equal(t, 0.005, cfg.Solver.MIPGap)
	assert.Equal(t, []string{"mon", "tue", "wed", "thu", "fri"}, cfg.Planner.Days)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 600, cfg.Cache.PlanTTLSeconds)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestRead_Environment(t *testing.T) {
	t.Setenv("REPOSITORY_DRIVER", "Memory")
	t.Setenv("SOLVER_TIME_LIMIT_SECONDS", "0.5")
	t.Setenv("SOLVER_ENGINE", "remote")
	t.Setenv("SOLVER_REMOTE_URL", "http://solver:8080")
	t.Setenv("SOLVER_MIP_GAP", "0")
	t.Setenv("PLANNER_DAYS", "SEG, ter,qua,,qui,sex")
	t.Setenv("STORAGE_ENABLED", "true")

	cfg := loadFresh(t)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 500*time.Millisecond, cfg.Solver.TimeLimit())
	assert.Equal(t, "remote", cfg.Solver.Engine)
	assert.Equal(t, "http://solver:8080", cfg.Solver.RemoteURL)
	assert.Zero(t, cfg.Solver.MIPGap)
	assert.Equal(t, []string{"seg", "ter", "qua", "qui", "sex"}, cfg.Planner.Days)
	assert.True(t, cfg.Storage.Enabled)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "mixplan", SSLMode: "disable"}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=mixplan sslmode=disable", c.DSN())
}

func TestSolverConfig_TimeLimitFallback(t *testing.T) {
	assert.Equal(t, 3*time.Second, SolverConfig{TimeLimitSeconds: -1}.TimeLimit())
}
