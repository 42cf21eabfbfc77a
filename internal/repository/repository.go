// backend-go/internal/repository/repository.go
package repository

import (
	"context"
	"errors"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

type ScenarioRepository interface {
	CreateScenario(ctx context.Context, scenario *domain.Scenario) error
	GetScenario(ctx context.Context, id string) (*domain.Scenario, error)
	ListScenarios(ctx context.Context) ([]*domain.Scenario, error)
	UpdateScenario(ctx context.Context, scenario *domain.Scenario) error
	DeleteScenario(ctx context.Context, id string) error
}

type PlanRunRepository interface {
	SaveRun(ctx context.Context, run *domain.PlanRun) error
	GetRun(ctx context.Context, id string) (*domain.PlanRun, error)
	// ListRuns returns the newest runs of a scenario first. limit <= 0 means a default page.
	ListRuns(ctx context.Context, scenarioID string, limit int) ([]*domain.PlanRun, error)
}
