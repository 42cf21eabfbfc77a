// backend-go/internal/repository/postgres/plan_run_repository.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/repository"
)

const defaultRunPage = 20

type planRunRow struct {
	ID           string         `db:"id"`
	ScenarioID   string         `db:"scenario_id"`
	SnapshotHash string         `db:"snapshot_hash"`
	Outcome      string         `db:"outcome"`
	Status       int            `db:"status"`
	Profit       float64        `db:"profit"`
	Snapshot     types.JSONText `db:"snapshot"`
	Plan         types.JSONText `db:"plan"`
	Diagnostics  types.JSONText `db:"diagnostics"`
	DurationMs   int64          `db:"duration_ms"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (r planRunRow) toDomain() (*domain.PlanRun, error) {
	run := &domain.PlanRun{
		ID:           r.ID,
		ScenarioID:   r.ScenarioID,
		SnapshotHash: r.SnapshotHash,
		Outcome:      r.Outcome,
		Status:       domain.SolverStatus(r.Status),
		Profit:       r.Profit,
		DurationMs:   r.DurationMs,
		CreatedAt:    r.CreatedAt,
	}

	run.Snapshot = &domain.Snapshot{}
	if err := r.Snapshot.Unmarshal(run.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode run snapshot %s: %w", r.ID, err)
	}
	if len(r.Plan) > 0 && string(r.Plan) != "null" {
		run.Plan = &domain.ProductionPlan{}
		if err := r.Plan.Unmarshal(run.Plan); err != nil {
			return nil, fmt.Errorf("failed to decode run plan %s: %w", r.ID, err)
		}
	}
	if len(r.Diagnostics) > 0 {
		if err := r.Diagnostics.Unmarshal(&run.Diagnostics); err != nil {
			return nil, fmt.Errorf("failed to decode run diagnostics %s: %w", r.ID, err)
		}
	}
	return run, nil
}

type planRunRepository struct {
	db *DB
}

func NewPlanRunRepository(db *DB) *planRunRepository {
	return &planRunRepository{db: db}
}

func (r *planRunRepository) SaveRun(ctx context.Context, run *domain.PlanRun) error {
	snapshot, err := json.Marshal(run.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode run snapshot: %w", err)
	}
	plan, err := json.Marshal(run.Plan)
	if err != nil {
		return fmt.Errorf("failed to encode run plan: %w", err)
	}
	diagnostics, err := json.Marshal(run.Diagnostics)
	if err != nil {
		return fmt.Errorf("failed to encode run diagnostics: %w", err)
	}

	query := `
		INSERT INTO plan_runs (
			id, scenario_id, snapshot_hash, outcome, status, profit,
			snapshot, plan, diagnostics, duration_ms, created_at
		) VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.ScenarioID,
		run.SnapshotHash,
		run.Outcome,
		int(run.Status),
		run.Profit,
		types.JSONText(snapshot),
		types.JSONText(plan),
		types.JSONText(diagnostics),
		run.DurationMs,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert plan run: %w", err)
	}
	return nil
}

const planRunColumns = `
	id, COALESCE(scenario_id, '') AS scenario_id, snapshot_hash, outcome, status, profit,
	snapshot, plan, diagnostics, duration_ms, created_at
`

func (r *planRunRepository) GetRun(ctx context.Context, id string) (*domain.PlanRun, error) {
	query := `SELECT ` + planRunColumns + ` FROM plan_runs WHERE id = $1`

	var row planRunRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get plan run: %w", err)
	}
	return row.toDomain()
}

func (r *planRunRepository) ListRuns(ctx context.Context, scenarioID string, limit int) ([]*domain.PlanRun, error) {
	if limit <= 0 {
		limit = defaultRunPage
	}

	query := `SELECT ` + planRunColumns + `
		FROM plan_runs
		WHERE scenario_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	var rows []planRunRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, scenarioID, limit); err != nil {
		return nil, fmt.Errorf("failed to list plan runs: %w", err)
	}

	out := make([]*domain.PlanRun, 0, len(rows))
	for _, row := range rows {
		run, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

var _ repository.PlanRunRepository = (*planRunRepository)(nil)
