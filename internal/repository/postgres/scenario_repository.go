// backend-go/internal/repository/postgres/scenario_repository.go
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

type scenarioRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Snapshot  types.JSONText `db:"snapshot"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r scenarioRow) toDomain() (*domain.Scenario, error) {
	sc := &domain.Scenario{ID: r.ID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
	if err := r.Snapshot.Unmarshal(&sc.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode scenario %s: %w", r.ID, err)
	}
	sc.Name = r.Name
	return sc, nil
}

type scenarioRepository struct {
	db *DB
}

func NewScenarioRepository(db *DB) *scenarioRepository {
	return &scenarioRepository{db: db}
}

func (r *scenarioRepository) CreateScenario(ctx context.Context, scenario *domain.Scenario) error {
	payload, err := json.Marshal(scenario.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode scenario: %w", err)
	}

	query := `
		INSERT INTO scenarios (id, name, snapshot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.db.ExecContext(ctx, query,
		scenario.ID,
		scenario.Name,
		types.JSONText(payload),
		scenario.CreatedAt,
		scenario.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scenario: %w", err)
	}
	return nil
}

func (r *scenarioRepository) GetScenario(ctx context.Context, id string) (*domain.Scenario, error) {
	query := `
		SELECT id, name, snapshot, created_at, updated_at
		FROM scenarios
		WHERE id = $1
	`

	var row scenarioRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}
	return row.toDomain()
}

func (r *scenarioRepository) ListScenarios(ctx context.Context) ([]*domain.Scenario, error) {
	query := `
		SELECT id, name, snapshot, created_at, updated_at
		FROM scenarios
		ORDER BY name, id
	`

	var rows []scenarioRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}

	out := make([]*domain.Scenario, 0, len(rows))
	for _, row := range rows {
		sc, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func (r *scenarioRepository) UpdateScenario(ctx context.Context, scenario *domain.Scenario) error {
	payload, err := json.Marshal(scenario.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode scenario: %w", err)
	}

	query := `
		UPDATE scenarios
		SET name = $2, snapshot = $3, updated_at = $4
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, scenario.ID, scenario.Name, types.JSONText(payload), scenario.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update scenario: %w", err)
	}
	return expectAffected(res)
}

func (r *scenarioRepository) DeleteScenario(ctx context.Context, id string) error {
	var affected int64
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM plan_runs WHERE scenario_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete plan runs: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM scenarios WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete scenario: %w", err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.ScenarioRepository = (*scenarioRepository)(nil)
