package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
)

// IngestRepository writes scenarios through a plain database/sql handle. It backs the seed and
// catalog import commands, which open their own pgx connection.
type IngestRepository struct {
	db *sql.DB
}

func NewIngestRepository(db *sql.DB) *IngestRepository {
	return &IngestRepository{db: db}
}

// UpsertScenario inserts the scenario or replaces the stored snapshot of an existing one.
func (r *IngestRepository) UpsertScenario(ctx context.Context, scenario *domain.Scenario) error {
	payload, err := json.Marshal(scenario.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode scenario %s: %w", scenario.ID, err)
	}

	query := `
		INSERT INTO scenarios (id, name, snapshot, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, snapshot = EXCLUDED.snapshot, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, scenario.ID, scenario.Name, payload); err != nil {
		return fmt.Errorf("failed to upsert scenario %s: %w", scenario.ID, err)
	}
	return nil
}

// LoadSnapshot returns the stored snapshot of a scenario.
func (r *IngestRepository) LoadSnapshot(ctx context.Context, id string) (*domain.Snapshot, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT snapshot FROM scenarios WHERE id = $1`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario %s: %w", id, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode scenario %s: %w", id, err)
	}
	return &snap, nil
}

// CountScenarios reports how many scenarios are stored.
func (r *IngestRepository) CountScenarios(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scenarios`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count scenarios: %w", err)
	}
	return n, nil
}
