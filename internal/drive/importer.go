package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/repository"
)

// ScenarioStore is where imported catalogs land. repository.IngestRepository implements it.
type ScenarioStore interface {
	LoadSnapshot(ctx context.Context, id string) (*domain.Snapshot, error)
	UpsertScenario(ctx context.Context, scenario *domain.Scenario) error
}

// ImportSummary reports what a folder import changed.
type ImportSummary struct {
	ScenarioID string   `json:"scenario_id"`
	Files      []string `json:"files"`
	Added      int      `json:"added"`
	Updated    int      `json:"updated"`
}

// Importer merges the product catalogs of a Drive folder into a scenario.
type Importer struct {
	source Source
	store  ScenarioStore
	days   []string
}

func NewImporter(source Source, store ScenarioStore, days []string) *Importer {
	return &Importer{source: source, store: store, days: days}
}

// ImportFolder reads every CSV and XLSX file of the folder, in name order, and upserts the
// products into the scenario. A scenario that does not exist yet is created with the default
// production line. Nothing is written when the merged scenario does not validate.
func (im *Importer) ImportFolder(ctx context.Context, folderID, scenarioID string) (*ImportSummary, error) {
	if strings.TrimSpace(scenarioID) == "" {
		return nil, fmt.Errorf("scenario id is required")
	}

	files, err := im.source.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{ScenarioID: scenarioID}
	var products []domain.ProductInput
	for _, f := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}

		var buf bytes.Buffer
		if err := im.source.DownloadFile(ctx, f.ID, &buf); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
		}

		var parsed []domain.ProductInput
		if ext == ".csv" {
			parsed, err = ParseCatalogCSV(&buf)
		} else {
			var records [][]string
			if records, err = readXLSXRecords(&buf); err == nil {
				parsed, err = ParseCatalog(records)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}

		log.Info().Str("file", f.Name).Int("products", len(parsed)).Msg("catalog file parsed")
		summary.Files = append(summary.Files, f.Name)
		products = append(products, parsed...)
	}

	snap, err := im.store.LoadSnapshot(ctx, scenarioID)
	if errors.Is(err, repository.ErrNotFound) {
		snap = &domain.Snapshot{
			Name:      scenarioID,
			Days:      append([]string(nil), im.days...),
			Resources: domain.DefaultResources(),
		}
	} else if err != nil {
		return nil, err
	}

	summary.Added, summary.Updated = MergeProducts(snap, products)

	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("imported catalog does not fit scenario %s: %w", scenarioID, err)
	}
	if err := im.store.UpsertScenario(ctx, &domain.Scenario{ID: scenarioID, Snapshot: *snap}); err != nil {
		return nil, err
	}

	return summary, nil
}

// MergeProducts replaces products with a matching id and appends the others.
func MergeProducts(snap *domain.Snapshot, inputs []domain.ProductInput) (added, updated int) {
	for _, in := range inputs {
		p := in.ToDomain()
		if i := snap.ProductIndex(p.ID); i >= 0 {
			snap.Products[i] = p
			updated++
			continue
		}
		snap.Products = append(snap.Products, p)
		added++
	}
	return added, updated
}
