package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/repository"
)

type fakeSource struct {
	files    []*File
	contents map[string][]byte
}

func (f *fakeSource) ListFiles(ctx context.Context, folderID string) ([]*File, error) {
	return f.files, nil
}

func (f *fakeSource) DownloadFile(ctx context.Context, fileID string, w io.Writer) error {
	data, ok := f.contents[fileID]
	if !ok {
		return fmt.Errorf("no file %s", fileID)
	}
	_, err := w.Write(data)
	return err
}

func (f *fakeSource) FindFolderByPath(ctx context.Context, path string) (string, error) {
	if path == "catalogs/2026" {
		return "folder-2026", nil
	}
	return "", fmt.Errorf("folder not found: %s", path)
}

type fakeStore struct {
	snapshots map[string]*domain.Snapshot
	upserts   int
}

func (s *fakeStore) LoadSnapshot(ctx context.Context, id string) (*domain.Snapshot, error) {
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return snap.Clone(), nil
}

func (s *fakeStore) UpsertScenario(ctx context.Context, scenario *domain.Scenario) error {
	s.upserts++
	s.snapshots[scenario.ID] = scenario.Snapshot.Clone()
	return nil
}

const catalogCSV = `Nome,Custo,Preco,Minimo,Maximo,finalizacao_seconds,colocar_pala_hours
Classic,"R$ 10,50","R$ 1.025,00",2,40,360,0.25
Sport,8,20.5,,30,180,

`

func TestParseCatalogCSV(t *testing.T) {
	products, err := ParseCatalogCSV(strings.NewReader(catalogCSV))
	require.NoError(t, err)
	require.Len(t, products, 2)

	classic := products[0]
	assert.Equal(t, "Classic", classic.Name)
	assert.Equal(t, 10.5, classic.UnitCost)
	assert.Equal(t, 1025.0, classic.SalePrice)
	assert.Equal(t, 2, classic.WeeklyMin)
	assert.Equal(t, 40, classic.WeeklyMax)
	assert.Equal(t, map[string]float64{"finalizacao": 360}, classic.UsageSeconds)
	assert.Equal(t, map[string]float64{"colocar_pala": 0.25}, classic.Usage)

	sport := products[1]
	assert.Equal(t, 20.5, sport.SalePrice)
	assert.Equal(t, 0, sport.WeeklyMin)
	assert.Nil(t, sport.Usage)

	p := classic.ToDomain()
	assert.Equal(t, "classic", p.ID)
	assert.InDelta(t, 0.1, p.UsageOf("finalizacao"), 1e-12)
}

func TestParseCatalog_Errors(t *testing.T) {
	_, err := ParseCatalog(nil)
	assert.Error(t, err)

	_, err = ParseCatalog([][]string{{"cost", "price"}, {"1", "2"}})
	assert.ErrorContains(t, err, "missing required column: name")

	_, err = ParseCatalog([][]string{{"name", "max"}, {"A", "2.5"}})
	assert.ErrorContains(t, err, "row 2: weekly maximum")

	_, err = ParseCatalog([][]string{{"name", "cost"}, {"A", "abc"}})
	assert.ErrorContains(t, err, "row 2: unit cost")

	_, err = ParseCatalog([][]string{{"name", "cost"}, {"", "1"}})
	assert.ErrorContains(t, err, "product name is empty")
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"", 0},
		{"12", 12},
		{"12.5", 12.5},
		{"12,5", 12.5},
		{"R$ 1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"1.234.567", 1234567},
		{"$ 3", 3},
		{"-2,25", -2.25},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseAmount(tt.raw)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := parseAmount("1,2,3")
	assert.Error(t, err)
	_, err = parseAmount("twelve")
	assert.Error(t, err)
}

func xlsxCatalog(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"name", "cost", "price", "max", "finalizacao_seconds"},
		{"Lace", 12, 30, 25, 720},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestImporter_ImportFolder(t *testing.T) {
	ctx := context.Background()
	existing := &domain.Snapshot{
		Name:      "Week",
		Days:      []string{"mon", "tue"},
		Resources: domain.DefaultResources(),
		Products: []domain.Product{
			{ID: "classic", Name: "Classic", UnitCost: 9, SalePrice: 20, WeeklyMax: 10},
		},
	}
	store := &fakeStore{snapshots: map[string]*domain.Snapshot{"week": existing}}
	source := &fakeSource{
		files: []*File{
			{ID: "1", Name: "catalog.csv"},
			{ID: "2", Name: "lace.xlsx"},
			{ID: "3", Name: "notes.txt"},
		},
		contents: map[string][]byte{
			"1": []byte(catalogCSV),
			"2": xlsxCatalog(t),
		},
	}

	summary, err := NewImporter(source, store, domain.DefaultDays).ImportFolder(ctx, "folder", "week")
	require.NoError(t, err)
	assert.Equal(t, []string{"catalog.csv", "lace.xlsx"}, summary.Files)
	assert.Equal(t, 2, summary.Added)
	assert.Equal(t, 1, summary.Updated)

	snap := store.snapshots["week"]
	require.Len(t, snap.Products, 3)
	assert.Equal(t, 10.5, snap.Products[0].UnitCost)
	assert.Equal(t, "lace", snap.Products[2].ID)
	assert.InDelta(t, 0.2, snap.Products[2].UsageOf("finalizacao"), 1e-12)
	assert.Equal(t, []string{"mon", "tue"}, snap.Days)
}

func TestImporter_CreatesMissingScenario(t *testing.T) {
	store := &fakeStore{snapshots: map[string]*domain.Snapshot{}}
	source := &fakeSource{
		files:    []*File{{ID: "1", Name: "catalog.csv"}},
		contents: map[string][]byte{"1": []byte(catalogCSV)},
	}

	_, err := NewImporter(source, store, []string{"mon"}).ImportFolder(context.Background(), "", "fresh")
	require.NoError(t, err)

	snap := store.snapshots["fresh"]
	require.NotNil(t, snap)
	assert.Equal(t, []string{"mon"}, snap.Days)
	assert.Len(t, snap.Resources, 5)
	assert.Len(t, snap.Products, 2)
}

func TestImporter_InvalidCatalogWritesNothing(t *testing.T) {
	store := &fakeStore{snapshots: map[string]*domain.Snapshot{}}
	source := &fakeSource{
		files:    []*File{{ID: "1", Name: "bad.csv"}},
		contents: map[string][]byte{"1": []byte("name,min,max,laser_hours\nA,5,2,1\n")},
	}

	_, err := NewImporter(source, store, domain.DefaultDays).ImportFolder(context.Background(), "", "s")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Problems, "product A: minimum > maximum")
	assert.Zero(t, store.upserts)
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeStore{snapshots: map[string]*domain.Snapshot{}}
	source := &fakeSource{
		files:    []*File{{ID: "1", Name: "catalog.csv"}},
		contents: map[string][]byte{"1": []byte(catalogCSV)},
	}
	router := gin.New()
	NewHandler(source, NewImporter(source, store, domain.DefaultDays)).RegisterRoutes(router.Group("/api/v1"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/drive/files?path=catalogs/2026", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "catalog.csv")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/drive/files?path=nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/drive/import", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/drive/import",
		bytes.NewBufferString(`{"folder_id":"f","scenario_id":"wk"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data ImportSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.Added)
	assert.Len(t, store.snapshots["wk"].Products, 2)
}
