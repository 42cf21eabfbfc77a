package drive

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
)

const (
	secondsSuffix = "_seconds"
	hoursSuffix   = "_hours"
)

// Header aliases, lowercased. The Portuguese names match the spreadsheets the
// production team keeps.
var catalogColumns = map[string][]string{
	"id":         {"id", "sku", "codigo"},
	"name":       {"name", "product", "nome", "produto"},
	"unit_cost":  {"unit_cost", "cost", "custo"},
	"sale_price": {"sale_price", "price", "preco", "preço", "preco_venda"},
	"weekly_min": {"weekly_min", "min", "minimo", "mínimo"},
	"weekly_max": {"weekly_max", "max", "maximo", "máximo"},
}

// ParseCatalogCSV reads a product catalog sheet exported as CSV.
func ParseCatalogCSV(r io.Reader) ([]domain.ProductInput, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return ParseCatalog(records)
}

// ParseCatalog turns sheet rows into product inputs. The first row is the header. Besides the
// fixed columns, any column named <resource>_seconds or <resource>_hours is read as the
// per-unit usage of that resource. Blank rows are skipped.
func ParseCatalog(records [][]string) ([]domain.ProductInput, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	colMap := make(map[string]int)
	for i, col := range records[0] {
		colMap[strings.ToLower(strings.TrimSpace(col))] = i
	}

	index := make(map[string]int, len(catalogColumns))
	for field, aliases := range catalogColumns {
		for _, alias := range aliases {
			if i, ok := colMap[alias]; ok {
				index[field] = i
				break
			}
		}
	}
	if _, ok := index["name"]; !ok {
		return nil, fmt.Errorf("missing required column: name")
	}

	type usageColumn struct {
		resource string
		seconds  bool
		col      int
	}
	var usageCols []usageColumn
	for header, i := range colMap {
		switch {
		case strings.HasSuffix(header, secondsSuffix) && len(header) > len(secondsSuffix):
			usageCols = append(usageCols, usageColumn{strings.TrimSuffix(header, secondsSuffix), true, i})
		case strings.HasSuffix(header, hoursSuffix) && len(header) > len(hoursSuffix):
			usageCols = append(usageCols, usageColumn{strings.TrimSuffix(header, hoursSuffix), false, i})
		}
	}

	var products []domain.ProductInput
	for n, record := range records[1:] {
		line := n + 2
		getValue := func(field string) string {
			if i, ok := index[field]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}
		if isBlank(record) {
			continue
		}

		p := domain.ProductInput{
			ID:   getValue("id"),
			Name: getValue("name"),
		}
		if p.Name == "" {
			return nil, fmt.Errorf("row %d: product name is empty", line)
		}

		var err error
		if p.UnitCost, err = parseAmount(getValue("unit_cost")); err != nil {
			return nil, fmt.Errorf("row %d: unit cost: %w", line, err)
		}
		if p.SalePrice, err = parseAmount(getValue("sale_price")); err != nil {
			return nil, fmt.Errorf("row %d: sale price: %w", line, err)
		}
		if p.WeeklyMin, err = parseCount(getValue("weekly_min")); err != nil {
			return nil, fmt.Errorf("row %d: weekly minimum: %w", line, err)
		}
		if p.WeeklyMax, err = parseCount(getValue("weekly_max")); err != nil {
			return nil, fmt.Errorf("row %d: weekly maximum: %w", line, err)
		}

		for _, uc := range usageCols {
			if uc.col >= len(record) || strings.TrimSpace(record[uc.col]) == "" {
				continue
			}
			v, err := parseAmount(record[uc.col])
			if err != nil {
				return nil, fmt.Errorf("row %d: usage of %s: %w", line, uc.resource, err)
			}
			if v == 0 {
				continue
			}
			if uc.seconds {
				if p.UsageSeconds == nil {
					p.UsageSeconds = make(map[string]float64)
				}
				p.UsageSeconds[uc.resource] += v
			} else {
				if p.Usage == nil {
					p.Usage = make(map[string]float64)
				}
				p.Usage[uc.resource] += v
			}
		}

		products = append(products, p)
	}

	return products, nil
}

// parseAmount accepts plain numbers as well as "R$ 1.234,50" style amounts. When both
// separators appear the last one is the decimal separator; a lone comma is always decimal.
func parseAmount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return 0, nil
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastDot >= 0 && lastComma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return 0, fmt.Errorf("invalid number %q", raw)
		}
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	return d.InexactFloat64(), nil
}

func parseCount(raw string) (int, error) {
	v, err := parseAmount(raw)
	if err != nil {
		return 0, err
	}
	d := decimal.NewFromFloat(v)
	if !d.IsInteger() {
		return 0, fmt.Errorf("%q is not a whole number", raw)
	}
	return int(d.IntPart()), nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
