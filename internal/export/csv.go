// Package export renders production plans for download.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
)

// money renders an amount with two decimals. Going through decimal keeps 0.1+0.2 style noise
// out of the sheet.
func money(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

func hours(v float64) string {
	return decimal.NewFromFloat(v).Round(4).String()
}

// WritePlanCSV writes one row per product with its daily quantities, then one row per resource
// that bought overtime, then the total profit.
func WritePlanCSV(w io.Writer, plan *domain.ProductionPlan) error {
	if plan == nil {
		return fmt.Errorf("no plan to export")
	}

	cw := csv.NewWriter(w)

	header := append([]string{"item"}, plan.Days...)
	header = append(header, "total", "margin", "profit")
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, p := range plan.Products {
		row := make([]string, 0, len(header))
		row = append(row, p.Name)
		for _, q := range p.Daily {
			row = append(row, strconv.Itoa(q))
		}
		row = append(row, strconv.Itoa(p.Total), money(p.Margin), money(p.Profit))
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	for _, o := range plan.Overtime {
		row := make([]string, 0, len(header))
		row = append(row, "overtime: "+o.Name)
		for _, h := range o.Daily {
			row = append(row, hours(h))
		}
		row = append(row, hours(o.Total), "", money(-o.Cost))
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	footer := make([]string, len(header))
	footer[0] = "profit"
	footer[len(footer)-1] = money(plan.Profit)
	if err := cw.Write(footer); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// PlanCSV is WritePlanCSV into a byte slice.
func PlanCSV(plan *domain.ProductionPlan) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePlanCSV(&buf, plan); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ObjectKey is where the CSV of a run is stored.
func ObjectKey(scenarioID, runID string) string {
	if scenarioID == "" {
		scenarioID = "adhoc"
	}
	return fmt.Sprintf("plans/%s/%s.csv", scenarioID, runID)
}
