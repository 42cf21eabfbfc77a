package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
)

func TestPlanCSV(t *testing.T) {
	plan := &domain.ProductionPlan{
		Status: domain.StatusOptimal,
		Days:   []string{"mon", "tue"},
		Products: []domain.ProductPlan{
			{ProductID: "a", Name: "Classic, black", Daily: []int{3, 4}, Total: 7, Margin: 15, Profit: 105},
			{ProductID: "b", Name: "Sport", Daily: []int{0, 1}, Total: 1, Margin: 0.1 + 0.2, Profit: 0.1 + 0.2},
		},
		Overtime: []domain.OvertimeUsage{
			{ResourceID: "sew", Name: "Sewing", Daily: []float64{1.5, 0}, Total: 1.5, Cost: 22.5},
		},
		Profit: 82.8,
	}

	out, err := PlanCSV(plan)
	require.NoError(t, err)

	want := strings.Join([]string{
		"item,mon,tue,total,margin,profit",
		`"Classic, black",3,4,7,15.00,105.00`,
		"Sport,0,1,1,0.30,0.30",
		"overtime: Sewing,1.5,0,1.5,,-22.50",
		"profit,,,,,82.80",
		"",
	}, "\n")
	assert.Equal(t, want, string(out))
}

func TestPlanCSV_NilPlan(t *testing.T) {
	_, err := PlanCSV(nil)
	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "plans/s1/r1.csv", ObjectKey("s1", "r1"))
	assert.Equal(t, "plans/adhoc/r1.csv", ObjectKey("", "r1"))
}
