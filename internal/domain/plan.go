package domain

import "time"

// ProductPlan is the decoded production schedule of one product.
type ProductPlan struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Daily     []int   `json:"daily"`
	Total     int     `json:"total"`
	Margin    float64 `json:"margin"`
	Profit    float64 `json:"profit"`
}

// OvertimeUsage is the extra hours bought on one resource, per day.
type OvertimeUsage struct {
	ResourceID string    `json:"resource_id"`
	Name       string    `json:"name"`
	Daily      []float64 `json:"daily"`
	Total      float64   `json:"total"`
	Cost       float64   `json:"cost"`
}

// ProductionPlan is derived from a snapshot and is never stored without it.
type ProductionPlan struct {
	Status           SolverStatus    `json:"status"`
	Days             []string        `json:"days"`
	Products         []ProductPlan   `json:"products"`
	Overtime         []OvertimeUsage `json:"overtime,omitempty"`
	Profit           float64         `json:"profit"`
	CrossCheckProfit float64         `json:"cross_check_profit"`
	SnapshotHash     string          `json:"snapshot_hash"`
}

// PlanRun is one recorded solve of a scenario.
type PlanRun struct {
	ID           string          `json:"id"`
	ScenarioID   string          `json:"scenario_id"`
	SnapshotHash string          `json:"snapshot_hash"`
	Outcome      string          `json:"outcome"`
	Status       SolverStatus    `json:"status"`
	Profit       float64         `json:"profit"`
	Snapshot     *Snapshot       `json:"snapshot"`
	Plan         *ProductionPlan `json:"plan,omitempty"`
	Diagnostics  []string        `json:"diagnostics,omitempty"`
	DurationMs   int64           `json:"duration_ms"`
	CreatedAt    time.Time       `json:"created_at"`
}
