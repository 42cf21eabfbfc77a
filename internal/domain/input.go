package domain

import (
	"fmt"
	"strings"
)

const secondsPerHour = 3600.0

// SnapshotInput is the wire/file shape of a snapshot. It accepts resource usage either in hours
// or in seconds per unit, and constraint coefficients either as a map or as parallel lists.
type SnapshotInput struct {
	Name            string                 `json:"name" yaml:"name"`
	Days            []string               `json:"days" yaml:"days"`
	Products        []ProductInput         `json:"products" yaml:"products"`
	Resources       []ResourceInput        `json:"resources" yaml:"resources"`
	Constraints     []ConstraintInput      `json:"constraints" yaml:"constraints"`
	Diversification *DiversificationPolicy `json:"diversification,omitempty" yaml:"diversification,omitempty"`
}

type ProductInput struct {
	ID           string             `json:"id" yaml:"id"`
	Name         string             `json:"name" yaml:"name" binding:"required"`
	UnitCost     float64            `json:"unit_cost" yaml:"unit_cost"`
	SalePrice    float64            `json:"sale_price" yaml:"sale_price"`
	Usage        map[string]float64 `json:"usage" yaml:"usage"`
	UsageSeconds map[string]float64 `json:"usage_seconds" yaml:"usage_seconds"`
	WeeklyMin    int                `json:"weekly_min" yaml:"weekly_min"`
	WeeklyMax    int                `json:"weekly_max" yaml:"weekly_max"`
}

type ResourceInput struct {
	ID       string          `json:"id" yaml:"id" binding:"required"`
	Name     string          `json:"name" yaml:"name"`
	Capacity float64         `json:"capacity" yaml:"capacity"`
	Overtime *OvertimeConfig `json:"overtime,omitempty" yaml:"overtime,omitempty"`
}

type ConstraintInput struct {
	ID                string             `json:"id" yaml:"id"`
	Name              string             `json:"name" yaml:"name" binding:"required"`
	Operator          Operator           `json:"operator" yaml:"operator" binding:"required"`
	Value             float64            `json:"value" yaml:"value"`
	Coefficients      map[string]float64 `json:"coefficients" yaml:"coefficients"`
	ProductIDs        []string           `json:"product_ids" yaml:"product_ids"`
	CoefficientValues []float64          `json:"coefficient_values" yaml:"coefficient_values"`
}

// ToDomain converts the input, folding seconds into hours. Hours and seconds given for the
// same resource are added together.
func (in ProductInput) ToDomain() Product {
	usage := make(map[string]float64, len(in.Usage)+len(in.UsageSeconds))
	for id, hours := range in.Usage {
		usage[id] += hours
	}
	for id, seconds := range in.UsageSeconds {
		usage[id] += seconds / secondsPerHour
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = Slug(in.Name)
	}

	return Product{
		ID:        id,
		Name:      strings.TrimSpace(in.Name),
		UnitCost:  in.UnitCost,
		SalePrice: in.SalePrice,
		Usage:     usage,
		WeeklyMin: in.WeeklyMin,
		WeeklyMax: in.WeeklyMax,
	}
}

func (in ResourceInput) ToDomain() Resource {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = in.ID
	}
	r := Resource{ID: strings.TrimSpace(in.ID), Name: name, Capacity: in.Capacity}
	if in.Overtime != nil {
		ot := *in.Overtime
		r.Overtime = &ot
	}
	return r
}

// ToDomain converts the input. fallbackID is used when the input carries no id.
func (in ConstraintInput) ToDomain(fallbackID string) (CustomConstraint, error) {
	if len(in.ProductIDs) != len(in.CoefficientValues) {
		return CustomConstraint{}, fmt.Errorf("constraint %q: %d product ids but %d coefficients",
			in.Name, len(in.ProductIDs), len(in.CoefficientValues))
	}

	coefs := make(map[string]float64, len(in.Coefficients)+len(in.ProductIDs))
	for id, v := range in.Coefficients {
		coefs[id] = v
	}
	for i, id := range in.ProductIDs {
		coefs[id] += in.CoefficientValues[i]
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = fallbackID
	}

	return CustomConstraint{
		ID:           id,
		Name:         strings.TrimSpace(in.Name),
		Operator:     Operator(strings.TrimSpace(string(in.Operator))),
		Value:        in.Value,
		Coefficients: coefs,
	}, nil
}

// ToSnapshot builds a snapshot. defaultDays is used when the input names no days.
func (in SnapshotInput) ToSnapshot(defaultDays []string) (*Snapshot, error) {
	days := in.Days
	if len(days) == 0 {
		days = defaultDays
	}

	snap := &Snapshot{
		Name:        in.Name,
		Days:        append([]string(nil), days...),
		Products:    make([]Product, 0, len(in.Products)),
		Resources:   make([]Resource, 0, len(in.Resources)),
		Constraints: make([]CustomConstraint, 0, len(in.Constraints)),
	}
	for _, p := range in.Products {
		snap.Products = append(snap.Products, p.ToDomain())
	}
	for _, r := range in.Resources {
		snap.Resources = append(snap.Resources, r.ToDomain())
	}
	for i, c := range in.Constraints {
		cc, err := c.ToDomain(fmt.Sprintf("c%d", i+1))
		if err != nil {
			return nil, err
		}
		snap.Constraints = append(snap.Constraints, cc)
	}
	if in.Diversification != nil {
		d := *in.Diversification
		snap.Diversification = &d
	}

	return snap, nil
}

// Slug derives an identifier from a display name.
func Slug(name string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
