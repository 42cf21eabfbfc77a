// internal/domain/models.go
package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"
)

// DefaultDays is the five-day business week used when a snapshot does not name its own horizon.
var DefaultDays = []string{"mon", "tue", "wed", "thu", "fri"}

// Operator is the comparison applied by a custom constraint.
type Operator string

const (
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
	OpEqual        Operator = "="
)

// Valid reports whether o is one of the supported comparison operators.
func (o Operator) Valid() bool {
	switch o {
	case OpLessEqual, OpGreaterEqual, OpEqual:
		return true
	}
	return false
}

// Product is a manufactured item. Usage is expressed in hours of a resource per unit.
type Product struct {
	ID        string             `json:"id" yaml:"id"`
	Name      string             `json:"name" yaml:"name"`
	UnitCost  float64            `json:"unit_cost" yaml:"unit_cost"`
	SalePrice float64            `json:"sale_price" yaml:"sale_price"`
	Usage     map[string]float64 `json:"usage" yaml:"usage"`
	WeeklyMin int                `json:"weekly_min" yaml:"weekly_min"`
	WeeklyMax int                `json:"weekly_max" yaml:"weekly_max"`
}

// Margin is the profit earned per unit produced.
func (p Product) Margin() float64 {
	return p.SalePrice - p.UnitCost
}

// UsageOf returns the hours of resourceID consumed per unit, 0 when unlisted.
func (p Product) UsageOf(resourceID string) float64 {
	return p.Usage[resourceID]
}

// OvertimeConfig allows a resource to exceed its daily capacity at a cost.
type OvertimeConfig struct {
	MaxPerDay   float64 `json:"max_per_day" yaml:"max_per_day"`
	CostPerHour float64 `json:"cost_per_hour" yaml:"cost_per_hour"`
	Integral    bool    `json:"integral" yaml:"integral"`
}

// Resource is a shared production stage with a per-day capacity in hours.
type Resource struct {
	ID       string          `json:"id" yaml:"id"`
	Name     string          `json:"name" yaml:"name"`
	Capacity float64         `json:"capacity" yaml:"capacity"`
	Overtime *OvertimeConfig `json:"overtime,omitempty" yaml:"overtime,omitempty"`
}

// MaxOvertimePerDay is 0 for resources without an overtime configuration.
func (r Resource) MaxOvertimePerDay() float64 {
	if r.Overtime == nil {
		return 0
	}
	return r.Overtime.MaxPerDay
}

// CustomConstraint bounds a linear combination of product weekly totals.
// Coefficients are keyed by product ID; products not listed have coefficient 0.
type CustomConstraint struct {
	ID           string             `json:"id" yaml:"id"`
	Name         string             `json:"name" yaml:"name"`
	Operator     Operator           `json:"operator" yaml:"operator"`
	Value        float64            `json:"value" yaml:"value"`
	Coefficients map[string]float64 `json:"coefficients" yaml:"coefficients"`
}

// IsVacuous reports whether every coefficient is zero.
func (c CustomConstraint) IsVacuous() bool {
	for _, coef := range c.Coefficients {
		if coef != 0 {
			return false
		}
	}
	return true
}

// DiversificationPolicy requires each product to make up at least Alpha of weekly output.
type DiversificationPolicy struct {
	Alpha float64 `json:"alpha" yaml:"alpha"`
}

// Snapshot is the frozen domain model a single solve operates on.
type Snapshot struct {
	Name            string                 `json:"name" yaml:"name"`
	Days            []string               `json:"days" yaml:"days"`
	Products        []Product              `json:"products" yaml:"products"`
	Resources       []Resource             `json:"resources" yaml:"resources"`
	Constraints     []CustomConstraint     `json:"constraints" yaml:"constraints"`
	Diversification *DiversificationPolicy `json:"diversification,omitempty" yaml:"diversification,omitempty"`
}

// Clone returns a deep copy so the caller may keep mutating the original.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	out := &Snapshot{
		Name:        s.Name,
		Days:        append([]string(nil), s.Days...),
		Products:    make([]Product, len(s.Products)),
		Resources:   make([]Resource, len(s.Resources)),
		Constraints: make([]CustomConstraint, len(s.Constraints)),
	}

	for i, p := range s.Products {
		p.Usage = cloneFloatMap(p.Usage)
		out.Products[i] = p
	}
	for i, r := range s.Resources {
		if r.Overtime != nil {
			ot := *r.Overtime
			r.Overtime = &ot
		}
		out.Resources[i] = r
	}
	for i, c := range s.Constraints {
		c.Coefficients = cloneFloatMap(c.Coefficients)
		out.Constraints[i] = c
	}
	if s.Diversification != nil {
		d := *s.Diversification
		out.Diversification = &d
	}

	return out
}

// Resource returns the resource with the given id.
func (s *Snapshot) Resource(id string) (Resource, bool) {
	for _, r := range s.Resources {
		if r.ID == id {
			return r, true
		}
	}
	return Resource{}, false
}

// ProductIndex returns the position of the product with the given id, or -1.
func (s *Snapshot) ProductIndex(id string) int {
	for i, p := range s.Products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Hash identifies the snapshot content. encoding/json sorts map keys, so equal snapshots hash equally.
func (s *Snapshot) Hash() string {
	payload, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	sum := sha1.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// Scenario is the persisted, user-editable workspace a snapshot is taken from.
type Scenario struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Snapshot
}

// DefaultResources is the production line a fresh scenario starts with.
func DefaultResources() []Resource {
	return []Resource{
		{ID: "encapar_bojos", Name: "Encapar Bojos", Capacity: 8},
		{ID: "colocar_pala", Name: "Colocar Pala", Capacity: 8},
		{ID: "colocar_vies", Name: "Colocar Viés", Capacity: 24},
		{ID: "colocar_sandwich", Name: "Colocar Sandwich", Capacity: 8},
		{ID: "finalizacao", Name: "Finalização", Capacity: 24},
	}
}

func cloneFloatMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
