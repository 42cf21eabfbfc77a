package planner

import (
	"fmt"
	"math"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
)

// Overload is a resource whose minimum weekly demand cannot fit its weekly capacity.
type Overload struct {
	ResourceID string  `json:"resource_id"`
	Name       string  `json:"name"`
	Demand     float64 `json:"demand"`
	Capacity   float64 `json:"capacity"`
}

func (o Overload) String() string {
	return fmt.Sprintf("resource %s is overloaded: minimum weekly demand %.2f h exceeds weekly capacity %.2f h",
		o.Name, o.Demand, o.Capacity)
}

// PrecheckReport is the verdict of Precheck. A passing report does not guarantee feasibility.
type PrecheckReport struct {
	Overloads       []Overload `json:"overloads,omitempty"`
	Diversification string     `json:"diversification,omitempty"`
}

func (r *PrecheckReport) Passed() bool {
	return len(r.Overloads) == 0 && r.Diversification == ""
}

func (r *PrecheckReport) Diagnostics() []string {
	out := make([]string, 0, len(r.Overloads)+1)
	for _, o := range r.Overloads {
		out = append(out, o.String())
	}
	if r.Diversification != "" {
		out = append(out, r.Diversification)
	}
	return out
}

// Precheck tests necessary conditions for feasibility without building the model. It assumes
// every product runs at its weekly minimum and compares the resulting demand on each resource
// with what the resource can supply over the horizon, overtime included.
func Precheck(s *domain.Snapshot) *PrecheckReport {
	report := &PrecheckReport{}
	days := float64(len(s.Days))

	for _, r := range s.Resources {
		demand := 0.0
		for _, p := range s.Products {
			demand += float64(p.WeeklyMin) * p.UsageOf(r.ID)
		}
		capacity := (r.Capacity + r.MaxOvertimePerDay()) * days

		if demand > capacity+1e-9*math.Max(1, capacity) {
			report.Overloads = append(report.Overloads, Overload{
				ResourceID: r.ID,
				Name:       r.Name,
				Demand:     demand,
				Capacity:   capacity,
			})
		}
	}

	if d := s.Diversification; d != nil && d.Alpha*float64(len(s.Products)) > 1 {
		for _, p := range s.Products {
			if p.WeeklyMin > 0 {
				report.Diversification = fmt.Sprintf(
					"diversification share %.2f for %d products exceeds 100%% while %s requires a positive minimum",
					d.Alpha, len(s.Products), p.Name)
				break
			}
		}
	}

	return report
}
