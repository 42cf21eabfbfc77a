package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/repository"
)

var (
	// ErrDuplicateName is returned when a product name is already taken in the scenario.
	ErrDuplicateName = errors.New("a product with this name already exists")
	// ErrInvalidInput wraps request problems that are not snapshot invariants.
	ErrInvalidInput = errors.New("invalid input")
)

type ScenarioService struct {
	repo repository.ScenarioRepository
	days []string
	now  func() time.Time
}

func NewScenarioService(repo repository.ScenarioRepository, days []string) *ScenarioService {
	if len(days) == 0 {
		days = domain.DefaultDays
	}
	return &ScenarioService{
		repo: repo,
		days: append([]string(nil), days...),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new scenario. Without resources it starts from the default production line.
func (s *ScenarioService) Create(ctx context.Context, in domain.SnapshotInput) (*domain.Scenario, error) {
	snap, err := s.toSnapshot(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sc := &domain.Scenario{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Snapshot:  *snap,
	}
	if err := s.repo.CreateScenario(ctx, sc); err != nil {
		return nil, err
	}

	log.Info().Str("scenario", sc.ID).Str("name", sc.Name).Msg("scenario created")
	return sc, nil
}

func (s *ScenarioService) Get(ctx context.Context, id string) (*domain.Scenario, error) {
	return s.repo.GetScenario(ctx, id)
}

func (s *ScenarioService) List(ctx context.Context) ([]*domain.Scenario, error) {
	scenarios, err := s.repo.ListScenarios(ctx)
	if err != nil {
		return nil, err
	}
	if scenarios == nil {
		scenarios = make([]*domain.Scenario, 0)
	}
	return scenarios, nil
}

// Replace overwrites the whole snapshot of a scenario.
func (s *ScenarioService) Replace(ctx context.Context, id string, in domain.SnapshotInput) (*domain.Scenario, error) {
	snap, err := s.toSnapshot(in)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(current *domain.Snapshot) error {
		*current = *snap
		return nil
	})
}

func (s *ScenarioService) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteScenario(ctx, id)
}

// AddProduct appends a product. Names must be unique; a missing id is derived from the name.
func (s *ScenarioService) AddProduct(ctx context.Context, scenarioID string, in domain.ProductInput) (*domain.Product, error) {
	var added domain.Product
	_, err := s.mutate(ctx, scenarioID, func(snap *domain.Snapshot) error {
		p := in.ToDomain()
		if p.Name == "" {
			return fmt.Errorf("%w: product name is required", ErrInvalidInput)
		}
		if nameTaken(snap, p.Name, "") {
			return ErrDuplicateName
		}
		if p.ID == "" {
			p.ID = "product"
		}
		p.ID = uniqueProductID(snap, p.ID)
		snap.Products = append(snap.Products, p)
		added = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

// UpdateProduct replaces the product fields, keeping its id.
func (s *ScenarioService) UpdateProduct(ctx context.Context, scenarioID, productID string, in domain.ProductInput) (*domain.Product, error) {
	var updated domain.Product
	_, err := s.mutate(ctx, scenarioID, func(snap *domain.Snapshot) error {
		i := snap.ProductIndex(productID)
		if i < 0 {
			return repository.ErrNotFound
		}
		p := in.ToDomain()
		p.ID = productID
		if p.Name == "" {
			return fmt.Errorf("%w: product name is required", ErrInvalidInput)
		}
		if nameTaken(snap, p.Name, productID) {
			return ErrDuplicateName
		}
		snap.Products[i] = p
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// RemoveProduct deletes the product and drops its coefficients from custom constraints.
func (s *ScenarioService) RemoveProduct(ctx context.Context, scenarioID, productID string) error {
	_, err := s.mutate(ctx, scenarioID, func(snap *domain.Snapshot) error {
		i := snap.ProductIndex(productID)
		if i < 0 {
			return repository.ErrNotFound
		}
		snap.Products = append(snap.Products[:i], snap.Products[i+1:]...)
		for _, c := range snap.Constraints {
			delete(c.Coefficients, productID)
		}
		return nil
	})
	return err
}

// UpdateCapacity sets the daily capacity of one resource.
func (s *ScenarioService) UpdateCapacity(ctx context.Context, scenarioID, resourceID string, capacity float64) (*domain.Resource, error) {
	var updated domain.Resource
	_, err := s.mutate(ctx, scenarioID, func(snap *domain.Snapshot) error {
		for i := range snap.Resources {
			r := &snap.Resources[i]
			if r.ID != resourceID {
				continue
			}
			if math.IsNaN(capacity) || math.IsInf(capacity, 0) || capacity < 0 {
				return &domain.ValidationError{Problems: []string{"invalid capacity for " + r.Name}}
			}
			r.Capacity = capacity
			updated = *r
			return nil
		}
		return repository.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// AddConstraint appends a custom constraint, assigning an id when none is given.
func (s *ScenarioService) AddConstraint(ctx context.Context, scenarioID string, in domain.ConstraintInput) (*domain.CustomConstraint, error) {
	var added domain.CustomConstraint
	_, err := s.mutate(ctx, scenarioID, func(snap *domain.Snapshot) error {
		if strings.TrimSpace(in.Name) == "" {
			return fmt.Errorf("%w: constraint name is required", ErrInvalidInput)
		}
		c, err := in.ToDomain(nextConstraintID(snap))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		for _, existing := range snap.Constraints {
			if existing.ID == c.ID {
				return fmt.Errorf("%w: constraint id %q already exists", ErrInvalidInput, c.ID)
			}
		}
		snap.Constraints = append(snap.Constraints, c)
		added = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

func (s *ScenarioService) RemoveConstraint(ctx context.Context, scenarioID, constraintID string) error {
	_, err := s.mutate(ctx, scenarioID, func(snap *domain.Snapshot) error {
		for i, c := range snap.Constraints {
			if c.ID == constraintID {
				snap.Constraints = append(snap.Constraints[:i], snap.Constraints[i+1:]...)
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return err
}

func (s *ScenarioService) ClearConstraints(ctx context.Context, scenarioID string) error {
	_, err := s.mutate(ctx, scenarioID, func(snap *domain.Snapshot) error {
		snap.Constraints = []domain.CustomConstraint{}
		return nil
	})
	return err
}

// mutate loads the scenario, applies fn to its snapshot and stores the result if it still
// validates.
func (s *ScenarioService) mutate(ctx context.Context, id string, fn func(*domain.Snapshot) error) (*domain.Scenario, error) {
	sc, err := s.repo.GetScenario(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(&sc.Snapshot); err != nil {
		return nil, err
	}
	if err := sc.Snapshot.Validate(); err != nil {
		return nil, err
	}
	sc.UpdatedAt = s.now()
	if err := s.repo.UpdateScenario(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *ScenarioService) toSnapshot(in domain.SnapshotInput) (*domain.Snapshot, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: scenario name is required", ErrInvalidInput)
	}
	snap, err := in.ToSnapshot(s.days)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	snap.Name = strings.TrimSpace(snap.Name)
	if len(snap.Resources) == 0 {
		snap.Resources = domain.DefaultResources()
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

func nameTaken(snap *domain.Snapshot, name, exceptID string) bool {
	for _, p := range snap.Products {
		if p.ID != exceptID && strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

func uniqueProductID(snap *domain.Snapshot, id string) string {
	if snap.ProductIndex(id) < 0 {
		return id
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", id, n)
		if snap.ProductIndex(candidate) < 0 {
			return candidate
		}
	}
}

func nextConstraintID(snap *domain.Snapshot) string {
	taken := make(map[string]bool, len(snap.Constraints))
	for _, c := range snap.Constraints {
		taken[c.ID] = true
	}
	for n := len(snap.Constraints) + 1; ; n++ {
		id := fmt.Sprintf("c%d", n)
		if !taken[id] {
			return id
		}
	}
}
