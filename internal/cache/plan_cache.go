package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/mixplan/backend-go/internal/config"
	"github.com/andresuchdata/mixplan/backend-go/internal/planner"
	"github.com/andresuchdata/mixplan/backend-go/internal/solver"
)

const (
	planKeyPrefix     = "mixplan:plan"
	planScanBatchSize = 100
)

// PlanCache keeps planned results keyed by snapshot hash and solver options.
// Only PLANNED results are worth caching; every other outcome is cheap to recompute or transient.
type PlanCache interface {
	GetPlan(ctx context.Context, snapshotHash string, opts solver.Options) (*planner.Result, bool, error)
	SetPlan(ctx context.Context, snapshotHash string, opts solver.Options, res *planner.Result) error
	InvalidateAll(ctx context.Context) error
}

type redisPlanCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopPlanCache struct{}

func NewPlanCache(cfg config.CacheConfig) (PlanCache, error) {
	if !cfg.Enabled {
		return &noopPlanCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisPlanCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopPlanCache() PlanCache {
	return &noopPlanCache{}
}

func (c *redisPlanCache) GetPlan(ctx context.Context, snapshotHash string, opts solver.Options) (*planner.Result, bool, error) {
	payload, err := c.client.Get(ctx, buildPlanKey(snapshotHash, opts)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var res planner.Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, false, fmt.Errorf("decode plan cache: %w", err)
	}
	return &res, true, nil
}

func (c *redisPlanCache) SetPlan(ctx context.Context, snapshotHash string, opts solver.Options, res *planner.Result) error {
	if res == nil || res.Outcome != planner.OutcomePlanned {
		return nil
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode plan cache: %w", err)
	}

	if err := c.client.Set(ctx, buildPlanKey(snapshotHash, opts), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisPlanCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, planKeyPrefix, planScanBatchSize)
}

func (n *noopPlanCache) GetPlan(ctx context.Context, snapshotHash string, opts solver.Options) (*planner.Result, bool, error) {
	return nil, false, nil
}

func (n *noopPlanCache) SetPlan(ctx context.Context, snapshotHash string, opts solver.Options, res *planner.Result) error {
	return nil
}

func (n *noopPlanCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func buildPlanKey(snapshotHash string, opts solver.Options) string {
	return fmt.Sprintf("%s:%s", planKeyPrefix, planOptionsHash(snapshotHash, opts))
}

func planOptionsHash(snapshotHash string, opts solver.Options) string {
	parts := []string{
		"snapshot=" + strings.TrimSpace(snapshotHash),
		fmt.Sprintf("time_limit=%d", opts.TimeLimit.Milliseconds()),
		fmt.Sprintf("presolve=%t", opts.Presolve),
		fmt.Sprintf("mip_gap=%g", opts.MIPGap),
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
