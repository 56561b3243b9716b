package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"loyalty-core/internal/domain/model"
	"loyalty-core/internal/domain/ports/repository"
	"loyalty-core/internal/infra/metrics"
	red "loyalty-core/internal/infra/redis"
)

var _ repository.ProgramRepository = (*programRepoCacheDecorator)(nil)

// programRepoCacheDecorator is a read-through cache over the program repo.
// Program config is read on every scan and mutated rarely (admin edits,
// token rotation), so a short-TTL cache takes most reads off the database.
// Every write invalidates, so a rotation is visible immediately.
type programRepoCacheDecorator struct {
	inner repository.ProgramRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewProgramRepoCacheDecorator(inner repository.ProgramRepository, cache red.RedisClient) repository.ProgramRepository {
	return &programRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   5 * time.Minute,
	}
}

func programKey(id string) string { return fmt.Sprintf("program:%s", id) }

func (d *programRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Program, error) {
	if tx != nil {
		// transactional reads bypass the cache, they need current rows
		return d.inner.FindByID(ctx, tx, id)
	}
	val, err := d.cache.Get(ctx, programKey(id))
	if err == nil {
		metrics.IncCacheRequest("program", "hit")
		var p model.Program
		if json.Unmarshal([]byte(val), &p) == nil {
			return &p, nil
		}
	}

	// a degraded cache reads the database like a miss
	metrics.IncCacheRequest("program", "miss")
	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if p != nil {
		if bytes, err := json.Marshal(p); err == nil {
			_ = d.cache.Set(ctx, programKey(id), bytes, d.ttl)
		}
	}
	return p, nil
}

// For write operations, we must invalidate the cache.
func (d *programRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.Program) error {
	_ = d.cache.Del(ctx, programKey(p.ID))
	return d.inner.Save(ctx, tx, p)
}

func (d *programRepoCacheDecorator) ListByBusiness(ctx context.Context, tx repository.Tx, businessID string) ([]*model.Program, error) {
	return d.inner.ListByBusiness(ctx, tx, businessID)
}

func (d *programRepoCacheDecorator) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.ProgramStatus]int, error) {
	return d.inner.CountByStatus(ctx, tx)
}
