package service

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"newsdigest/internal/app/model"
	"newsdigest/internal/app/repository"
)

const (
	seenKeyPrefix  = "newsdigest:seen:"
	seenKeyTTL     = 7 * 24 * time.Hour
	bloomCapacity  = 1_000_000
	bloomFalseRate = 0.01
)

// DedupIndex fronts the link repository with a Bloom filter and a Redis
// seen-set. Both caches are advisory: a cache hit lets us skip the insert
// attempt, a miss always falls through to the atomic conditional insert in
// Postgres, which stays the source of truth.
type DedupIndex struct {
	repo   repository.LinkRepository
	rdb    *redis.Client
	logger *zap.Logger

	mu     sync.Mutex
	filter *bloom.BloomFilter
}

// NewDedupIndex builds an index over the given repository. rdb may be nil,
// in which case only the Bloom filter is consulted.
func NewDedupIndex(repo repository.LinkRepository, rdb *redis.Client, logger *zap.Logger) *DedupIndex {
	return &DedupIndex{
		repo:   repo,
		rdb:    rdb,
		logger: logger,
		filter: bloom.NewWithEstimates(bloomCapacity, bloomFalseRate),
	}
}

// Warm loads all stored keys into the Bloom filter. Called once at startup;
// a failure leaves the filter empty, which is safe (every insert just pays
// the database round trip).
func (d *DedupIndex) Warm(ctx context.Context) error {
	ids, err := d.repo.ListIDs(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	for _, id := range ids {
		d.filter.AddString(id)
	}
	d.mu.Unlock()
	d.logger.Info("dedup index warmed", zap.Int("keys", len(ids)))
	return nil
}

// InsertIfAbsent creates the record unless its key was already stored.
// Returns whether a new record was created.
func (d *DedupIndex) InsertIfAbsent(ctx context.Context, record *model.LinkRecord) (bool, error) {
	if d.seenCached(ctx, record.ID) {
		return false, nil
	}

	created, err := d.repo.CreateIfAbsent(ctx, record)
	if err != nil {
		return false, err
	}

	d.remember(ctx, record.ID)
	return created, nil
}

// seenCached reports whether both cache layers confirm the key. The Bloom
// filter alone is not enough (false positives), so a positive test must be
// corroborated by the Redis seen-set before the database is skipped.
func (d *DedupIndex) seenCached(ctx context.Context, id string) bool {
	d.mu.Lock()
	maybe := d.filter.TestString(id)
	d.mu.Unlock()
	if !maybe || d.rdb == nil {
		return false
	}

	n, err := d.rdb.Exists(ctx, seenKeyPrefix+id).Result()
	if err != nil {
		d.logger.Debug("seen-set lookup failed", zap.Error(err))
		return false
	}
	return n > 0
}

func (d *DedupIndex) remember(ctx context.Context, id string) {
	d.mu.Lock()
	d.filter.AddString(id)
	d.mu.Unlock()

	if d.rdb == nil {
		return
	}
	if err := d.rdb.Set(ctx, seenKeyPrefix+id, 1, seenKeyTTL).Err(); err != nil {
		d.logger.Debug("seen-set write failed", zap.Error(err))
	}
}
