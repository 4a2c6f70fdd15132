// Package profile provides a read-through cache of user profiles in front of the repository.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/and161185/lanxat/internal/errs"
	"github.com/and161185/lanxat/internal/model"
	"github.com/and161185/lanxat/internal/repository"
)

// DefaultTTL is used when New receives a non-positive ttl.
const DefaultTTL = 5 * time.Minute

// loadTimeout bounds one repository load; loads are detached from the callers' contexts.
const loadTimeout = 10 * time.Second

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lanxat",
	Subsystem: "profile_cache",
	Name:      "lookups_total",
	Help:      "Profile cache lookups by result.",
}, []string{"result"})

type entry struct {
	p  *model.UserProfile
	at time.Time
}

// Cache keeps usable profiles for ttl after insertion.
// Loads are coalesced per key; writes go to the repository and drop the key.
type Cache struct {
	repo repository.ProfileRepository
	ttl  time.Duration
	log  *zap.Logger
	now  func() time.Time

	mu      sync.Mutex
	entries map[int64]entry
	// gens holds the generation of keys written since the last sweep; other keys are at floor.
	// A key's generation only grows, and grows on every write.
	gens      map[int64]uint64
	seq       uint64
	floor     uint64
	lastSweep time.Time

	group singleflight.Group
}

// New constructs a Cache.
func New(repo repository.ProfileRepository, ttl time.Duration, log *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		repo:    repo,
		ttl:     ttl,
		log:     log,
		now:     time.Now,
		entries: make(map[int64]entry),
		gens:    make(map[int64]uint64),
	}
}

// Get returns a private copy of the user's profile.
// Absent profiles yield *errs.ProfileNotExistsError, unusable ones *errs.ProfileNotEnabledError.
func (c *Cache) Get(ctx context.Context, id int64) (*model.UserProfile, error) {
	c.mu.Lock()
	if e, ok := c.entries[id]; ok {
		if c.now().Sub(e.at) < c.ttl {
			c.mu.Unlock()
			lookups.WithLabelValues("hit").Inc()
			return e.p.Clone(), nil
		}
		delete(c.entries, id)
	}
	gen := c.genLocked(id)
	c.mu.Unlock()
	lookups.WithLabelValues("miss").Inc()

	// the generation is part of the key: a reader arriving after a write never joins an older load
	key := strconv.FormatInt(id, 10) + "#" + strconv.FormatUint(gen, 10)
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(detached, loadTimeout)
		defer cancel()
		return c.load(lctx, id, gen)
	})
	var r singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-ch:
	}
	if r.Err != nil {
		return nil, r.Err
	}
	p := r.Val.(*model.UserProfile)
	if !p.Usable() {
		return nil, &errs.ProfileNotEnabledError{Profile: p.Clone()}
	}
	return p.Clone(), nil
}

func (c *Cache) load(ctx context.Context, id int64, gen uint64) (*model.UserProfile, error) {
	p, err := c.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, &errs.ProfileNotExistsError{UserID: id}
		}
		c.log.Warn("profile load failed", zap.Int64("user", id), zap.Error(err))
		return nil, fmt.Errorf("load profile %d: %w", id, err)
	}
	if !p.Usable() {
		return p, nil
	}

	c.mu.Lock()
	if c.genLocked(id) == gen {
		c.entries[id] = entry{p: p, at: c.now()}
	}
	c.mu.Unlock()
	return p, nil
}

// SaveOrUpdate writes p through to the repository and invalidates the cached entry.
// The next Get reloads from storage.
func (c *Cache) SaveOrUpdate(ctx context.Context, p *model.UserProfile) error {
	err := c.repo.Upsert(ctx, p)
	c.Invalidate(p.ID)
	if err != nil {
		return fmt.Errorf("save profile %d: %w", p.ID, err)
	}
	return nil
}

// Invalidate drops the cached entry for id and detaches in-flight loads from the cache.
func (c *Cache) Invalidate(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now := c.now(); now.Sub(c.lastSweep) >= c.ttl {
		c.sweepLocked(now)
	}
	c.seq++
	c.gens[id] = c.seq
	delete(c.entries, id)
}

func (c *Cache) genLocked(id int64) uint64 {
	if g, ok := c.gens[id]; ok {
		return g
	}
	return c.floor
}

// sweepLocked drops expired entries and folds every written key into floor.
// Raising floor to seq keeps each key's generation at or above its last value.
func (c *Cache) sweepLocked(now time.Time) {
	for id, e := range c.entries {
		if now.Sub(e.at) >= c.ttl {
			delete(c.entries, id)
		}
	}
	c.floor = c.seq
	clear(c.gens)
	c.lastSweep = now
}

// Len reports the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
