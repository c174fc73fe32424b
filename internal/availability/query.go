// Package availability loads reserved slots for a service and date and turns
// them into the slot board shown while booking.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"luxeplan/internal/cache"
	"luxeplan/internal/metrics"
	"luxeplan/internal/models"
	"luxeplan/internal/slots"
)

// ErrEmptyServiceID is returned before any request is made.
var ErrEmptyServiceID = errors.New("service id is required")

// Lister lists bookings of a service on a date.
type Lister interface {
	ListBookings(ctx context.Context, serviceID, date string) ([]models.Booking, error)
}

// FetchError means availability is unknown, not empty.
type FetchError struct {
	Key cache.Key
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("could not load availability for %s: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Query fetches reserved slots, sharing one cache entry per (service, date).
type Query struct {
	lister  Lister
	store   cache.Store
	group   singleflight.Group
	logger  zerolog.Logger
	metrics *metrics.Metrics

	// gens counts invalidations per key. A fetch only caches its result when
	// no invalidation happened while it ran.
	mu   sync.Mutex
	gens map[cache.Key]uint64
}

// NewQuery creates a query. A nil store disables caching.
func NewQuery(lister Lister, store cache.Store, logger *zerolog.Logger, m *metrics.Metrics) *Query {
	if store == nil {
		store = cache.NopStore{}
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "availability").Logger()
	}
	return &Query{lister: lister, store: store, logger: l, metrics: m, gens: make(map[cache.Key]uint64)}
}

// FetchReservedSlots returns the slots taken on date for serviceID. The
// booking with id excludeID is ignored so an edited booking keeps its slot.
func (q *Query) FetchReservedSlots(ctx context.Context, serviceID string, date time.Time, excludeID string) ([]slots.Slot, error) {
	if serviceID == "" {
		return nil, ErrEmptyServiceID
	}
	key := cache.NewKey(serviceID, slots.CanonicalDate(date))

	reservations, err := q.reservations(ctx, key)
	if err != nil {
		return nil, &FetchError{Key: key, Err: err}
	}
	return reservedSlots(reservations, excludeID), nil
}

// Stale returns previously cached reserved slots for display while a refetch
// runs. It reports false when the store keeps no stale copies.
func (q *Query) Stale(ctx context.Context, serviceID string, date time.Time, excludeID string) ([]slots.Slot, bool) {
	reader, ok := q.store.(cache.StaleReader)
	if !ok || serviceID == "" {
		return nil, false
	}
	var reservations []models.Reservation
	if !reader.GetStale(ctx, cache.NewKey(serviceID, slots.CanonicalDate(date)), &reservations) {
		return nil, false
	}
	return reservedSlots(reservations, excludeID), true
}

// Invalidate drops the cached listing so the next fetch goes to the API.
// A fetch already in flight for key neither refills the cache nor is joined
// by later callers.
func (q *Query) Invalidate(ctx context.Context, key cache.Key) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.gens[key]++
	q.group.Forget(key.String())
	return q.store.Invalidate(ctx, key)
}

// Cleanup drops expired entries when the store supports it and returns how
// many were removed.
func (q *Query) Cleanup() int {
	if c, ok := q.store.(interface{ Cleanup() int }); ok {
		return c.Cleanup()
	}
	return 0
}

func (q *Query) generation(key cache.Key) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gens[key]
}

// setIfCurrent caches res unless key was invalidated after gen was read.
func (q *Query) setIfCurrent(ctx context.Context, key cache.Key, gen uint64, res []models.Reservation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.gens[key] != gen {
		q.logger.Debug().Str("key", key.String()).Msg("listing invalidated during fetch; not cached")
		return
	}
	q.store.Set(ctx, key, res)
}

func (q *Query) reservations(ctx context.Context, key cache.Key) ([]models.Reservation, error) {
	start := time.Now()

	var cached []models.Reservation
	if q.store.Get(ctx, key, &cached) {
		q.metrics.ObserveFetch("hit", time.Since(start))
		return cached, nil
	}

	// Concurrent callers for one key share a single request. The request is
	// detached from the first caller so its cancellation does not fail others.
	ch := q.group.DoChan(key.String(), func() (any, error) {
		gen := q.generation(key)
		bookings, err := q.lister.ListBookings(context.WithoutCancel(ctx), key.ServiceID, key.Date)
		if err != nil {
			return nil, err
		}
		res := models.Reservations(bookings)
		q.setIfCurrent(context.WithoutCancel(ctx), key, gen, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			q.metrics.ObserveFetch("error", time.Since(start))
			q.logger.Warn().Err(r.Err).Str("key", key.String()).Msg("availability fetch failed")
			return nil, r.Err
		}
		q.metrics.ObserveFetch("miss", time.Since(start))
		return r.Val.([]models.Reservation), nil
	}
}

func reservedSlots(reservations []models.Reservation, excludeID string) []slots.Slot {
	out := make([]slots.Slot, 0, len(reservations))
	for _, r := range reservations {
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		if r.Time == "" {
			continue
		}
		out = append(out, slots.Slot(r.Time))
	}
	return out
}
