// Package watch polls availability and reports slots that become free.
package watch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"luxeplan/internal/availability"
	"luxeplan/internal/cache"
	"luxeplan/internal/metrics"
	"luxeplan/internal/notify"
	"luxeplan/internal/slots"
)

// Subscription is one service and date to watch.
type Subscription struct {
	ServiceID string
	Date      time.Time
}

func (s Subscription) key() cache.Key {
	return cache.NewKey(s.ServiceID, slots.CanonicalDate(s.Date))
}

// Watcher polls subscriptions and notifies about newly free slots.
type Watcher struct {
	query    *availability.Query
	notifier notify.Notifier
	interval time.Duration
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	mu   sync.Mutex
	last map[cache.Key][]slots.Slot
}

// New creates a watcher that polls every interval.
func New(query *availability.Query, notifier notify.Notifier, interval time.Duration, logger *zerolog.Logger, m *metrics.Metrics) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "watch").Logger()
	}
	return &Watcher{
		query:    query,
		notifier: notifier,
		interval: interval,
		logger:   l,
		metrics:  m,
		last:     make(map[cache.Key][]slots.Slot),
	}
}

// Run seeds the state without notifying, then checks every interval until ctx
// is done. Expired cache entries are dropped after each check.
func (w *Watcher) Run(ctx context.Context, subs []Subscription) error {
	w.logger.Info().Int("subscriptions", len(subs)).Dur("interval", w.interval).Msg("watcher started")
	w.Check(ctx, subs)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("watcher stopped")
			return ctx.Err()
		case <-ticker.C:
			w.Check(ctx, subs)
			if n := w.query.Cleanup(); n > 0 {
				w.logger.Debug().Int("removed", n).Msg("expired listings dropped")
			}
		}
	}
}

// Check polls every subscription once and returns the newly free slots per
// key. Subscriptions seen for the first time are recorded silently.
func (w *Watcher) Check(ctx context.Context, subs []Subscription) map[cache.Key][]slots.Slot {
	found := make(map[cache.Key][]slots.Slot)
	for _, sub := range subs {
		key := sub.key()

		if err := w.query.Invalidate(ctx, key); err != nil {
			w.logger.Warn().Err(err).Str("key", key.String()).Msg("cache invalidation failed")
		}
		reserved, err := w.query.FetchReservedSlots(ctx, sub.ServiceID, sub.Date, "")
		if err != nil {
			// Keep the previous state; an outage must not look like freed slots later.
			w.logger.Warn().Err(err).Str("key", key.String()).Msg("availability check failed")
			continue
		}
		free := slots.Available(slots.AllSlots(), reserved)

		w.mu.Lock()
		prev, seen := w.last[key]
		w.last[key] = free
		w.mu.Unlock()

		if !seen {
			w.logger.Debug().Str("key", key.String()).Int("free", len(free)).Msg("seeded watch state")
			continue
		}

		newlyFree := slots.Available(free, prev)
		if len(newlyFree) == 0 {
			continue
		}
		found[key] = newlyFree
		w.metrics.AddNewSlots(len(newlyFree))
		w.notifier.Success(formatNewSlots(key, newlyFree))
	}
	return found
}

func formatNewSlots(key cache.Key, free []slots.Slot) string {
	labels := make([]string, len(free))
	for i, s := range free {
		labels[i] = string(s)
	}
	return fmt.Sprintf("New slots for %s on %s: %s", key.ServiceID, key.Date, strings.Join(labels, ", "))
}
