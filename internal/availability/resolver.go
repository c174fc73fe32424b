package availability

import (
	"context"
	"sync"
	"time"

	"luxeplan/internal/slots"
)

// Status describes how far a View can be trusted.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
	// StatusStale marks a result superseded by a newer refresh or a closed
	// resolver. Callers must discard it.
	StatusStale Status = "stale"
)

// View is the slot board for one service and date.
type View struct {
	ServiceID string
	Date      string
	Status    Status
	Board     slots.Board
	Err       error
}

// Blocked reports whether submission must be refused because availability
// is unknown.
func (v View) Blocked() bool {
	return v.Status == StatusError
}

// Tracker hands out request tokens so only the latest request is applied.
type Tracker struct {
	mu     sync.Mutex
	latest uint64
	closed bool
}

// Begin starts a request and returns its token.
func (t *Tracker) Begin() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest++
	return t.latest
}

// IsCurrent reports whether token is the latest and the tracker is open.
func (t *Tracker) IsCurrent(token uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && token == t.latest
}

// Close makes every outstanding and future token stale.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

// Closed reports whether Close was called.
func (t *Tracker) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Resolver keeps the current availability view of one booking draft.
type Resolver struct {
	query   *Query
	catalog []slots.Slot
	tracker Tracker

	mu      sync.RWMutex
	current View
}

// NewResolver creates a resolver over the daily catalog.
func NewResolver(query *Query) *Resolver {
	catalog := slots.AllSlots()
	return &Resolver{
		query:   query,
		catalog: catalog,
		current: View{Status: StatusLoading, Board: slots.UnknownBoard(catalog)},
	}
}

// Refresh loads availability for date and applies it unless a newer refresh
// started meanwhile. The returned view has StatusStale when it was not applied.
func (r *Resolver) Refresh(ctx context.Context, serviceID string, date time.Time, excludeID string) View {
	token := r.tracker.Begin()
	dateStr := slots.CanonicalDate(date)

	// Keep showing the previous board, or a stale cached one, while loading.
	r.mu.Lock()
	loading := View{ServiceID: serviceID, Date: dateStr, Status: StatusLoading, Board: r.current.Board}
	if reserved, ok := r.query.Stale(ctx, serviceID, date, excludeID); ok {
		loading.Board = slots.BuildBoard(r.catalog, reserved)
	}
	if r.tracker.IsCurrent(token) {
		r.current = loading
	}
	r.mu.Unlock()

	view := View{ServiceID: serviceID, Date: dateStr}
	reserved, err := r.query.FetchReservedSlots(ctx, serviceID, date, excludeID)
	if err != nil {
		view.Status = StatusError
		view.Board = slots.UnknownBoard(r.catalog)
		view.Err = err
	} else {
		view.Status = StatusReady
		view.Board = slots.BuildBoard(r.catalog, reserved)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.tracker.IsCurrent(token) {
		view.Status = StatusStale
		return view
	}
	r.current = view
	return view
}

// Current returns the last applied view.
func (r *Resolver) Current() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Query returns the underlying query.
func (r *Resolver) Query() *Query {
	return r.query
}

// Close discards results of refreshes still in flight.
func (r *Resolver) Close() {
	r.tracker.Close()
}
