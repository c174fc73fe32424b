package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"luxeplan/internal/availability"
	"luxeplan/internal/cache"
	"luxeplan/internal/metrics"
	"luxeplan/internal/models"
	"luxeplan/internal/notify"
	"luxeplan/internal/slots"
)

// Submitter sends drafts to the bookings API.
type Submitter interface {
	CreateBooking(ctx context.Context, req models.CreateBookingRequest) (*models.Booking, error)
	UpdateBooking(ctx context.Context, id string, req models.UpdateBookingRequest) (*models.Booking, error)
}

// Invalidator marks a booking listing stale.
type Invalidator interface {
	Invalidate(ctx context.Context, key cache.Key) error
}

// Navigator moves the user after a booking was created.
type Navigator interface {
	ToBookings()
}

// Deps are the collaborators of a session.
type Deps struct {
	Bookings     Submitter
	Availability *availability.Query
	Cache        Invalidator // used only when Availability is nil
	Notifier     notify.Notifier
	Navigator    Navigator
	Logger       *zerolog.Logger
	Metrics      *metrics.Metrics
}

// Session is one open booking or edit UI: its draft, availability and
// submission state. A session allows one submission in flight at a time.
type Session struct {
	mode     Mode
	fsm      *FSM
	bookings Submitter
	cache    Invalidator
	notifier notify.Notifier
	nav      Navigator
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	resolver *availability.Resolver

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	draft   Draft
	closed  bool
	lastErr error
}

// NewSession opens a session for draft.
func NewSession(mode Mode, draft Draft, deps Deps) *Session {
	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = deps.Logger.With().
			Str("component", "booking").
			Str("mode", string(mode)).
			Str("service_id", draft.Service.ID).
			Logger()
	}
	var notifier notify.Notifier = &notify.Recorder{}
	if deps.Notifier != nil {
		notifier = deps.Notifier
	}
	// Invalidating through the query also stops in-flight fetches from
	// refilling the cache with the old listing.
	invalidator := deps.Cache
	if deps.Availability != nil {
		invalidator = deps.Availability
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		mode:     mode,
		fsm:      NewFSM(),
		bookings: deps.Bookings,
		cache:    invalidator,
		notifier: notifier,
		nav:      deps.Navigator,
		logger:   logger,
		metrics:  deps.Metrics,
		resolver: availability.NewResolver(deps.Availability),
		ctx:      ctx,
		cancel:   cancel,
		state:    StateIdle,
		draft:    draft,
	}
}

// Mode returns whether the session creates or edits.
func (s *Session) Mode() Mode { return s.mode }

// State returns the submission state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Draft returns a copy of the current selection.
func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// LastError returns the error of the last failed submit attempt.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Refresh reloads availability for the draft's current date. A closed session
// returns a stale view without querying.
func (s *Session) Refresh(ctx context.Context) availability.View {
	s.mu.Lock()
	d, closed := s.draft, s.closed
	s.mu.Unlock()
	if closed {
		return s.closedView()
	}
	return s.resolver.Refresh(ctx, d.Service.ID, d.Date, s.excludeID(d))
}

// SetDate changes the date and reloads availability. Time and location are kept.
func (s *Session) SetDate(ctx context.Context, date time.Time) availability.View {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.closedView()
	}
	s.draft.Date = slots.Today(date)
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// SetTime selects a slot.
func (s *Session) SetTime(slot slots.Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.draft.Time = slot
	}
}

// SetLocation sets the event location.
func (s *Session) SetLocation(location string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.draft.Location = location
	}
}

// View returns the current availability view.
func (s *Session) View() availability.View {
	return s.resolver.Current()
}

// SelectedSlotAvailable re-validates the selected time against the current board.
func (s *Session) SelectedSlotAvailable() bool {
	d := s.Draft()
	if d.Time == "" {
		return false
	}
	return s.resolver.Current().Board.IsAvailable(d.Time)
}

// Submit validates the draft and sends it. The draft is kept on failure. On
// success the draft is discarded and the session closes.
func (s *Session) Submit(ctx context.Context) (*models.Booking, error) {
	s.mu.Lock()
	switch {
	case s.state == StateSucceeded:
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case s.closed:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	case s.state == StateSubmitting:
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	if s.state == StateFailed {
		if err := s.advance(StateIdle); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	if err := s.advance(StateValidating); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	draft := s.draft
	if err := s.check(draft); err != nil {
		if terr := s.advance(StateIdle); terr != nil {
			s.mu.Unlock()
			return nil, terr
		}
		s.lastErr = err
		s.mu.Unlock()

		s.notifier.Error(userMessage(err))
		s.metrics.IncSubmission(string(s.mode), outcomeOf(err))
		s.logger.Debug().Err(err).Msg("booking rejected before submit")
		return nil, err
	}
	if err := s.advance(StateSubmitting); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.notifier.Loading("Saving your booking...")
	booking, err := s.send(ctx, draft)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.metrics.IncSubmission(string(s.mode), "discarded")
		s.logger.Debug().Msg("session closed before submission finished; result dropped")
		return nil, ErrSessionClosed
	}
	if err != nil {
		err = classify(err)
		if terr := s.advance(StateFailed); terr != nil {
			s.mu.Unlock()
			return nil, terr
		}
		s.lastErr = err
		s.mu.Unlock()

		s.notifier.Error(err.Error())
		s.metrics.IncSubmission(string(s.mode), outcomeOf(err))
		s.logger.Warn().Err(errors.Unwrap(err)).Str("date", draft.DateString()).Str("time", string(draft.Time)).Msg("booking submission failed")

		var conflict *SubmissionConflictError
		if errors.As(err, &conflict) {
			s.invalidate(ctx, draft)
			s.Refresh(ctx)
		}
		return nil, err
	}
	if err := s.advance(StateSucceeded); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.lastErr = nil
	s.closeLocked()
	s.mu.Unlock()

	s.invalidate(ctx, draft)
	s.metrics.IncSubmission(string(s.mode), "succeeded")
	s.logger.Info().Str("booking_id", booking.ID).Str("date", draft.DateString()).Str("time", string(draft.Time)).Msg("booking saved")

	if s.mode == ModeCreate {
		s.notifier.Success("Booking confirmed!")
		if s.nav != nil {
			s.nav.ToBookings()
		}
	} else {
		s.notifier.Success("Booking updated successfully.")
	}
	return booking, nil
}

// Close discards the draft. Results of work still in flight are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

// closeLocked runs with s.mu held.
func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	s.draft = Draft{}
	s.cancel()
	s.resolver.Close()
}

func (s *Session) closedView() availability.View {
	v := s.resolver.Current()
	v.Status = availability.StatusStale
	return v
}

// check runs with s.mu held.
func (s *Session) check(d Draft) error {
	if err := validate(d); err != nil {
		return err
	}
	if s.resolver.Current().Blocked() {
		return ErrAvailabilityUnknown
	}
	return nil
}

func (s *Session) send(ctx context.Context, d Draft) (*models.Booking, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	if s.mode == ModeEdit {
		return s.bookings.UpdateBooking(ctx, d.BookingID, d.updateRequest())
	}
	return s.bookings.CreateBooking(ctx, d.createRequest())
}

func (s *Session) invalidate(ctx context.Context, d Draft) {
	if s.cache == nil {
		return
	}
	keys := []cache.Key{cache.NewKey(d.Service.ID, d.DateString())}
	if s.mode == ModeEdit && d.OriginalDate != "" && d.OriginalDate != d.DateString() {
		keys = append(keys, cache.NewKey(d.Service.ID, d.OriginalDate))
	}
	for _, k := range keys {
		if err := s.cache.Invalidate(ctx, k); err != nil {
			s.logger.Warn().Err(err).Str("key", k.String()).Msg("cache invalidation failed")
		}
	}
}

// advance runs with s.mu held. An illegal transition leaves the state unchanged.
func (s *Session) advance(to State) error {
	if !s.fsm.CanTransition(s.state, to) {
		s.logger.Error().Str("from", string(s.state)).Str("to", string(to)).Msg("invalid submission transition")
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, s.state, to)
	}
	s.state = to
	return nil
}

func (s *Session) excludeID(d Draft) string {
	if s.mode == ModeEdit {
		return d.BookingID
	}
	return ""
}

func userMessage(err error) string {
	if errors.Is(err, ErrAvailabilityUnknown) {
		return msgUnavailable
	}
	return err.Error()
}

func outcomeOf(err error) string {
	var (
		validation *ValidationError
		conflict   *SubmissionConflictError
	)
	switch {
	case errors.As(err, &validation):
		return "invalid"
	case errors.Is(err, ErrAvailabilityUnknown):
		return "blocked"
	case errors.As(err, &conflict):
		return "conflict"
	default:
		return "failed"
	}
}
