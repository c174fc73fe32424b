package booking

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"luxeplan/internal/api"
	"luxeplan/internal/auth"
	"luxeplan/internal/availability"
	"luxeplan/internal/cache"
	"luxeplan/internal/models"
	"luxeplan/internal/notify"
	"luxeplan/internal/slots"
)

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) CreateBooking(ctx context.Context, req models.CreateBookingRequest) (*models.Booking, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockSubmitter) UpdateBooking(ctx context.Context, id string, req models.UpdateBookingRequest) (*models.Booking, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

// gatedSubmitter blocks CreateBooking until release is closed.
type gatedSubmitter struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedSubmitter() *gatedSubmitter {
	return &gatedSubmitter{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSubmitter) CreateBooking(ctx context.Context, req models.CreateBookingRequest) (*models.Booking, error) {
	g.calls.Add(1)
	g.once.Do(func() { close(g.started) })
	<-g.release
	return &models.Booking{ID: "b-new", ServiceID: req.ServiceID, Date: req.Date, Time: req.Time}, nil
}

func (g *gatedSubmitter) UpdateBooking(context.Context, string, models.UpdateBookingRequest) (*models.Booking, error) {
	return nil, errors.New("not used")
}

type listerFunc func(ctx context.Context, serviceID, date string) ([]models.Booking, error)

func (f listerFunc) ListBookings(ctx context.Context, serviceID, date string) ([]models.Booking, error) {
	return f(ctx, serviceID, date)
}

// recordingCache wraps a memory store and remembers invalidated keys.
type recordingCache struct {
	*cache.MemoryStore
	mu          sync.Mutex
	invalidated []cache.Key
}

func newRecordingCache() *recordingCache {
	return &recordingCache{MemoryStore: cache.NewMemoryStore(time.Minute)}
}

func (r *recordingCache) Invalidate(ctx context.Context, key cache.Key) error {
	r.mu.Lock()
	r.invalidated = append(r.invalidated, key)
	r.mu.Unlock()
	return r.MemoryStore.Invalidate(ctx, key)
}

func (r *recordingCache) keys() []cache.Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cache.Key(nil), r.invalidated...)
}

type navRecorder struct{ calls atomic.Int32 }

func (n *navRecorder) ToBookings() { n.calls.Add(1) }

var (
	testUser    = auth.Identity{Email: "ana@example.com", Name: "Ana", Role: auth.RoleClient}
	testService = ServiceRef{ID: "S1", Name: "Wedding Decor", Category: "wedding", Cost: 1200}
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := slots.ParseDate(s)
	require.NoError(t, err)
	return d
}

// apiServer fakes the bookings API. reserved maps date to booked bookings.
type apiServer struct {
	*httptest.Server
	mu          sync.Mutex
	reserved    map[string][]models.Booking
	listQueries []string
	posts       atomic.Int32
	postStatus  int
	postBody    string
}

func newAPIServer(t *testing.T) *apiServer {
	s := &apiServer{reserved: make(map[string][]models.Booking), postStatus: http.StatusCreated}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/bookings":
			date := r.URL.Query().Get("date")
			s.listQueries = append(s.listQueries, date)
			list := s.reserved[date]
			if list == nil {
				list = []models.Booking{}
			}
			_ = json.NewEncoder(w).Encode(list)
		case r.Method == http.MethodPost && r.URL.Path == "/bookings":
			s.posts.Add(1)
			if s.postStatus >= 300 {
				w.WriteHeader(s.postStatus)
				_, _ = w.Write([]byte(s.postBody))
				return
			}
			var req models.CreateBookingRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			w.WriteHeader(s.postStatus)
			_ = json.NewEncoder(w).Encode(models.Booking{ID: "b-new", ServiceID: req.ServiceID, Date: req.Date, Time: req.Time, Location: req.Location})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *apiServer) queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.listQueries...)
}

type fixture struct {
	session *Session
	notes   *notify.Recorder
	cache   *recordingCache
	nav     *navRecorder
}

func newCreateFixture(t *testing.T, submitter Submitter, lister availability.Lister) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	rc := newRecordingCache()
	notes := &notify.Recorder{}
	nav := &navRecorder{}
	draft := NewCreateDraft(testService, testUser, mustDate(t, "2025-06-01").Add(15*time.Hour))
	s := NewSession(ModeCreate, draft, Deps{
		Bookings:     submitter,
		Availability: availability.NewQuery(lister, rc, &logger, nil),
		Cache:        rc,
		Notifier:     notes,
		Navigator:    nav,
		Logger:       &logger,
	})
	t.Cleanup(s.Close)
	return &fixture{session: s, notes: notes, cache: rc, nav: nav}
}

func TestCreateDraftDefaults(t *testing.T) {
	d := NewCreateDraft(testService, testUser, time.Date(2025, 6, 1, 18, 45, 0, 0, time.Local))
	assert.Equal(t, "2025-06-01", d.DateString())
	assert.Empty(t, d.Time)
	assert.Empty(t, d.Location)
	assert.Equal(t, "S1", d.Service.ID)
}

func TestCreateBookingSucceeds(t *testing.T) {
	srv := newAPIServer(t)
	client := api.NewClient(srv.URL, "")
	f := newCreateFixture(t, client, client)
	ctx := context.Background()

	view := f.session.SetDate(ctx, mustDate(t, "2025-06-01"))
	require.Equal(t, availability.StatusReady, view.Status)
	assert.Equal(t, slots.AllSlots(), view.Board.AvailableSlots())

	f.session.SetTime("10:00 AM")
	f.session.SetLocation("123 Main St")

	b, err := f.session.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b-new", b.ID)
	assert.Equal(t, "123 Main St", b.Location)
	assert.Equal(t, StateSucceeded, f.session.State())
	assert.Equal(t, Draft{}, f.session.Draft())

	assert.Contains(t, f.cache.keys(), cache.NewKey("S1", "2025-06-01"))
	assert.Equal(t, []string{"bookings", "S1", "2025-06-01"}, f.cache.keys()[0].Parts())

	msg, ok := f.notes.Last(notify.LevelSuccess)
	require.True(t, ok)
	assert.Equal(t, "Booking confirmed!", msg.Text)
	assert.Equal(t, int32(1), f.nav.calls.Load())

	// The next query observes the new reservation instead of the cached empty list.
	srv.mu.Lock()
	srv.reserved["2025-06-01"] = []models.Booking{{ID: "b-new", Time: "10:00 AM"}}
	srv.mu.Unlock()
	reserved, err := availability.NewQuery(client, f.cache, nil, nil).
		FetchReservedSlots(ctx, "S1", mustDate(t, "2025-06-01"), "")
	require.NoError(t, err)
	assert.Equal(t, []slots.Slot{"10:00 AM"}, reserved)
	assert.Len(t, srv.queries(), 2)

	// Success closes the session: no further queries from its resolver.
	view = f.session.Refresh(ctx)
	assert.Equal(t, availability.StatusStale, view.Status)
	assert.Len(t, srv.queries(), 2)

	_, err = f.session.Submit(ctx)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestCreateBookingConflictKeepsDraft(t *testing.T) {
	srv := newAPIServer(t)
	srv.mu.Lock()
	srv.postStatus = http.StatusConflict
	srv.postBody = `{"message":"This time slot is already booked"}`
	srv.mu.Unlock()
	client := api.NewClient(srv.URL, "")
	f := newCreateFixture(t, client, client)
	ctx := context.Background()

	f.session.SetDate(ctx, mustDate(t, "2025-06-01"))
	f.session.SetTime("10:00 AM")
	f.session.SetLocation("123 Main St")
	before := f.session.Draft()

	_, err := f.session.Submit(ctx)
	var conflict *SubmissionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "This time slot is already booked", conflict.Message)
	assert.ErrorIs(t, err, api.ErrConflict)

	assert.Equal(t, StateFailed, f.session.State())
	assert.Equal(t, before, f.session.Draft())
	assert.Equal(t, err, f.session.LastError())
	assert.Zero(t, f.nav.calls.Load())

	msg, ok := f.notes.Last(notify.LevelError)
	require.True(t, ok)
	assert.Equal(t, "This time slot is already booked", msg.Text)
	_, ok = f.notes.Last(notify.LevelSuccess)
	assert.False(t, ok)

	// Availability was reloaded after the conflict.
	assert.Equal(t, []string{"2025-06-01", "2025-06-01"}, srv.queries())

	// The draft can be retried.
	srv.mu.Lock()
	srv.postStatus = http.StatusCreated
	srv.mu.Unlock()
	_, err = f.session.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, f.session.State())
}

func TestSubmissionErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    string
		wantHit bool
	}{
		{"server message", &api.APIError{StatusCode: 500, Message: "Payment profile missing"}, "Payment profile missing", false},
		{"no server message", &api.APIError{StatusCode: 502}, msgGenericFailure, false},
		{"network error", errors.New("dial tcp: connection refused"), msgGenericFailure, false},
		{"conflict without message", &api.APIError{StatusCode: http.StatusConflict}, msgConflict, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := new(mockSubmitter)
			sub.On("CreateBooking", mock.Anything, mock.Anything).Return(nil, tt.err).Once()
			f := newCreateFixture(t, sub, listerFunc(func(context.Context, string, string) ([]models.Booking, error) {
				return nil, nil
			}))
			f.session.SetTime("12:00 PM")
			f.session.SetLocation("Garden")

			_, err := f.session.Submit(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())

			var conflict *SubmissionConflictError
			assert.Equal(t, tt.wantHit, errors.As(err, &conflict))
			msg, _ := f.notes.Last(notify.LevelError)
			assert.Equal(t, tt.want, msg.Text)
			sub.AssertExpectations(t)
		})
	}
}

func TestValidationGate(t *testing.T) {
	tests := []struct {
		name     string
		time     slots.Slot
		location string
		field    string
	}{
		{"missing time", "", "123 Main St", "time"},
		{"missing location", "10:00 AM", "", "location"},
		{"whitespace location", "10:00 AM", "  \t ", "location"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := new(mockSubmitter)
			f := newCreateFixture(t, sub, listerFunc(func(context.Context, string, string) ([]models.Booking, error) {
				return nil, nil
			}))
			f.session.SetTime(tt.time)
			f.session.SetLocation(tt.location)

			_, err := f.session.Submit(context.Background())
			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)
			assert.Equal(t, StateIdle, f.session.State())

			msg, ok := f.notes.Last(notify.LevelError)
			require.True(t, ok)
			assert.Equal(t, validation.Message, msg.Text)
			sub.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
		})
	}
}

func TestSubmitBlockedWhenAvailabilityUnknown(t *testing.T) {
	sub := new(mockSubmitter)
	f := newCreateFixture(t, sub, listerFunc(func(context.Context, string, string) ([]models.Booking, error) {
		return nil, errors.New("503 service unavailable")
	}))
	ctx := context.Background()

	view := f.session.Refresh(ctx)
	require.Equal(t, availability.StatusError, view.Status)
	assert.Empty(t, view.Board.AvailableSlots())

	f.session.SetTime("10:00 AM")
	f.session.SetLocation("Hall")
	_, err := f.session.Submit(ctx)
	assert.ErrorIs(t, err, ErrAvailabilityUnknown)
	assert.Equal(t, StateIdle, f.session.State())

	msg, _ := f.notes.Last(notify.LevelError)
	assert.Equal(t, msgUnavailable, msg.Text)
	sub.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestSingleFlightSubmission(t *testing.T) {
	sub := newGatedSubmitter()
	f := newCreateFixture(t, sub, listerFunc(func(context.Context, string, string) ([]models.Booking, error) {
		return nil, nil
	}))
	f.session.SetTime("02:00 PM")
	f.session.SetLocation("Hall")

	done := make(chan error, 1)
	go func() {
		_, err := f.session.Submit(context.Background())
		done <- err
	}()
	<-sub.started
	assert.Equal(t, StateSubmitting, f.session.State())

	_, err := f.session.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	close(sub.release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), sub.calls.Load())
}

func TestCloseDropsInflightResult(t *testing.T) {
	sub := newGatedSubmitter()
	f := newCreateFixture(t, sub, listerFunc(func(context.Context, string, string) ([]models.Booking, error) {
		return nil, nil
	}))
	f.session.SetTime("02:00 PM")
	f.session.SetLocation("Hall")

	done := make(chan error, 1)
	go func() {
		_, err := f.session.Submit(context.Background())
		done <- err
	}()
	<-sub.started
	f.session.Close()
	close(sub.release)

	assert.ErrorIs(t, <-done, ErrSessionClosed)
	_, ok := f.notes.Last(notify.LevelSuccess)
	assert.False(t, ok)
	assert.Zero(t, f.nav.calls.Load())
	assert.Empty(t, f.cache.keys())

	_, err := f.session.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestDateChangeRequeriesAvailability(t *testing.T) {
	srv := newAPIServer(t)
	srv.mu.Lock()
	srv.reserved["2025-06-02"] = []models.Booking{{ID: "other", Time: "10:00 AM"}}
	srv.mu.Unlock()
	client := api.NewClient(srv.URL, "")
	f := newCreateFixture(t, client, client)
	ctx := context.Background()

	f.session.SetDate(ctx, mustDate(t, "2025-06-01"))
	f.session.SetTime("10:00 AM")
	f.session.SetLocation("123 Main St")
	assert.True(t, f.session.SelectedSlotAvailable())

	view := f.session.SetDate(ctx, mustDate(t, "2025-06-02"))
	assert.Equal(t, "2025-06-02", view.Date)
	assert.Equal(t, []string{"2025-06-01", "2025-06-02"}, srv.queries())

	// Time and location survive the date change; the slot is now shown as taken.
	d := f.session.Draft()
	assert.Equal(t, slots.Slot("10:00 AM"), d.Time)
	assert.Equal(t, "123 Main St", d.Location)
	assert.False(t, f.session.SelectedSlotAvailable())
}

func TestEditSessionKeepsOwnSlot(t *testing.T) {
	existing := models.Booking{
		ID: "mine", ServiceID: "S1", ServiceName: "Wedding Decor",
		Date: "2025-06-01", Time: "02:00 PM", Location: "Old Hall",
	}
	lister := listerFunc(func(_ context.Context, serviceID, date string) ([]models.Booking, error) {
		switch date {
		case "2025-06-01":
			return []models.Booking{existing, {ID: "other", Time: "10:00 AM"}}, nil
		default:
			return nil, nil
		}
	})

	draft, err := NewEditDraft(existing, testUser)
	require.NoError(t, err)
	assert.Equal(t, slots.Slot("02:00 PM"), draft.Time)
	assert.Equal(t, "Old Hall", draft.Location)

	sub := new(mockSubmitter)
	sub.On("UpdateBooking", mock.Anything, "mine", models.UpdateBookingRequest{
		Date: "2025-06-03", Time: "02:00 PM", Location: "New Hall",
	}).Return(&models.Booking{ID: "mine", Date: "2025-06-03", Time: "02:00 PM"}, nil).Once()

	rc := newRecordingCache()
	notes := &notify.Recorder{}
	nav := &navRecorder{}
	s := NewSession(ModeEdit, draft, Deps{
		Bookings:     sub,
		Availability: availability.NewQuery(lister, rc, nil, nil),
		Cache:        rc,
		Notifier:     notes,
		Navigator:    nav,
	})
	defer s.Close()
	ctx := context.Background()

	view := s.Refresh(ctx)
	assert.True(t, view.Board.IsAvailable("02:00 PM"))
	assert.False(t, view.Board.IsAvailable("10:00 AM"))
	assert.True(t, s.SelectedSlotAvailable())

	s.SetDate(ctx, mustDate(t, "2025-06-03"))
	s.SetLocation("New Hall")
	_, err = s.Submit(ctx)
	require.NoError(t, err)

	assert.ElementsMatch(t, []cache.Key{
		cache.NewKey("S1", "2025-06-03"),
		cache.NewKey("S1", "2025-06-01"),
	}, rc.keys())
	msg, _ := notes.Last(notify.LevelSuccess)
	assert.Equal(t, "Booking updated successfully.", msg.Text)
	assert.Zero(t, nav.calls.Load())
	sub.AssertExpectations(t)
}

func TestNewEditDraftRejectsBadDate(t *testing.T) {
	_, err := NewEditDraft(models.Booking{ID: "x", Date: "June 1"}, testUser)
	assert.ErrorIs(t, err, slots.ErrInvalidDate)
}

func TestClosedSessionIgnoresSelection(t *testing.T) {
	var calls atomic.Int32
	f := newCreateFixture(t, new(mockSubmitter), listerFunc(func(context.Context, string, string) ([]models.Booking, error) {
		calls.Add(1)
		return nil, nil
	}))
	f.session.Close()

	view := f.session.SetDate(context.Background(), mustDate(t, "2025-06-05"))
	assert.Equal(t, availability.StatusStale, view.Status)
	f.session.SetTime("10:00 AM")
	f.session.SetLocation("Hall")

	assert.Equal(t, Draft{}, f.session.Draft())
	assert.Zero(t, calls.Load())
}

func TestSubmitStopsOnIllegalTransition(t *testing.T) {
	sub := new(mockSubmitter)
	f := newCreateFixture(t, sub, listerFunc(func(context.Context, string, string) ([]models.Booking, error) {
		return nil, nil
	}))
	f.session.SetTime("10:00 AM")
	f.session.SetLocation("Hall")

	f.session.mu.Lock()
	f.session.state = StateValidating
	f.session.mu.Unlock()

	_, err := f.session.Submit(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateValidating, f.session.State())
	sub.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}
