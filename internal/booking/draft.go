package booking

import (
	"fmt"
	"time"

	"luxeplan/internal/auth"
	"luxeplan/internal/models"
	"luxeplan/internal/slots"
)

// Mode tells whether a session creates a booking or edits one.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// ServiceRef is the decoration service being booked.
type ServiceRef struct {
	ID       string
	Name     string
	Category string
	Cost     float64
}

// Draft is the unsaved selection of one booking UI.
type Draft struct {
	Date     time.Time
	Time     slots.Slot
	Location string
	Service  ServiceRef
	User     auth.Identity

	// Set in edit mode only.
	BookingID    string
	OriginalDate string
}

// NewCreateDraft starts a draft on today's date with no time or location.
func NewCreateDraft(service ServiceRef, user auth.Identity, now time.Time) Draft {
	return Draft{
		Date:    slots.Today(now),
		Service: service,
		User:    user,
	}
}

// NewEditDraft starts a draft from an existing booking.
func NewEditDraft(existing models.Booking, user auth.Identity) (Draft, error) {
	date, err := slots.ParseDate(existing.Date)
	if err != nil {
		return Draft{}, fmt.Errorf("booking %s: %w", existing.ID, err)
	}
	return Draft{
		Date:     date,
		Time:     slots.Slot(existing.Time),
		Location: existing.Location,
		Service: ServiceRef{
			ID:       existing.ServiceID,
			Name:     existing.ServiceName,
			Category: existing.ServiceCategory,
			Cost:     existing.Cost,
		},
		User:         user,
		BookingID:    existing.ID,
		OriginalDate: existing.Date,
	}, nil
}

// DateString returns the draft date as YYYY-MM-DD.
func (d Draft) DateString() string {
	return slots.CanonicalDate(d.Date)
}

func (d Draft) createRequest() models.CreateBookingRequest {
	return models.CreateBookingRequest{
		ServiceID:       d.Service.ID,
		ServiceName:     d.Service.Name,
		UserEmail:       d.User.Email,
		UserName:        d.User.Name,
		Date:            d.DateString(),
		Time:            string(d.Time),
		Location:        d.Location,
		Cost:            d.Service.Cost,
		ServiceCategory: d.Service.Category,
	}
}

func (d Draft) updateRequest() models.UpdateBookingRequest {
	return models.UpdateBookingRequest{
		Date:     d.DateString(),
		Time:     string(d.Time),
		Location: d.Location,
	}
}
