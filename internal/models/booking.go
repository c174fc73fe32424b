package models

import "time"

// Booking is a server owned booking record. Only the fields the client reads
// or writes are modelled.
type Booking struct {
	ID              string    `json:"_id"`
	ServiceID       string    `json:"serviceId"`
	ServiceName     string    `json:"service_name,omitempty"`
	ServiceCategory string    `json:"service_category,omitempty"`
	UserEmail       string    `json:"userEmail,omitempty"`
	UserName        string    `json:"userName,omitempty"`
	Date            string    `json:"date"` // YYYY-MM-DD
	Time            string    `json:"time"`
	Location        string    `json:"location,omitempty"`
	Cost            float64   `json:"cost,omitempty"`
	Status          string    `json:"status,omitempty"`
	PaymentStatus   string    `json:"paymentStatus,omitempty"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
}

// Reservation is the projection of a booking kept in the availability cache.
type Reservation struct {
	ID   string `json:"_id"`
	Time string `json:"time"`
}

// CreateBookingRequest is the body of POST /bookings.
type CreateBookingRequest struct {
	ServiceID       string  `json:"serviceId"`
	ServiceName     string  `json:"service_name"`
	UserEmail       string  `json:"userEmail"`
	UserName        string  `json:"userName"`
	Date            string  `json:"date"`
	Time            string  `json:"time"`
	Location        string  `json:"location"`
	Cost            float64 `json:"cost"`
	ServiceCategory string  `json:"service_category"`
}

// UpdateBookingRequest is the body of PUT /bookings/{id}.
type UpdateBookingRequest struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Location string `json:"location"`
}

// Reservations projects bookings to their id and time.
func Reservations(bookings []Booking) []Reservation {
	out := make([]Reservation, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, Reservation{ID: b.ID, Time: b.Time})
	}
	return out
}
