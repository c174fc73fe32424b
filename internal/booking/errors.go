package booking

import (
	"errors"
	"strings"

	"luxeplan/internal/api"
)

var (
	ErrSubmitInFlight      = errors.New("a submission is already in progress")
	ErrSessionClosed       = errors.New("booking session is closed")
	ErrAlreadySubmitted    = errors.New("booking was already submitted")
	ErrAvailabilityUnknown = errors.New("availability is unknown")
	ErrInvalidTransition   = errors.New("invalid submission state transition")
)

const (
	msgGenericFailure = "Booking failed. Please try again."
	msgConflict       = "This time slot was just taken. Please pick another one."
	msgUnavailable    = "Could not load availability. Please try again."
)

// ValidationError is a local check that failed before any request was made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// SubmissionError is a rejected or failed create/update request.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string { return e.Message }

func (e *SubmissionError) Unwrap() error { return e.Err }

// SubmissionConflictError means the slot was taken between query and submit.
type SubmissionConflictError struct {
	Message string
	Err     error
}

func (e *SubmissionConflictError) Error() string { return e.Message }

func (e *SubmissionConflictError) Unwrap() error { return e.Err }

func validate(d Draft) error {
	if d.Time == "" {
		return &ValidationError{Field: "time", Message: "Please select a time slot."}
	}
	if strings.TrimSpace(d.Location) == "" {
		return &ValidationError{Field: "location", Message: "Please enter the event location."}
	}
	return nil
}

// classify turns a request failure into a conflict or a generic submission error.
func classify(err error) error {
	msg := api.ServerMessage(err)
	if errors.Is(err, api.ErrConflict) {
		if msg == "" {
			msg = msgConflict
		}
		return &SubmissionConflictError{Message: msg, Err: err}
	}
	if msg == "" {
		msg = msgGenericFailure
	}
	return &SubmissionError{Message: msg, Err: err}
}
