package booking

import (
	"errors"
	"fmt"
)

// Repository sentinels, distinct from business-rule rejections.
var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDentistNotFound     = errors.New("dentist not found")
	ErrClinicNotFound      = errors.New("clinic not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// RejectReason is the taxonomy of expected booking outcomes. These
// are business decisions, not failures: they are returned as values
// and mapped to specific user-facing messages, never swallowed.
type RejectReason string

const (
	ReasonInvalidDate         RejectReason = "invalid_date"
	ReasonDuplicateBooking    RejectReason = "duplicate_booking"
	ReasonDentistConflict     RejectReason = "dentist_conflict"
	ReasonWeeklyLimitExceeded RejectReason = "weekly_limit_exceeded"
	ReasonPendingRequestLock  RejectReason = "pending_request_lock"
	ReasonSlotUnavailable     RejectReason = "slot_unavailable"
	ReasonIllegalTransition   RejectReason = "illegal_state_transition"
	ReasonNotFound            RejectReason = "not_found"
	ReasonConcurrencyConflict RejectReason = "concurrency_conflict"
)

// Rejection is a structured booking refusal. Reason drives machine
// handling (HTTP mapping, retry), Message is the user-facing text.
type Rejection struct {
	Reason  RejectReason
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

// Retryable reports whether the caller may retry the same request
// unchanged. Only lock contention qualifies; every other reason
// reflects committed state and will not change on retry.
func (r *Rejection) Retryable() bool {
	return r.Reason == ReasonConcurrencyConflict
}

func rejectf(reason RejectReason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps err into a Rejection if it carries one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
