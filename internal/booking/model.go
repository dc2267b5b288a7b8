package booking

import (
	"time"

	"github.com/google/uuid"
)

// Appointment is the central entity. Rows are created by the booking
// service, mutated only through state-machine-validated transitions,
// and never deleted; terminal statuses preserve the audit trail.
type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DentistID uuid.UUID
	ClinicID  uuid.UUID
	ServiceID uuid.UUID

	Date            Date
	Start           TimeOfDay
	DurationMinutes int

	Status Status
	Note   string

	// Requested reschedule target, set while status is
	// reschedule_requested and cleared on resolution.
	RequestedDate  *Date
	RequestedStart *TimeOfDay

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func (a *Appointment) Interval() Interval {
	return Interval{Start: a.Start, End: a.Start + TimeOfDay(a.DurationMinutes)}
}

// AvailabilityWindow is a working-hours range for a dentist at a
// clinic. Owned by the scheduling-configuration collaborator and
// read-only here. Exactly one of Weekday or Date is set; date-specific
// rows override the weekday template for that day.
type AvailabilityWindow struct {
	ID        uuid.UUID
	DentistID uuid.UUID
	ClinicID  uuid.UUID
	Weekday   *time.Weekday
	Date      *Date
	Start     TimeOfDay
	End       TimeOfDay
}

func (w AvailabilityWindow) AppliesTo(d Date) bool {
	if w.Date != nil {
		return w.Date.Equal(d)
	}
	return w.Weekday != nil && *w.Weekday == d.Weekday()
}

func (w AvailabilityWindow) Interval() Interval {
	return Interval{Start: w.Start, End: w.End}
}

// BlockedSlot carves explicit unavailability (vacation, personal
// block) out of an AvailabilityWindow. Same ownership as the windows.
type BlockedSlot struct {
	ID        uuid.UUID
	DentistID uuid.UUID
	ClinicID  uuid.UUID
	Date      Date
	Start     TimeOfDay
	End       TimeOfDay
	Reason    string
}

func (b BlockedSlot) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// ServicePolicy is the per-service booking policy supplied by an
// external collaborator: how long the service runs, whether bookings
// auto-confirm, and whether patients may reschedule without approval.
type ServicePolicy struct {
	ID                       uuid.UUID
	Name                     string
	DurationMinutes          int
	AutoConfirm              bool
	AllowImmediateReschedule bool
}

// AppointmentEvent is an append-only audit record of a lifecycle
// action. Events are best-effort observability, not the source of
// truth; the appointment row itself is.
type AppointmentEvent struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Dentist struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Clinic struct {
	ID        uuid.UUID
	Name      string
	Address   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
