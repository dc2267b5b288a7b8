package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDentistByID(ctx context.Context, id uuid.UUID) (*Dentist, error)
	GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	GetServicePolicy(ctx context.Context, id uuid.UUID) (*ServicePolicy, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// Conflict-check reads. All return non-terminal rows only.
	ListActiveByDentistOnDate(ctx context.Context, dentistID uuid.UUID, date Date) ([]Appointment, error)
	ListActiveByPatientBetween(ctx context.Context, patientID uuid.UUID, from, to Date) ([]Appointment, error)
	ListPendingRequestsByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)

	// Scheduling configuration, owned by an external collaborator.
	ListAvailabilityWindows(ctx context.Context, dentistID, clinicID uuid.UUID, date Date) ([]AvailabilityWindow, error)
	ListBlockedSlots(ctx context.Context, dentistID, clinicID uuid.UUID, date Date) ([]BlockedSlot, error)

	InsertAppointment(ctx context.Context, a *Appointment) error
	UpdateAppointment(ctx context.Context, a *Appointment) error

	// UpdateStatusFrom is a compare-and-swap status write: it only
	// succeeds while the row still holds the expected from status at
	// the observed date and start slot. A row that moved on, by a
	// staff action or a reschedule to a new slot, misses the swap and
	// returns ErrAppointmentNotFound, which makes the sweeper
	// idempotent under overlapping runs.
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to Status, date Date, start TimeOfDay, now time.Time) (*Appointment, error)

	// ListOverdue selects sweepable appointments whose scheduled end
	// plus grace elapsed strictly before the given local wall clock.
	ListOverdue(ctx context.Context, today Date, nowMinute TimeOfDay, graceMinutes int) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev AppointmentEvent) error
}

// Store is a Repository that can additionally scope work to the
// contended resource "all non-terminal appointments for dentist D on
// date X": fn runs inside a transaction holding an exclusive lock on
// that resource, so validation re-run inside it sees committed state.
type Store interface {
	Repository
	WithDentistDay(ctx context.Context, dentistID uuid.UUID, date Date, fn func(ctx context.Context, r Repository) error) error
}
