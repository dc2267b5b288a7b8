package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/APC-SoCIT/APC-2025-2026-T1-SS231-G07-DDC-Management-System-sub003/internal/config"
	"github.com/APC-SoCIT/APC-2025-2026-T1-SS231-G07-DDC-Management-System-sub003/internal/observability/metrics"
	redisclient "github.com/APC-SoCIT/APC-2025-2026-T1-SS231-G07-DDC-Management-System-sub003/internal/redis"
	"github.com/APC-SoCIT/APC-2025-2026-T1-SS231-G07-DDC-Management-System-sub003/pkg/logging"
)

const (
	EventAppointmentCreated = "APPOINTMENT_CREATED"
	EventStatusChanged      = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentMissed  = "APPOINTMENT_MISSED"
)

// Service owns every write to the appointment set. Validation and
// persistence run inside a dentist-day critical section (Redis lock
// around an advisory-locked transaction), so two requests racing for
// the same dentist's schedule cannot both commit against a stale read.
type Service struct {
	store    Store
	locker   redisclient.Locker
	resolver Resolver
	cfg      config.Config
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
	now      func() time.Time
}

func NewService(store Store, locker redisclient.Locker, cfg config.Config, logger *logging.Logger, m *metrics.BookingMetrics) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    store,
		locker:   locker,
		resolver: Resolver{GranularityMinutes: cfg.SlotGranularityMinutes},
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

type CreateInput struct {
	PatientID uuid.UUID
	DentistID uuid.UUID
	ClinicID  uuid.UUID
	ServiceID uuid.UUID
	Date      Date
	Start     TimeOfDay
}

// Create books a slot for a patient. On success the appointment is
// inserted as pending or confirmed depending on the service's
// auto-confirm policy. Business refusals come back as *Rejection.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Appointment, error) {
	if _, err := s.store.GetPatientByID(ctx, in.PatientID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetDentistByID(ctx, in.DentistID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetClinicByID(ctx, in.ClinicID); err != nil {
		return nil, err
	}
	policy, err := s.store.GetServicePolicy(ctx, in.ServiceID)
	if err != nil {
		return nil, err
	}

	req := Request{
		PatientID:       in.PatientID,
		DentistID:       in.DentistID,
		ClinicID:        in.ClinicID,
		ServiceID:       in.ServiceID,
		Date:            in.Date,
		Start:           in.Start,
		DurationMinutes: policy.DurationMinutes,
	}

	var created *Appointment
	err = s.withDentistDay(ctx, in.DentistID, in.Date, func(ctx context.Context, r Repository) error {
		st, err := s.loadState(ctx, r, req)
		if err != nil {
			return err
		}
		today, minute := s.clock()
		if rej := Validate(req, st, today, minute); rej != nil {
			return rej
		}
		if err := s.requireOffered(ctx, r, req, st.DentistDay); err != nil {
			return err
		}

		status := StatusPending
		if policy.AutoConfirm {
			status = StatusConfirmed
		}
		now := s.now()
		appt := &Appointment{
			ID:              uuid.New(),
			PatientID:       in.PatientID,
			DentistID:       in.DentistID,
			ClinicID:        in.ClinicID,
			ServiceID:       in.ServiceID,
			Date:            in.Date,
			Start:           in.Start,
			DurationMinutes: policy.DurationMinutes,
			Status:          status,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := r.InsertAppointment(ctx, appt); err != nil {
			return err
		}
		created = appt
		s.logEvent(ctx, r, appt.ID, EventAppointmentCreated, map[string]any{
			"patient_id": appt.PatientID.String(),
			"dentist_id": appt.DentistID.String(),
			"date":       appt.Date.String(),
			"start":      appt.Start.String(),
			"status":     string(appt.Status),
		})
		return nil
	})
	s.observe("create", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		"appointment_id", created.ID,
		"patient_id", created.PatientID,
		"dentist_id", created.DentistID,
		"date", created.Date.String(),
		"start", created.Start.String(),
		"status", string(created.Status))
	return created, nil
}

// Reschedule moves an appointment to a new slot. Services that allow
// immediate reschedule move the row directly; everything else parks
// the appointment in reschedule_requested until staff resolve it.
// The appointment being moved never conflicts with itself.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newDate Date, newStart TimeOfDay) (*Appointment, error) {
	stale, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	policy, err := s.store.GetServicePolicy(ctx, stale.ServiceID)
	if err != nil {
		return nil, err
	}

	var updated *Appointment
	err = s.withDentistDay(ctx, stale.DentistID, newDate, func(ctx context.Context, r Repository) error {
		appt, err := r.GetAppointmentByID(ctx, id)
		if err != nil {
			return err
		}

		req := Request{
			PatientID:            appt.PatientID,
			DentistID:            appt.DentistID,
			ClinicID:             appt.ClinicID,
			ServiceID:            appt.ServiceID,
			Date:                 newDate,
			Start:                newStart,
			DurationMinutes:      appt.DurationMinutes,
			ExcludeAppointmentID: appt.ID,
		}
		st, err := s.loadState(ctx, r, req)
		if err != nil {
			return err
		}
		today, minute := s.clock()
		if rej := Validate(req, st, today, minute); rej != nil {
			return rej
		}
		if err := s.requireOffered(ctx, r, req, st.DentistDay); err != nil {
			return err
		}

		now := s.now()
		if policy.AllowImmediateReschedule {
			if appt.Status != StatusPending && appt.Status != StatusConfirmed {
				return rejectf(ReasonIllegalTransition,
					"cannot reschedule an appointment in status %s", appt.Status)
			}
			appt.Note = fmt.Sprintf("rescheduled from %s %s", appt.Date, appt.Start)
			appt.Date = newDate
			appt.Start = newStart
			appt.UpdatedAt = now
		} else {
			if err := Transition(appt, StatusRescheduleRequested, now); err != nil {
				return err
			}
			d := newDate
			t := newStart
			appt.RequestedDate = &d
			appt.RequestedStart = &t
		}
		if err := r.UpdateAppointment(ctx, appt); err != nil {
			return err
		}
		updated = appt
		return nil
	})
	s.observe("reschedule", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("reschedule processed",
		"appointment_id", updated.ID,
		"status", string(updated.Status),
		"date", updated.Date.String(),
		"start", updated.Start.String())
	return updated, nil
}

// RequestCancel withdraws a pending appointment outright, or parks a
// confirmed one in cancel_requested for staff resolution.
func (s *Service) RequestCancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	updated, err := s.transitionLocked(ctx, id, func(ctx context.Context, r Repository, appt *Appointment, now time.Time) error {
		pending, err := r.ListPendingRequestsByPatient(ctx, appt.PatientID)
		if err != nil {
			return err
		}
		for _, p := range pending {
			if p.ID != appt.ID {
				return rejectf(ReasonPendingRequestLock,
					"patient has an unresolved %s request on appointment %s", p.Status, p.ID)
			}
		}

		target := StatusCancelRequested
		if appt.Status == StatusPending {
			// Withdrawal before approval skips the request step.
			target = StatusCancelled
		}
		if err := Transition(appt, target, now); err != nil {
			return err
		}
		if reason != "" {
			appt.Note = reason
		}
		return nil
	})
	s.observe("request_cancel", err)
	return updated, err
}

// Approve resolves the staff-actionable states: pending becomes
// confirmed, a reschedule request is re-validated and applied, a
// cancel request becomes cancelled.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	updated, err := s.transitionLocked(ctx, id, func(ctx context.Context, r Repository, appt *Appointment, now time.Time) error {
		switch appt.Status {
		case StatusPending:
			return Transition(appt, StatusConfirmed, now)

		case StatusRescheduleRequested:
			if appt.RequestedDate == nil || appt.RequestedStart == nil {
				return fmt.Errorf("appointment %s is missing its requested slot", appt.ID)
			}
			req := Request{
				PatientID:            appt.PatientID,
				DentistID:            appt.DentistID,
				ClinicID:             appt.ClinicID,
				ServiceID:            appt.ServiceID,
				Date:                 *appt.RequestedDate,
				Start:                *appt.RequestedStart,
				DurationMinutes:      appt.DurationMinutes,
				ExcludeAppointmentID: appt.ID,
			}
			st, err := s.loadState(ctx, r, req)
			if err != nil {
				return err
			}
			today, minute := s.clock()
			if rej := Validate(req, st, today, minute); rej != nil {
				return rej
			}
			if err := s.requireOffered(ctx, r, req, st.DentistDay); err != nil {
				return err
			}
			appt.Note = fmt.Sprintf("reschedule approved, moved from %s %s", appt.Date, appt.Start)
			appt.Date = *appt.RequestedDate
			appt.Start = *appt.RequestedStart
			appt.RequestedDate = nil
			appt.RequestedStart = nil
			return Transition(appt, StatusConfirmed, now)

		case StatusCancelRequested:
			return Transition(appt, StatusCancelled, now)

		default:
			return rejectf(ReasonIllegalTransition, "nothing to approve in status %s", appt.Status)
		}
	})
	s.observe("approve", err)
	return updated, err
}

// Reject resolves the staff-actionable states negatively: a pending
// booking is denied, a reschedule request reverts with the original
// slot retained, a cancel request restores confirmed.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	updated, err := s.transitionLocked(ctx, id, func(ctx context.Context, r Repository, appt *Appointment, now time.Time) error {
		switch appt.Status {
		case StatusPending:
			if err := Transition(appt, StatusRejected, now); err != nil {
				return err
			}
			appt.Note = reason
			return nil

		case StatusRescheduleRequested:
			appt.RequestedDate = nil
			appt.RequestedStart = nil
			appt.Note = "reschedule rejected: " + reason
			// The revert target is policy, not a lifecycle
			// progression; the original date and time are retained.
			appt.Status = s.rescheduleRevertStatus()
			appt.UpdatedAt = now
			return nil

		case StatusCancelRequested:
			if err := Transition(appt, StatusConfirmed, now); err != nil {
				return err
			}
			appt.Note = "cancellation rejected: " + reason
			return nil

		default:
			return rejectf(ReasonIllegalTransition, "nothing to reject in status %s", appt.Status)
		}
	})
	s.observe("reject", err)
	return updated, err
}

// CheckIn marks a confirmed patient as arrived.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	updated, err := s.transitionLocked(ctx, id, func(ctx context.Context, r Repository, appt *Appointment, now time.Time) error {
		return Transition(appt, StatusWaiting, now)
	})
	s.observe("checkin", err)
	return updated, err
}

// Complete closes out a rendered appointment. Legal from waiting, or
// directly from confirmed where the check-in step is skipped by
// policy. CompletedAt is stamped exactly once by the transition and
// is the sole source of truth for "last visit".
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	updated, err := s.transitionLocked(ctx, id, func(ctx context.Context, r Repository, appt *Appointment, now time.Time) error {
		return Transition(appt, StatusCompleted, now)
	})
	s.observe("complete", err)
	return updated, err
}

// AvailableSlots returns the bookable start times for a dentist at a
// clinic on a date, for the given service's duration. Read-only; an
// unconfigured dentist yields an empty list, not an error.
func (s *Service) AvailableSlots(ctx context.Context, dentistID, clinicID, serviceID uuid.UUID, date Date) ([]TimeOfDay, error) {
	policy, err := s.store.GetServicePolicy(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	windows, err := s.store.ListAvailabilityWindows(ctx, dentistID, clinicID, date)
	if err != nil {
		return nil, err
	}
	blocks, err := s.store.ListBlockedSlots(ctx, dentistID, clinicID, date)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.ListActiveByDentistOnDate(ctx, dentistID, date)
	if err != nil {
		return nil, err
	}

	today, minute := s.clock()
	slots := slices.Collect(s.resolver.ResolveSlots(date, policy.DurationMinutes, windows, blocks, existing, today, minute))
	if slots == nil {
		slots = []TimeOfDay{}
	}
	return slots, nil
}

// GetAppointment retrieves an appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// ListByPatient retrieves a patient's appointments, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListByPatient(ctx, patientID, limit, offset)
}

// withDentistDay runs fn inside the dentist-day critical section: the
// Redis lock bounds waiting, the store transaction holds the advisory
// lock for correctness. Lock starvation maps to the one retryable
// rejection kind.
func (s *Service) withDentistDay(ctx context.Context, dentistID uuid.UUID, date Date, fn func(ctx context.Context, r Repository) error) error {
	start := time.Now()
	err := s.locker.WithDentistDay(ctx, dentistID, date.String(), func(ctx context.Context) error {
		return s.store.WithDentistDay(ctx, dentistID, date, fn)
	})
	s.metrics.ObserveCommitLatency(time.Since(start).Seconds())
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return rejectf(ReasonConcurrencyConflict,
			"the dentist's schedule is being updated by another request, please retry")
	}
	return err
}

// transitionLocked loads the appointment, re-reads it inside its
// dentist-day critical section, applies the mutation, and persists.
// Every status write in the system funnels through here or Create.
func (s *Service) transitionLocked(ctx context.Context, id uuid.UUID, apply func(ctx context.Context, r Repository, appt *Appointment, now time.Time) error) (*Appointment, error) {
	stale, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	lockDate := stale.Date
	if stale.Status == StatusRescheduleRequested && stale.RequestedDate != nil {
		// Approval may write into the requested day's schedule.
		lockDate = *stale.RequestedDate
	}

	var updated *Appointment
	err = s.withDentistDay(ctx, stale.DentistID, lockDate, func(ctx context.Context, r Repository) error {
		appt, err := r.GetAppointmentByID(ctx, id)
		if err != nil {
			return err
		}
		before := appt.Status
		if err := apply(ctx, r, appt, s.now()); err != nil {
			return err
		}
		if err := r.UpdateAppointment(ctx, appt); err != nil {
			return err
		}
		updated = appt
		if appt.Status != before {
			s.logEvent(ctx, r, appt.ID, EventStatusChanged, map[string]any{
				"from": string(before),
				"to":   string(appt.Status),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) loadState(ctx context.Context, r Repository, req Request) (ValidationState, error) {
	dentistDay, err := r.ListActiveByDentistOnDate(ctx, req.DentistID, req.Date)
	if err != nil {
		return ValidationState{}, fmt.Errorf("load dentist day: %w", err)
	}
	monday, sunday := req.Date.WeekBounds()
	patientWeek, err := r.ListActiveByPatientBetween(ctx, req.PatientID, monday, sunday)
	if err != nil {
		return ValidationState{}, fmt.Errorf("load patient week: %w", err)
	}
	pending, err := r.ListPendingRequestsByPatient(ctx, req.PatientID)
	if err != nil {
		return ValidationState{}, fmt.Errorf("load pending requests: %w", err)
	}
	return ValidationState{
		DentistDay:     dentistDay,
		PatientWeek:    patientWeek,
		PatientPending: pending,
	}, nil
}

// requireOffered confirms the requested start is one the resolver
// would offer: inside a window, outside blocks, clear of other
// bookings, on the slot grid.
func (s *Service) requireOffered(ctx context.Context, r Repository, req Request, dentistDay []Appointment) error {
	windows, err := r.ListAvailabilityWindows(ctx, req.DentistID, req.ClinicID, req.Date)
	if err != nil {
		return fmt.Errorf("load availability windows: %w", err)
	}
	blocks, err := r.ListBlockedSlots(ctx, req.DentistID, req.ClinicID, req.Date)
	if err != nil {
		return fmt.Errorf("load blocked slots: %w", err)
	}

	existing := make([]Appointment, 0, len(dentistDay))
	for _, a := range dentistDay {
		if a.ID == req.ExcludeAppointmentID {
			continue
		}
		existing = append(existing, a)
	}

	today, minute := s.clock()
	for t := range s.resolver.ResolveSlots(req.Date, req.DurationMinutes, windows, blocks, existing, today, minute) {
		if t == req.Start {
			return nil
		}
	}
	return rejectf(ReasonSlotUnavailable,
		"%s on %s is not within the dentist's bookable availability", req.Start, req.Date)
}

// rescheduleRevertStatus is the state a rejected reschedule request
// falls back to. Only pending and confirmed make sense as revert
// targets; anything else configured clamps to confirmed.
func (s *Service) rescheduleRevertStatus() Status {
	if st := Status(s.cfg.RescheduleRevertStatus); st == StatusPending || st == StatusConfirmed {
		return st
	}
	return StatusConfirmed
}

func (s *Service) location() *time.Location {
	if s.cfg.Location != nil {
		return s.cfg.Location
	}
	return time.Local
}

// clock returns the current clinic-local calendar date and wall
// minute. Nothing here compares against UTC now.
func (s *Service) clock() (Date, TimeOfDay) {
	local := s.now().In(s.location())
	return DateOf(local), MinuteOf(local)
}

// logEvent appends a best-effort audit record. Failures are logged
// and never fail the booking operation itself.
func (s *Service) logEvent(ctx context.Context, r Repository, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal event payload", "event_type", eventType, "error", err)
		data = nil
	}

	apptID := appointmentID
	ev := AppointmentEvent{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}
	if err := r.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("failed to insert appointment event",
			"event_type", eventType, "appointment_id", appointmentID, "error", err)
	}
}

func (s *Service) observe(op string, err error) {
	switch {
	case err == nil:
		s.metrics.ObserveOperation(op, "accepted")
	default:
		if rej, ok := AsRejection(err); ok {
			s.metrics.ObserveOperation(op, "rejected")
			s.metrics.ObserveRejection(string(rej.Reason))
			return
		}
		s.metrics.ObserveOperation(op, "error")
	}
}
