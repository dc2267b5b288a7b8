package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func seedAppointment(f *fixture, patient uuid.UUID, d Date, start TimeOfDay, st Status) *Appointment {
	a := Appointment{
		ID:              uuid.New(),
		PatientID:       patient,
		DentistID:       testDentist,
		ClinicID:        testClinicA,
		ServiceID:       svcApproval,
		Date:            d,
		Start:           start,
		DurationMinutes: 30,
		Status:          st,
		CreatedAt:       f.nowTime,
		UpdatedAt:       f.nowTime,
	}
	f.store.appts[a.ID] = a
	return &a
}

func status(t *testing.T, f *fixture, id uuid.UUID) Status {
	t.Helper()
	a, err := f.store.GetAppointmentByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	return a.Status
}

// A 14:00 appointment of 30 minutes with a 15-minute grace becomes
// missed strictly after 14:45: untouched at 14:45, swept at 14:46.
func TestSweepMissedGraceBoundary(t *testing.T) {
	f := newFixture(t)
	day := Date{2026, time.February, 5}
	a := seedAppointment(f, testPatient, day, 840, StatusConfirmed)

	at := func(hh, mm int) time.Time {
		return time.Date(2026, time.February, 5, hh, mm, 0, 0, time.UTC)
	}

	n, err := f.svc.SweepMissed(context.Background(), at(14, 45))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("swept %d at 14:45, want 0", n)
	}
	if got := status(t, f, a.ID); got != StatusConfirmed {
		t.Fatalf("status = %s at 14:45, want confirmed", got)
	}

	n, err = f.svc.SweepMissed(context.Background(), at(14, 46))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept %d at 14:46, want 1", n)
	}
	if got := status(t, f, a.ID); got != StatusMissed {
		t.Fatalf("status = %s, want missed", got)
	}
}

func TestSweepMissedCoversSweepableStatuses(t *testing.T) {
	f := newFixture(t)
	yesterday := Date{2026, time.February, 4}

	pending := seedAppointment(f, testPatient, yesterday, 600, StatusPending)
	confirmed := seedAppointment(f, testPatient, yesterday, 660, StatusConfirmed)
	waiting := seedAppointment(f, testPatient, yesterday, 720, StatusWaiting)
	parked := seedAppointment(f, testPatient2, yesterday, 780, StatusRescheduleRequested)
	done := seedAppointment(f, testPatient2, yesterday, 840, StatusCompleted)

	n, err := f.svc.SweepMissed(context.Background(), time.Date(2026, time.February, 5, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 3 {
		t.Fatalf("swept %d, want 3", n)
	}
	for _, a := range []*Appointment{pending, confirmed, waiting} {
		if got := status(t, f, a.ID); got != StatusMissed {
			t.Errorf("appointment starting %s: status = %s, want missed", a.Start, got)
		}
	}
	// Open requests await staff resolution and completed visits are
	// terminal; neither is swept.
	if got := status(t, f, parked.ID); got != StatusRescheduleRequested {
		t.Errorf("reschedule_requested was swept to %s", got)
	}
	if got := status(t, f, done.ID); got != StatusCompleted {
		t.Errorf("completed was swept to %s", got)
	}
}

func TestSweepMissedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	seedAppointment(f, testPatient, Date{2026, time.February, 4}, 600, StatusConfirmed)
	now := time.Date(2026, time.February, 5, 9, 0, 0, 0, time.UTC)

	n, err := f.svc.SweepMissed(context.Background(), now)
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("first sweep = %d, want 1", n)
	}

	n, err = f.svc.SweepMissed(context.Background(), now)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep = %d, want 0", n)
	}
}

// A late slot whose grace runs past midnight is not overdue on the
// first sweeps of the next day: 23:30 plus 30 minutes plus a
// 15-minute grace survives through 00:15 and is swept at 00:16.
func TestSweepMissedGraceAcrossMidnight(t *testing.T) {
	f := newFixture(t)
	a := seedAppointment(f, testPatient, Date{2026, time.February, 4}, 1410, StatusConfirmed)

	at := func(hh, mm int) time.Time {
		return time.Date(2026, time.February, 5, hh, mm, 0, 0, time.UTC)
	}

	for _, now := range []time.Time{at(0, 5), at(0, 15)} {
		n, err := f.svc.SweepMissed(context.Background(), now)
		if err != nil {
			t.Fatalf("sweep at %s: %v", now.Format("15:04"), err)
		}
		if n != 0 {
			t.Fatalf("swept %d at %s, want 0 (grace runs to 00:15)", n, now.Format("15:04"))
		}
	}
	if got := status(t, f, a.ID); got != StatusConfirmed {
		t.Fatalf("status = %s before the grace elapsed, want confirmed", got)
	}

	n, err := f.svc.SweepMissed(context.Background(), at(0, 16))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept %d at 00:16, want 1", n)
	}
	if got := status(t, f, a.ID); got != StatusMissed {
		t.Fatalf("status = %s, want missed", got)
	}
}

// The sweeper writes through a compare-and-swap; a row that moved on
// between its read and its write is skipped, not clobbered.
func TestUpdateStatusFromIsCompareAndSwap(t *testing.T) {
	f := newFixture(t)
	a := seedAppointment(f, testPatient, Date{2026, time.February, 4}, 600, StatusConfirmed)

	// The read saw confirmed, but staff complete the visit first.
	row := f.store.appts[a.ID]
	row.Status = StatusCompleted
	f.store.appts[a.ID] = row

	_, err := f.store.UpdateStatusFrom(context.Background(), a.ID, StatusConfirmed, StatusMissed, a.Date, a.Start, f.nowTime)
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("stale CAS returned %v, want ErrAppointmentNotFound", err)
	}
	if got := status(t, f, a.ID); got != StatusCompleted {
		t.Fatalf("status = %s, want completed untouched", got)
	}
}

// A reschedule that moves the row to a future slot keeps the status
// confirmed, so the status alone cannot guard the sweeper's write.
// The swap also pins the date and start the overdue read observed.
func TestUpdateStatusFromMissesRescheduledSlot(t *testing.T) {
	f := newFixture(t)
	a := seedAppointment(f, testPatient, Date{2026, time.February, 4}, 600, StatusConfirmed)

	// Between the overdue read and the write, an immediate reschedule
	// moves the appointment a week out.
	row := f.store.appts[a.ID]
	row.Date = Date{2026, time.February, 11}
	row.Start = 660
	f.store.appts[a.ID] = row

	_, err := f.store.UpdateStatusFrom(context.Background(), a.ID, StatusConfirmed, StatusMissed, a.Date, a.Start, f.nowTime)
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("stale CAS returned %v, want ErrAppointmentNotFound", err)
	}
	got, err := f.store.GetAppointmentByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusConfirmed || !got.Date.Equal(Date{2026, time.February, 11}) || got.Start != 660 {
		t.Fatalf("moved row was clobbered: %s on %s at %s", got.Status, got.Date, got.Start)
	}
}
