package booking

import "github.com/google/uuid"

// Request is a booking attempt to validate. ExcludeAppointmentID is
// set on reschedule so the appointment being moved does not conflict
// with itself; uuid.Nil means no exclusion.
type Request struct {
	PatientID            uuid.UUID
	DentistID            uuid.UUID
	ClinicID             uuid.UUID
	ServiceID            uuid.UUID
	Date                 Date
	Start                TimeOfDay
	DurationMinutes      int
	ExcludeAppointmentID uuid.UUID
}

func (r Request) Interval() Interval {
	return Interval{Start: r.Start, End: r.Start + TimeOfDay(r.DurationMinutes)}
}

// ValidationState is the snapshot of committed appointments the
// validator decides against. The caller is responsible for reading it
// under the same lock that guards the eventual write.
type ValidationState struct {
	// DentistDay holds the dentist's non-terminal appointments on the
	// requested date, across all clinics.
	DentistDay []Appointment
	// PatientWeek holds the patient's non-terminal appointments in
	// the ISO week containing the requested date.
	PatientWeek []Appointment
	// PatientPending holds the patient's appointments sitting in
	// reschedule_requested or cancel_requested, any date.
	PatientPending []Appointment
}

// Validate is the single conflict decision function. Every booking
// path goes through it; no caller re-implements or bypasses a rule.
// Checks run in a fixed order and the first failure wins. A nil
// return means accepted.
func Validate(req Request, st ValidationState, today Date, nowMinute TimeOfDay) *Rejection {
	if req.Date.IsZero() {
		return rejectf(ReasonInvalidDate, "a valid appointment date is required")
	}
	if req.Date.Before(today) {
		return rejectf(ReasonInvalidDate, "appointment date %s is in the past", req.Date)
	}
	if req.Date.Equal(today) && req.Start <= nowMinute {
		return rejectf(ReasonInvalidDate, "appointment time %s has already passed today", req.Start)
	}

	for _, a := range st.PatientWeek {
		if a.ID == req.ExcludeAppointmentID {
			continue
		}
		if a.ServiceID == req.ServiceID && a.Date.Equal(req.Date) && a.Start == req.Start {
			return rejectf(ReasonDuplicateBooking,
				"an identical booking already exists for %s at %s", a.Date, a.Start)
		}
	}

	reqIv := req.Interval()

	for _, a := range st.DentistDay {
		if a.ID == req.ExcludeAppointmentID || a.ClinicID == req.ClinicID {
			continue
		}
		if a.Interval().Overlaps(reqIv) {
			return rejectf(ReasonDentistConflict,
				"dentist is booked at another clinic (%s) from %s to %s",
				a.ClinicID, a.Start, a.Interval().End)
		}
	}

	for _, a := range st.PatientWeek {
		if a.ID == req.ExcludeAppointmentID {
			continue
		}
		if SameISOWeek(a.Date, req.Date) {
			return rejectf(ReasonWeeklyLimitExceeded,
				"patient already has an appointment on %s in the same week", a.Date)
		}
	}

	for _, a := range st.PatientPending {
		if a.ID == req.ExcludeAppointmentID {
			continue
		}
		return rejectf(ReasonPendingRequestLock,
			"patient has an unresolved %s request on appointment %s", a.Status, a.ID)
	}

	for _, a := range st.DentistDay {
		if a.ID == req.ExcludeAppointmentID || a.ClinicID != req.ClinicID {
			continue
		}
		if a.Interval().Overlaps(reqIv) {
			return rejectf(ReasonSlotUnavailable,
				"the %s slot on %s is no longer available", req.Start, req.Date)
		}
	}

	return nil
}
