package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/APC-SoCIT/APC-2025-2026-T1-SS231-G07-DDC-Management-System-sub003/internal/booking"
)

type CreateBookingRequest struct {
	PatientID string `json:"patient_id"`
	DentistID string `json:"dentist_id"`
	ClinicID  string `json:"clinic_id"`
	ServiceID string `json:"service_id"`
	Date      string `json:"date"` // YYYY-MM-DD, clinic-local
	Time      string `json:"time"` // HH:MM, clinic-local
}

type RescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	DentistID       uuid.UUID  `json:"dentist_id"`
	ClinicID        uuid.UUID  `json:"clinic_id"`
	ServiceID       uuid.UUID  `json:"service_id"`
	Date            string     `json:"date"`
	Time            string     `json:"time"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	Note            string     `json:"note,omitempty"`
	RequestedDate   *string    `json:"requested_date,omitempty"`
	RequestedTime   *string    `json:"requested_time,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

func newAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DentistID:       a.DentistID,
		ClinicID:        a.ClinicID,
		ServiceID:       a.ServiceID,
		Date:            a.Date.String(),
		Time:            a.Start.String(),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Note:            a.Note,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
		CompletedAt:     a.CompletedAt,
	}
	if a.RequestedDate != nil {
		d := a.RequestedDate.String()
		resp.RequestedDate = &d
	}
	if a.RequestedStart != nil {
		t := a.RequestedStart.String()
		resp.RequestedTime = &t
	}
	return resp
}

type SlotsResponse struct {
	DentistID uuid.UUID `json:"dentist_id"`
	ClinicID  uuid.UUID `json:"clinic_id"`
	ServiceID uuid.UUID `json:"service_id"`
	Date      string    `json:"date"`
	Slots     []string  `json:"slots"`
}

type SweepResponse struct {
	Transitioned int `json:"transitioned"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}
