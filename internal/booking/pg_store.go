package booking

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgDB is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so
// the same query methods serve both pool-scoped and tx-scoped stores.
type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgStore struct {
	db   pgDB
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{db: pool, pool: pool}
}

// newPgStoreWithDB allows injecting a mock connection in tests.
func newPgStoreWithDB(db pgDB) *PgStore {
	return &PgStore{db: db}
}

// WithDentistDay runs fn in a transaction holding an exclusive
// advisory lock derived from (dentist, date). Concurrent writers to
// the same dentist-day serialize here even if the Redis lock expires
// mid-flight; reads fn performs see only committed state.
func (s *PgStore) WithDentistDay(ctx context.Context, dentistID uuid.UUID, date Date, fn func(ctx context.Context, r Repository) error) error {
	if s.pool == nil {
		return errors.New("pg store has no pool, cannot open transaction")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin dentist day tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, dentistDayKey(dentistID, date)); err != nil {
		return fmt.Errorf("acquire dentist day advisory lock: %w", err)
	}

	if err := fn(ctx, &PgStore{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit dentist day tx: %w", err)
	}
	return nil
}

func dentistDayKey(dentistID uuid.UUID, date Date) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(dentistID.String()))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(date.String()))
	return int64(h.Sum64())
}

// Helpers

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func pgDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func datePG(d Date) time.Time {
	return d.midnightUTC()
}

const appointmentColumns = `
	id, patient_id, dentist_id, clinic_id, service_id,
	date, start_minute, duration_minutes, status, note,
	requested_date, requested_start_minute,
	created_at, updated_at, completed_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a              Appointment
		date           time.Time
		start          int
		status         string
		requestedDate  *time.Time
		requestedStart *int
	)
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DentistID,
		&a.ClinicID,
		&a.ServiceID,
		&date,
		&start,
		&a.DurationMinutes,
		&status,
		&a.Note,
		&requestedDate,
		&requestedStart,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a.Date = pgDate(date)
	a.Start = TimeOfDay(start)
	a.Status = Status(status)
	if requestedDate != nil {
		d := pgDate(*requestedDate)
		a.RequestedDate = &d
	}
	if requestedStart != nil {
		t := TimeOfDay(*requestedStart)
		a.RequestedStart = &t
	}
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanDentist(row pgx.Row) (*Dentist, error) {
	var d Dentist
	err := row.Scan(&d.ID, &d.Name, &d.Specialty, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDentistNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	err := row.Scan(&c.ID, &c.Name, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Interface methods

func (s *PgStore) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (s *PgStore) GetDentistByID(ctx context.Context, id uuid.UUID) (*Dentist, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM dentists
		WHERE id = $1
	`, id)
	return scanDentist(row)
}

func (s *PgStore) GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, address, created_at, updated_at
		FROM clinics
		WHERE id = $1
	`, id)
	return scanClinic(row)
}

func (s *PgStore) GetServicePolicy(ctx context.Context, id uuid.UUID) (*ServicePolicy, error) {
	var p ServicePolicy
	err := s.db.QueryRow(ctx, `
		SELECT id, name, duration_minutes, auto_confirm, allow_immediate_reschedule
		FROM services
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.DurationMinutes, &p.AutoConfirm, &p.AllowImmediateReschedule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *PgStore) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (s *PgStore) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date DESC, start_minute DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (s *PgStore) ListActiveByDentistOnDate(ctx context.Context, dentistID uuid.UUID, date Date) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE dentist_id = $1
		  AND date = $2
		  AND status = ANY($3)
		ORDER BY start_minute
	`, dentistID, datePG(date), statusStrings(ActiveStatuses))
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (s *PgStore) ListActiveByPatientBetween(ctx context.Context, patientID uuid.UUID, from, to Date) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		  AND date BETWEEN $2 AND $3
		  AND status = ANY($4)
		ORDER BY date, start_minute
	`, patientID, datePG(from), datePG(to), statusStrings(ActiveStatuses))
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (s *PgStore) ListPendingRequestsByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		  AND status = ANY($2)
		ORDER BY date, start_minute
	`, patientID, []string{string(StatusRescheduleRequested), string(StatusCancelRequested)})
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (s *PgStore) ListAvailabilityWindows(ctx context.Context, dentistID, clinicID uuid.UUID, date Date) ([]AvailabilityWindow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, dentist_id, clinic_id, weekday, date, start_minute, end_minute
		FROM availability_windows
		WHERE dentist_id = $1
		  AND clinic_id = $2
		  AND (date = $3 OR (date IS NULL AND weekday = $4))
		ORDER BY start_minute
	`, dentistID, clinicID, datePG(date), int(date.Weekday()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailabilityWindow
	for rows.Next() {
		var (
			w       AvailabilityWindow
			weekday *int
			d       *time.Time
			start   int
			end     int
		)
		if err := rows.Scan(&w.ID, &w.DentistID, &w.ClinicID, &weekday, &d, &start, &end); err != nil {
			return nil, err
		}
		if weekday != nil {
			wd := time.Weekday(*weekday)
			w.Weekday = &wd
		}
		if d != nil {
			dd := pgDate(*d)
			w.Date = &dd
		}
		w.Start = TimeOfDay(start)
		w.End = TimeOfDay(end)
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PgStore) ListBlockedSlots(ctx context.Context, dentistID, clinicID uuid.UUID, date Date) ([]BlockedSlot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, dentist_id, clinic_id, date, start_minute, end_minute, reason
		FROM blocked_slots
		WHERE dentist_id = $1
		  AND clinic_id = $2
		  AND date = $3
		ORDER BY start_minute
	`, dentistID, clinicID, datePG(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BlockedSlot
	for rows.Next() {
		var (
			b     BlockedSlot
			d     time.Time
			start int
			end   int
		)
		if err := rows.Scan(&b.ID, &b.DentistID, &b.ClinicID, &d, &start, &end, &b.Reason); err != nil {
			return nil, err
		}
		b.Date = pgDate(d)
		b.Start = TimeOfDay(start)
		b.End = TimeOfDay(end)
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PgStore) InsertAppointment(ctx context.Context, a *Appointment) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO appointments (
			id, patient_id, dentist_id, clinic_id, service_id,
			date, start_minute, duration_minutes, status, note,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		a.ID, a.PatientID, a.DentistID, a.ClinicID, a.ServiceID,
		datePG(a.Date), int(a.Start), a.DurationMinutes, string(a.Status), a.Note,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// The partial unique index caught a race the validator
			// could not see; report the final committed state.
			return rejectf(ReasonSlotUnavailable,
				"the %s slot on %s is no longer available", a.Start, a.Date)
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (s *PgStore) UpdateAppointment(ctx context.Context, a *Appointment) error {
	var requestedDate *time.Time
	if a.RequestedDate != nil {
		t := datePG(*a.RequestedDate)
		requestedDate = &t
	}
	var requestedStart *int
	if a.RequestedStart != nil {
		v := int(*a.RequestedStart)
		requestedStart = &v
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET date = $2,
		    start_minute = $3,
		    duration_minutes = $4,
		    status = $5,
		    note = $6,
		    requested_date = $7,
		    requested_start_minute = $8,
		    updated_at = $9,
		    completed_at = $10
		WHERE id = $1
	`,
		a.ID,
		datePG(a.Date), int(a.Start), a.DurationMinutes, string(a.Status), a.Note,
		requestedDate, requestedStart,
		a.UpdatedAt, a.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return rejectf(ReasonSlotUnavailable,
				"the %s slot on %s is no longer available", a.Start, a.Date)
		}
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (s *PgStore) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to Status, date Date, start TimeOfDay, now time.Time) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = $6
		WHERE id = $1
		  AND status = $3
		  AND date = $4
		  AND start_minute = $5
		RETURNING `+appointmentColumns+`
	`, id, string(to), string(from), datePG(date), int(start), now)
	return scanAppointment(row)
}

func (s *PgStore) ListOverdue(ctx context.Context, today Date, nowMinute TimeOfDay, graceMinutes int) ([]Appointment, error) {
	// date - date is whole days in Postgres, so the scheduled end plus
	// grace is compared against now as minutes on one axis. A late slot
	// whose grace runs past midnight stays out of the result until the
	// grace truly elapses.
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = ANY($1)
		  AND (date - $2::date) * 1440 + start_minute + duration_minutes + $3 < $4
		ORDER BY date, start_minute
	`, statusStrings(SweepableStatuses), datePG(today), graceMinutes, int(nowMinute))
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (s *PgStore) InsertEvent(ctx context.Context, ev AppointmentEvent) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert appointment event: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
