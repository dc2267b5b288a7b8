package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/APC-SoCIT/APC-2025-2026-T1-SS231-G07-DDC-Management-System-sub003/internal/redis"
)

// memStore is an in-memory Store for service-level tests. Repository
// methods copy on the way in and out so tests never alias stored rows,
// and WithDentistDay serializes critical sections on a single mutex,
// which is the property the production advisory lock provides.
type memStore struct {
	mu    sync.Mutex
	dayMu sync.Mutex

	patients map[uuid.UUID]Patient
	dentists map[uuid.UUID]Dentist
	clinics  map[uuid.UUID]Clinic
	policies map[uuid.UUID]ServicePolicy
	appts    map[uuid.UUID]Appointment
	windows  []AvailabilityWindow
	blocks   []BlockedSlot
	events   []AppointmentEvent
}

func newMemStore() *memStore {
	return &memStore{
		patients: make(map[uuid.UUID]Patient),
		dentists: make(map[uuid.UUID]Dentist),
		clinics:  make(map[uuid.UUID]Clinic),
		policies: make(map[uuid.UUID]ServicePolicy),
		appts:    make(map[uuid.UUID]Appointment),
	}
}

func (m *memStore) WithDentistDay(ctx context.Context, _ uuid.UUID, _ Date, fn func(ctx context.Context, r Repository) error) error {
	m.dayMu.Lock()
	defer m.dayMu.Unlock()
	return fn(ctx, m)
}

func (m *memStore) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *memStore) GetDentistByID(_ context.Context, id uuid.UUID) (*Dentist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dentists[id]
	if !ok {
		return nil, ErrDentistNotFound
	}
	return &d, nil
}

func (m *memStore) GetClinicByID(_ context.Context, id uuid.UUID) (*Clinic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clinics[id]
	if !ok {
		return nil, ErrClinicNotFound
	}
	return &c, nil
}

func (m *memStore) GetServicePolicy(_ context.Context, id uuid.UUID) (*ServicePolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	return &p, nil
}

func (m *memStore) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *memStore) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListActiveByDentistOnDate(_ context.Context, dentistID uuid.UUID, date Date) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.DentistID == dentistID && a.Date.Equal(date) && !a.Status.Terminal() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListActiveByPatientBetween(_ context.Context, patientID uuid.UUID, from, to Date) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.PatientID != patientID || a.Status.Terminal() {
			continue
		}
		if a.Date.Before(from) || a.Date.After(to) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) ListPendingRequestsByPatient(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.PatientID != patientID {
			continue
		}
		if a.Status == StatusRescheduleRequested || a.Status == StatusCancelRequested {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListAvailabilityWindows(_ context.Context, dentistID, clinicID uuid.UUID, date Date) ([]AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AvailabilityWindow
	for _, w := range m.windows {
		if w.DentistID == dentistID && w.ClinicID == clinicID && w.AppliesTo(date) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memStore) ListBlockedSlots(_ context.Context, dentistID, clinicID uuid.UUID, date Date) ([]BlockedSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []BlockedSlot
	for _, b := range m.blocks {
		if b.DentistID == dentistID && b.ClinicID == clinicID && b.Date.Equal(date) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) InsertAppointment(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appts[a.ID] = *a
	return nil
}

func (m *memStore) UpdateAppointment(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[a.ID]; !ok {
		return ErrAppointmentNotFound
	}
	m.appts[a.ID] = *a
	return nil
}

func (m *memStore) UpdateStatusFrom(_ context.Context, id uuid.UUID, from, to Status, date Date, start TimeOfDay, now time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.Status != from || !a.Date.Equal(date) || a.Start != start {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = now
	m.appts[id] = a
	return &a, nil
}

func (m *memStore) ListOverdue(_ context.Context, today Date, nowMinute TimeOfDay, graceMinutes int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sweepable := func(s Status) bool {
		for _, st := range SweepableStatuses {
			if st == s {
				return true
			}
		}
		return false
	}
	var out []Appointment
	for _, a := range m.appts {
		if !sweepable(a.Status) {
			continue
		}
		endPlusGrace := today.DaysUntil(a.Date)*1440 + int(a.Start) + a.DurationMinutes + graceMinutes
		if endPlusGrace < int(nowMinute) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) InsertEvent(_ context.Context, ev AppointmentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

// fakeLocker serializes callers the way the Redis day lock does,
// without a Redis.
type fakeLocker struct{ mu sync.Mutex }

func (l *fakeLocker) WithDentistDay(ctx context.Context, _ uuid.UUID, _ string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

// starvedLocker refuses every acquisition.
type starvedLocker struct{}

func (starvedLocker) WithDentistDay(context.Context, uuid.UUID, string, func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}
