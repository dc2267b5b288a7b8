package booking

import "time"

type Status string

const (
	StatusPending             Status = "pending"
	StatusConfirmed           Status = "confirmed"
	StatusWaiting             Status = "waiting"
	StatusRescheduleRequested Status = "reschedule_requested"
	StatusCancelRequested     Status = "cancel_requested"
	StatusCompleted           Status = "completed"
	StatusMissed              Status = "missed"
	StatusCancelled           Status = "cancelled"
	StatusRejected            Status = "rejected"
)

// AllStatuses lists every lifecycle state, for exhaustive checks.
var AllStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusWaiting,
	StatusRescheduleRequested,
	StatusCancelRequested,
	StatusCompleted,
	StatusMissed,
	StatusCancelled,
	StatusRejected,
}

// ActiveStatuses are the non-terminal states that participate in
// conflict checks and hold slot capacity.
var ActiveStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusWaiting,
	StatusRescheduleRequested,
	StatusCancelRequested,
}

// SweepableStatuses are the states the missed-appointment sweeper may
// move to missed once the scheduled end plus grace has elapsed.
var SweepableStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusWaiting,
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusMissed, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// transitions is the full lifecycle state machine. The sweeper edges
// (pending/waiting -> missed) cover appointments abandoned before
// approval or after check-in.
var transitions = map[Status][]Status{
	StatusPending:             {StatusConfirmed, StatusRejected, StatusCancelled, StatusMissed},
	StatusConfirmed:           {StatusWaiting, StatusRescheduleRequested, StatusCancelRequested, StatusMissed, StatusCompleted},
	StatusWaiting:             {StatusCompleted, StatusMissed},
	StatusRescheduleRequested: {StatusConfirmed},
	StatusCancelRequested:     {StatusCancelled, StatusConfirmed},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition applies from -> to on the appointment, stamping
// UpdatedAt and, exactly once, CompletedAt. It rejects illegal edges
// with an IllegalStateTransition rejection naming both states.
func Transition(a *Appointment, to Status, now time.Time) error {
	if !CanTransition(a.Status, to) {
		return rejectf(ReasonIllegalTransition, "cannot transition appointment from %s to %s", a.Status, to)
	}
	a.Status = to
	a.UpdatedAt = now
	if to == StatusCompleted && a.CompletedAt == nil {
		t := now
		a.CompletedAt = &t
	}
	return nil
}
