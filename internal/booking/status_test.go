package booking

import (
	"testing"
	"time"
)

// legalEdges mirrors the full lifecycle table so the closure test has
// an independent statement of which of the 81 pairs are allowed.
var legalEdges = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true, StatusRejected: true, StatusCancelled: true, StatusMissed: true,
	},
	StatusConfirmed: {
		StatusWaiting: true, StatusRescheduleRequested: true, StatusCancelRequested: true,
		StatusMissed: true, StatusCompleted: true,
	},
	StatusWaiting: {
		StatusCompleted: true, StatusMissed: true,
	},
	StatusRescheduleRequested: {
		StatusConfirmed: true,
	},
	StatusCancelRequested: {
		StatusCancelled: true, StatusConfirmed: true,
	},
}

func TestCanTransitionClosure(t *testing.T) {
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := legalEdges[from][to]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	for _, from := range AllStatuses {
		if !from.Terminal() {
			continue
		}
		for _, to := range AllStatuses {
			if CanTransition(from, to) {
				t.Errorf("terminal status %s must not transition to %s", from, to)
			}
		}
	}
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	a := &Appointment{Status: StatusCompleted}
	err := Transition(a, StatusConfirmed, time.Now())
	rej, ok := AsRejection(err)
	if !ok {
		t.Fatalf("expected a rejection, got %v", err)
	}
	if rej.Reason != ReasonIllegalTransition {
		t.Errorf("reason = %s, want %s", rej.Reason, ReasonIllegalTransition)
	}
	if a.Status != StatusCompleted {
		t.Errorf("status changed on a rejected transition: %s", a.Status)
	}
}

func TestTransitionStampsCompletedAtOnce(t *testing.T) {
	first := time.Date(2026, time.February, 5, 11, 0, 0, 0, time.UTC)
	a := &Appointment{Status: StatusWaiting}

	if err := Transition(a, StatusCompleted, first); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if a.CompletedAt == nil || !a.CompletedAt.Equal(first) {
		t.Fatalf("CompletedAt = %v, want %v", a.CompletedAt, first)
	}
	if !a.UpdatedAt.Equal(first) {
		t.Errorf("UpdatedAt = %v, want %v", a.UpdatedAt, first)
	}

	// A second completion attempt is rejected and the stamp survives.
	err := Transition(a, StatusCompleted, first.Add(time.Hour))
	if _, ok := AsRejection(err); !ok {
		t.Fatalf("expected a rejection on repeat completion, got %v", err)
	}
	if !a.CompletedAt.Equal(first) {
		t.Errorf("CompletedAt moved on a rejected repeat: %v", a.CompletedAt)
	}
}

func TestRetryableReasons(t *testing.T) {
	for _, reason := range []RejectReason{
		ReasonInvalidDate, ReasonDuplicateBooking, ReasonDentistConflict,
		ReasonWeeklyLimitExceeded, ReasonPendingRequestLock, ReasonSlotUnavailable,
		ReasonIllegalTransition, ReasonNotFound,
	} {
		if (&Rejection{Reason: reason}).Retryable() {
			t.Errorf("%s must not be retryable", reason)
		}
	}
	if !(&Rejection{Reason: ReasonConcurrencyConflict}).Retryable() {
		t.Errorf("%s must be retryable", ReasonConcurrencyConflict)
	}
}
