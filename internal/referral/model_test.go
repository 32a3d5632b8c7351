package referral

import "testing"

func TestStatusNormalize(t *testing.T) {
	if got := StatusConfirmed.Normalize(); got != StatusPaid {
		t.Errorf("expected confirmed to normalize to paid, got %s", got)
	}
	if got := StatusPendingAdmin.Normalize(); got != StatusPendingAdmin {
		t.Errorf("expected pending-admin to normalize to itself, got %s", got)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPendingAdmin, StatusAwaitingBiodata, true},
		{StatusPendingAdmin, StatusPendingPayment, true},
		{StatusAwaitingBiodata, StatusPendingPayment, true},
		{StatusPendingPayment, StatusPaid, true},
		{StatusPaid, StatusCompleted, true},

		// legacy alias behaves exactly like paid
		{StatusPendingPayment, StatusConfirmed, true},
		{StatusConfirmed, StatusCompleted, true},

		// cancellation from any non-terminal state
		{StatusPendingAdmin, StatusCancelled, true},
		{StatusPendingPayment, StatusCancelled, true},
		{StatusPaid, StatusCancelled, true},

		// no skipping or moving backwards
		{StatusPendingAdmin, StatusPaid, false},
		{StatusPaid, StatusPendingPayment, false},
		{StatusPendingPayment, StatusCompleted, false},

		// terminal states are final
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPendingAdmin, false},
		{StatusCancelled, StatusCancelled, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []Status{StatusPendingAdmin, StatusAwaitingBiodata, StatusPendingPayment, StatusPaid, StatusConfirmed} {
		if s.Terminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
	}
}
