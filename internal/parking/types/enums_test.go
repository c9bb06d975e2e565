package types

import "testing"

func TestValid(t *testing.T) {
	if !TicketDaily.Valid() || !TicketMonthly.Valid() || TicketKind("weekly").Valid() {
		t.Fatal("TicketKind validity")
	}
	if !CardActive.Valid() || !CardLost.Valid() || CardStatus("stolen").Valid() {
		t.Fatal("CardStatus validity")
	}
	if !RoleSecurity.Valid() || !RoleAdmin.Valid() || Role("root").Valid() {
		t.Fatal("Role validity")
	}
}

func TestActionStatusPredicates(t *testing.T) {
	for _, st := range []ActionStatus{StatusAlertUnregistered, StatusAlertLost} {
		if !st.IsAlert() {
			t.Fatalf("%q must be an alert", st)
		}
		if st.Resolved() {
			t.Fatalf("%q must not be resolved", st)
		}
	}
	for _, st := range []ActionStatus{StatusApproved, StatusDenied} {
		if !st.Resolved() {
			t.Fatalf("%q must be resolved", st)
		}
		if st.IsAlert() {
			t.Fatalf("%q must not be an alert", st)
		}
	}
	for _, st := range []ActionStatus{StatusPending, StatusProcessing} {
		if st.Resolved() || st.IsAlert() {
			t.Fatalf("%q must be neither resolved nor an alert", st)
		}
	}
}
