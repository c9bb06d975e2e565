package types

// TicketKind distinguishes pay-per-visit cards from monthly subscriptions.
type TicketKind string

const (
	TicketDaily   TicketKind = "daily"
	TicketMonthly TicketKind = "monthly"
)

func (k TicketKind) Valid() bool {
	switch k {
	case TicketDaily, TicketMonthly:
		return true
	}
	return false
}

// CardStatus is the lifecycle status of a credential.
type CardStatus string

const (
	CardActive CardStatus = "active"
	CardLost   CardStatus = "lost"
)

func (s CardStatus) Valid() bool {
	switch s {
	case CardActive, CardLost:
		return true
	}
	return false
}

// ActionKind classifies a queued gate request.
type ActionKind string

const (
	ActionEntry ActionKind = "entry"
	ActionExit  ActionKind = "exit"
	ActionAlert ActionKind = "alert"
)

// ActionStatus is the state of a pending action.
//
// Legal transitions:
//
//	pending -> processing -> approved | denied  (then deleted on device read)
//	pending -> deleted                          (TTL sweep)
//	alert_* -> deleted                          (read once, or TTL sweep)
type ActionStatus string

const (
	StatusPending    ActionStatus = "pending"
	StatusProcessing ActionStatus = "processing"
	StatusApproved   ActionStatus = "approved"
	StatusDenied     ActionStatus = "denied"

	// Alert statuses bypass the approval flow entirely: they are one-shot
	// operator notifications, never polled by the device.
	StatusAlertUnregistered ActionStatus = "alert_unregistered"
	StatusAlertLost         ActionStatus = "alert_lost"
)

// IsAlert reports whether the status marks a fire-and-forget notification.
func (s ActionStatus) IsAlert() bool {
	return s == StatusAlertUnregistered || s == StatusAlertLost
}

// Resolved reports whether the status is a terminal operator decision.
func (s ActionStatus) Resolved() bool {
	return s == StatusApproved || s == StatusDenied
}

// Direction selects the entry or exit lane camera.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Role is an operator account role.
type Role string

const (
	RoleSecurity Role = "security"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSecurity, RoleAdmin:
		return true
	}
	return false
}

// OperatorStatus is the lifecycle status of an operator account.
type OperatorStatus string

const (
	OperatorActive OperatorStatus = "active"
	OperatorLocked OperatorStatus = "locked"
)
