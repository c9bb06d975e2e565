package types

// Device-facing protocol.

const (
	// DeviceActionWait tells the device to show a rejection and do nothing.
	DeviceActionWait = "wait"
	// DeviceActionPoll tells the device to poll the returned action id
	// until it observes approved or denied.
	DeviceActionPoll = "poll"
)

type ScanRequest struct {
	Token  string `json:"token"`
	CardID string `json:"card_id"`
}

type ScanResponse struct {
	Action  string `json:"action"`
	PollID  int64  `json:"poll_id,omitempty"`
	Message string `json:"message"`
}

type StatusResponse struct {
	Status ActionStatus `json:"status"`
}

// Operator-facing protocol.

// PendingView is the enriched claim-for-display result shown on the
// operator dashboard. Fields are populated per action kind: entry actions
// carry cached card display fields, exit actions carry the precomputed
// fee context, alerts carry only a message.
type PendingView struct {
	PollID        int64      `json:"poll_id,omitempty"`
	Kind          ActionKind `json:"action_type"`
	CardID        string     `json:"card_id"`
	Message       string     `json:"message,omitempty"`
	HolderName    string     `json:"holder_name,omitempty"`
	LicensePlate  string     `json:"license_plate,omitempty"`
	TicketKind    TicketKind `json:"ticket_type,omitempty"`
	EntryTime     string     `json:"entry_time,omitempty"`
	ExitTime      string     `json:"exit_time,omitempty"`
	TransactionID int64      `json:"transaction_id,omitempty"`
	Duration      string     `json:"duration,omitempty"`
	Fee           int64      `json:"fee"`
	EntrySnapshot string     `json:"entry_snapshot,omitempty"`
}

type ConfirmEntryRequest struct {
	PollID       int64  `json:"poll_id"`
	CardID       string `json:"card_id"`
	LicensePlate string `json:"license_plate"`
}

type ConfirmExitRequest struct {
	PollID        int64 `json:"poll_id"`
	TransactionID int64 `json:"transaction_id"`
	Fee           int64 `json:"fee"`
}

type CancelRequest struct {
	PollID int64 `json:"poll_id"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Role     Role   `json:"role"`
	FullName string `json:"full_name"`
}

// Admin-facing protocol.

type CreateCardRequest struct {
	CardID       string     `json:"card_id"`
	HolderName   string     `json:"holder_name"`
	LicensePlate string     `json:"license_plate"`
	TicketKind   TicketKind `json:"ticket_type"`
}

type RenewCardRequest struct {
	Months int `json:"months"`
}
