package models

// Plan describes how a user's consumption is bounded.
type Plan string

const (
	PlanUnlimited Plan = "unlimited"
	PlanLimited   Plan = "limited"
)

// User is a roster entry keyed by RFID tag.
type User struct {
	IDTag     string
	FirstName string
	Surname   string
	Plan      Plan
	// QuotaKWh is nil for unlimited users and for limited users without a configured quota.
	QuotaKWh *float64
}

// FullName joins first name and surname the way receipts and telemetry show them.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.Surname
	case u.Surname == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.Surname
	}
}

// UserInfo is the computed quota view of a user.
type UserInfo struct {
	IDTag    string   `json:"id_tag"`
	FullName string   `json:"full_name"`
	Plan     Plan     `json:"plan"`
	QuotaKWh *float64 `json:"quota_kwh,omitempty"`
	UsedKWh  float64  `json:"used_kwh"`
	// RemainingKWh is nil for unlimited users.
	RemainingKWh *float64 `json:"remaining_kwh,omitempty"`
}
