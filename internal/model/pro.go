package model

import "time"

// Pro request statuses. Only a pending request can be decided.
const (
	ProRequestPending  = "pending"
	ProRequestApproved = "approved"
	ProRequestRejected = "rejected"
)

// ProRequest is a student's request to be upgraded to a Pro account.
// Approving it sets User.IsPro.
type ProRequest struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	User      *Author    `json:"user,omitempty"`
	Message   *string    `json:"message"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	DecidedAt *time.Time `json:"decidedAt"`
}
