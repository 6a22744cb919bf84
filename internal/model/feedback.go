package model

import "time"

// SupportMessage is a question or suggestion sent by a logged-in user.
type SupportMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	User      *Author   `json:"user,omitempty"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// BugReport may be filed anonymously, so UserID is optional.
type BugReport struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Priority     string    `json:"priority"`
	Status       string    `json:"status"`
	ReporterName *string   `json:"reporterName"`
	UserID       *string   `json:"userId"`
	User         *Author   `json:"user,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Setting is one key/value pair of site configuration (logo, site name, ...).
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}
