package auth

import (
	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/model"
)

// AUTHORIZATION GATE:
// Three pure decisions shared by every endpoint. They return nil (allowed) or
// an *apperror.AppError (denied); they never panic and never touch storage.
//
//	no user                    → Unauthorized (401): the client should log in
//	user without the privilege → Forbidden (403): logging in again won't help
//
// The 401/403 split is part of the client contract. Keep it identical everywhere.

const (
	msgLoginRequired = "Je moet ingelogd zijn"
	msgAdminOnly     = "Alleen admins hebben toegang"
	msgNotYours      = "Je hebt geen toegang tot dit item"
)

// RequireUser allows any logged-in user.
func RequireUser(u *model.User) error {
	if u == nil {
		return apperror.Unauthorized(msgLoginRequired)
	}
	return nil
}

// RequireAdmin allows only admins.
func RequireAdmin(u *model.User) error {
	if u == nil {
		return apperror.Unauthorized(msgLoginRequired)
	}
	if !u.IsAdmin() {
		return apperror.Forbidden(msgAdminOnly)
	}
	return nil
}

// RequireSelfOrAdmin allows admins and the owner of a resource.
func RequireSelfOrAdmin(u *model.User, ownerID string) error {
	if u == nil {
		return apperror.Unauthorized(msgLoginRequired)
	}
	if u.IsAdmin() || (ownerID != "" && u.ID == ownerID) {
		return nil
	}
	return apperror.Forbidden(msgNotYours)
}
