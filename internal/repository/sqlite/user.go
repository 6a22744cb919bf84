package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/model"
	"github.com/edulearn/portal/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, password_hash, role, email, is_pro, created_at`

// scanUser reads one row selected with userColumns.
func scanUser(s scanner) (*model.User, error) {
	var (
		u     model.User
		role  string
		email sql.NullString
	)
	if err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &email, &u.IsPro, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	u.Email = stringPtr(email)
	return &u, nil
}

// userConflict turns a UNIQUE failure on users into the matching Conflict error.
// Both username and email are unique; the driver message names the column.
func userConflict(err error, u *model.User) error {
	if strings.Contains(err.Error(), "users.email") && u.Email != nil {
		return apperror.Conflict("Email", *u.Email)
	}
	return apperror.Conflict("Gebruikersnaam", u.Username)
}

// CreateUser inserts u, filling ID and CreatedAt.
//
// Uniqueness is enforced by the UNIQUE constraint, not by a prior SELECT: two
// concurrent registrations of the same name race on the index and exactly one
// of them wins.
func (db *DB) CreateUser(ctx context.Context, u *model.User) error {
	if u.Role == "" {
		u.Role = model.RoleStudent
	}
	u.ID = xid.New().String()
	u.CreatedAt = db.now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, email, is_pro, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, string(u.Role), nullString(u.Email), u.IsPro, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return userConflict(err, u)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", u.Username, err)
	}
	return nil
}

// GetUserByID retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Gebruiker", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername is the login lookup. Usernames are compared exactly.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Gebruiker", username)
		}
		return nil, fmt.Errorf("sqlite: getting user by username: %w", err)
	}
	return u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Gebruiker", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

func (db *DB) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`, hash, userID)
	if err != nil {
		return fmt.Errorf("sqlite: updating password of user %s: %w", userID, err)
	}
	return requireAffected(res, "Gebruiker", userID)
}

// UpdateEmail stores email on userID. A UNIQUE failure means another account
// already owns the address.
func (db *DB) UpdateEmail(ctx context.Context, userID, email string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET email = ? WHERE id = ?`, email, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("Email", email)
		}
		return fmt.Errorf("sqlite: updating email of user %s: %w", userID, err)
	}
	return requireAffected(res, "Gebruiker", userID)
}

// UpsertAdmin creates username as admin, or promotes the existing account and
// replaces its password hash. Runs in a transaction so a concurrent /setup
// cannot create the account twice.
func (db *DB) UpsertAdmin(ctx context.Context, username, hash string) (*model.User, bool, error) {
	var (
		user    *model.User
		created bool
	)

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanUser(tx.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE username = ?`, username))

		switch {
		case errors.Is(err, sql.ErrNoRows):
			u := &model.User{
				ID:           xid.New().String(),
				Username:     username,
				PasswordHash: hash,
				Role:         model.RoleAdmin,
				CreatedAt:    db.now(),
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO users (id, username, password_hash, role, is_pro, created_at)
				 VALUES (?, ?, ?, ?, 0, ?)`,
				u.ID, u.Username, u.PasswordHash, string(u.Role), u.CreatedAt,
			); err != nil {
				return fmt.Errorf("sqlite: inserting admin %q: %w", username, err)
			}
			user, created = u, true
			return nil

		case err != nil:
			return fmt.Errorf("sqlite: looking up admin %q: %w", username, err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET role = ?, password_hash = ? WHERE id = ?`,
			string(model.RoleAdmin), hash, existing.ID,
		); err != nil {
			return fmt.Errorf("sqlite: promoting admin %q: %w", username, err)
		}
		existing.Role = model.RoleAdmin
		existing.PasswordHash = hash
		user = existing
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return user, created, nil
}

// ListUsersWithCounts returns every account, newest first, with the number of
// grades and support messages each owns.
func (db *DB) ListUsersWithCounts(ctx context.Context) ([]model.UserWithCounts, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT u.id, u.username, u.role, u.email, u.is_pro, u.created_at,
		       (SELECT COUNT(*) FROM grades g WHERE g.student_id = u.id),
		       (SELECT COUNT(*) FROM support_messages s WHERE s.user_id = u.id)
		FROM users u
		ORDER BY u.created_at DESC, u.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := []model.UserWithCounts{}
	for rows.Next() {
		var (
			row   model.UserWithCounts
			role  string
			email sql.NullString
		)
		if err := rows.Scan(
			&row.ID, &row.Username, &role, &email, &row.IsPro, &row.CreatedAt,
			&row.Count.Grades, &row.Count.SupportMessages,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		row.Role = model.Role(role)
		row.IsAdmin = row.Role == model.RoleAdmin
		row.Email = stringPtr(email)
		users = append(users, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// requireAffected converts "zero rows changed" into a NotFound error.
func requireAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading affected rows: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
