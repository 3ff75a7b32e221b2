package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/karim/bloghub/internal/apperror"
	"github.com/karim/bloghub/internal/model"
	"github.com/karim/bloghub/internal/repository"
)

// UserRepo implements repository.UserRepository on SQLite.
type UserRepo struct {
	db *DB
}

var _ repository.UserRepository = (*UserRepo)(nil)

const userColumns = `id, username, email, password_hash, is_admin, is_active, created_at, reset_token, reset_token_expires`

// Create inserts the user and fills in ID and CreatedAt. Uniqueness of
// username and email is enforced by the schema; violations surface as
// apperror.ErrConflict, never as a silently ignored insert.
func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	user.CreatedAt = time.Now().UTC()
	user.IsActive = true

	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, email, password_hash, is_admin, is_active, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			user.Username, user.Email, user.PasswordHash, user.IsAdmin, user.IsActive, user.CreatedAt,
		)
		if err != nil {
			if conflict := conflictError(err, "user", "users.username", "users.email"); conflict != nil {
				return conflict
			}
			return apperror.Storage("inserting user", err)
		}

		// LastInsertId is only meaningful right here, inside the insert's
		// own transaction.
		id, err := res.LastInsertId()
		if err != nil {
			return apperror.Storage("reading inserted user id", err)
		}
		user.ID = id
		return nil
	})
}

// GetByID retrieves a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByUsername retrieves a user by their unique username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// GetByEmail retrieves a user by their unique email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	u, err := scanUser(r.db.conn.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", arg)
		}
		return nil, apperror.Storage("querying user", err)
	}
	return u, nil
}

// List returns users, optionally filtered by role. The role value is a
// caller-chosen label, so it goes through a fixed translation to a bound
// predicate value — "admin" and "user" are the only labels recognized, and
// anything else is a validation error rather than query input.
func (r *UserRepo) List(ctx context.Context, role string, opts repository.ListOptions) ([]model.User, error) {
	opts = clampList(opts)

	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}

	switch role {
	case "":
		// no filter
	case "admin":
		query += ` WHERE is_admin = ?`
		args = append(args, 1)
	case "user":
		query += ` WHERE is_admin = ?`
		args = append(args, 0)
	default:
		return nil, apperror.ValidationFailed("role", "role must be \"admin\" or \"user\"")
	}

	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Storage("listing users", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperror.Storage("scanning user row", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("iterating user rows", err)
	}
	return users, nil
}

// IsAdmin reads the admin flag for the user. The session layer calls this on
// every privileged request instead of trusting a flag cached at login.
func (r *UserRepo) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var isAdmin bool
	err := r.db.conn.QueryRowContext(ctx,
		`SELECT is_admin FROM users WHERE id = ? AND is_active = 1`, userID,
	).Scan(&isAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Unknown or deactivated user holds no privileges.
			return false, nil
		}
		return false, apperror.Storage("checking admin flag", err)
	}
	return isAdmin, nil
}

// SetAdmin flips the admin flag. The existence check and the update share a
// transaction, so a concurrent promote/demote on the same row serializes
// cleanly — the flag always reflects the last committed write.
func (r *UserRepo) SetAdmin(ctx context.Context, userID int64, admin bool) error {
	return r.setFlag(ctx, userID, "promoting user", `UPDATE users SET is_admin = ? WHERE id = ?`, admin)
}

// SetActive soft-activates or deactivates the account. Users are never
// hard-deleted.
func (r *UserRepo) SetActive(ctx context.Context, userID int64, active bool) error {
	return r.setFlag(ctx, userID, "deactivating user", `UPDATE users SET is_active = ? WHERE id = ?`, active)
}

func (r *UserRepo) setFlag(ctx context.Context, userID int64, op, stmt string, value bool) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, stmt, value, userID)
		if err != nil {
			return apperror.Storage(op, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return apperror.Storage(op, err)
		}
		if affected == 0 {
			return apperror.NotFound("user", userID)
		}
		return nil
	})
}

// SetResetToken stores a reset token and expiry on the user with the given
// email, replacing any outstanding token (at most one is live per user).
// Returns ErrNotFound for an unknown email — the service layer decides what
// the caller gets to see.
func (r *UserRepo) SetResetToken(ctx context.Context, email, token string, expires time.Time) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET reset_token = ?, reset_token_expires = ? WHERE email = ? AND is_active = 1`,
			token, expires.UTC(), email,
		)
		if err != nil {
			return apperror.Storage("storing reset token", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return apperror.Storage("storing reset token", err)
		}
		if affected == 0 {
			return apperror.NotFound("user", email)
		}
		return nil
	})
}

// ConsumeResetToken redeems a token: one UPDATE whose WHERE clause checks
// email, token, and expiry, and whose SET writes the new hash and clears
// the token. Because verification, password write, and token clear are a
// single statement, a token can be redeemed at most once — two concurrent
// redeemers race for one row-match, and the loser affects zero rows.
func (r *UserRepo) ConsumeResetToken(ctx context.Context, email, token, newHash string, now time.Time) error {
	if token == "" {
		// An empty token would match users who have no outstanding reset
		// request if reset_token were ever the empty string. Reject early.
		return apperror.InvalidCredentials()
	}

	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users
			    SET password_hash = ?, reset_token = NULL, reset_token_expires = NULL
			  WHERE email = ?
			    AND reset_token = ?
			    AND reset_token_expires > ?
			    AND is_active = 1`,
			newHash, email, token, now.UTC(),
		)
		if err != nil {
			return apperror.Storage("consuming reset token", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return apperror.Storage("consuming reset token", err)
		}
		if affected == 0 {
			// Unknown, expired, or already consumed — indistinguishable to
			// the caller on purpose.
			return apperror.InvalidCredentials()
		}
		return nil
	})
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var (
		u       model.User
		token   sql.NullString
		expires sql.NullTime
	)
	err := s.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.IsAdmin, &u.IsActive, &u.CreatedAt, &token, &expires,
	)
	if err != nil {
		return nil, err
	}
	if token.Valid {
		u.ResetToken = &token.String
	}
	if expires.Valid {
		t := expires.Time
		u.ResetExpires = &t
	}
	return &u, nil
}
