// Package repository declares the storage interfaces the service layer
// depends on. Services receive these interfaces, never a concrete driver —
// tests substitute in-memory fakes, and the SQLite implementation lives in
// the sqlite subpackage.
package repository

import (
	"context"
	"time"

	"github.com/karim/bloghub/internal/model"
)

// ListOptions carries pagination and ordering for list queries.
//
// SortBy is a caller-chosen key ("created_at", "updated_at", "title").
// Implementations MUST translate it through a fixed allow-list — it is never
// interpolated into SQL text, because ORDER BY targets cannot be bound as
// parameters.
type ListOptions struct {
	Limit  int
	Offset int
	SortBy string
}

// PostFilter describes a post search. Zero values mean "no constraint".
// Keyword matches title or content; Tags match any listed tag.
type PostFilter struct {
	Keyword       string
	Tags          []string
	AuthorID      int64
	PublishedOnly bool
}

// Stats are the aggregate counts exposed by the stats endpoint.
type Stats struct {
	Users    int64 `json:"users"`
	Posts    int64 `json:"posts"`
	Comments int64 `json:"comments"`
}

type UserRepository interface {
	// Create inserts a new user and fills in ID and CreatedAt.
	// Duplicate username or email yields apperror.ErrConflict.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// List returns users, optionally filtered by role ("admin" or "user" —
	// translated through an allow-list, never interpolated).
	List(ctx context.Context, role string, opts ListOptions) ([]model.User, error)
	// IsAdmin reads the current admin flag. Used by the session layer to
	// re-check privilege on every admin request.
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	// SetAdmin flips the admin flag inside a transaction that first
	// confirms the row exists, so concurrent writers can't lose updates.
	SetAdmin(ctx context.Context, userID int64, admin bool) error
	SetActive(ctx context.Context, userID int64, active bool) error
	// SetResetToken stores a reset token and its expiry on the user with
	// the given email, replacing any outstanding token.
	SetResetToken(ctx context.Context, email, token string, expires time.Time) error
	// ConsumeResetToken atomically verifies (email, token, unexpired) and,
	// in the same statement, writes the new password hash and clears the
	// token. Unknown, expired, or already-consumed tokens yield
	// apperror.ErrAuthentication. There is no window in which the old
	// token and the new password coexist.
	ConsumeResetToken(ctx context.Context, email, token, newHash string, now time.Time) error
}

type PostRepository interface {
	// Create inserts a post and fills in ID, CreatedAt, UpdatedAt.
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	GetBySlug(ctx context.Context, slug string) (*model.Post, error)
	// List returns published posts only.
	List(ctx context.Context, opts ListOptions) ([]model.Post, error)
	// Search applies the filter with bound parameters throughout.
	Search(ctx context.Context, filter PostFilter, opts ListOptions) ([]model.Post, error)
	Update(ctx context.Context, post *model.Post) error
}

type CommentRepository interface {
	// Create inserts a comment and fills in ID and CreatedAt. A missing
	// parent post yields apperror.ErrNotFound.
	Create(ctx context.Context, comment *model.Comment) error
	ListForPost(ctx context.Context, postID int64) ([]model.Comment, error)
}

type StatsRepository interface {
	Counts(ctx context.Context) (Stats, error)
}
