package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/karim/bloghub/internal/apperror"
	"github.com/karim/bloghub/internal/model"
	"github.com/karim/bloghub/internal/repository"
)

// CommentRepo implements repository.CommentRepository on SQLite.
type CommentRepo struct {
	db *DB
}

var _ repository.CommentRepository = (*CommentRepo)(nil)

// Create inserts the comment and fills in ID and CreatedAt. The foreign keys
// on post_id and user_id guarantee a comment always references an existing
// post and user; a violation maps to ErrNotFound, not a storage failure,
// because it means the caller referenced something that isn't there.
func (r *CommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	comment.CreatedAt = time.Now().UTC()

	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO comments (post_id, user_id, content, is_approved, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			comment.PostID, comment.UserID, comment.Content, comment.IsApproved, comment.CreatedAt,
		)
		if err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
				return apperror.NotFound("post", comment.PostID)
			}
			return apperror.Storage("inserting comment", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return apperror.Storage("reading inserted comment id", err)
		}
		comment.ID = id
		return nil
	})
}

// ListForPost returns a post's comments, oldest first, with the author's
// username joined in for display.
func (r *CommentRepo) ListForPost(ctx context.Context, postID int64) ([]model.Comment, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT c.id, c.post_id, c.user_id, c.content, c.is_approved, c.created_at, u.username
		   FROM comments c
		   JOIN users u ON u.id = c.user_id
		  WHERE c.post_id = ?
		  ORDER BY c.created_at ASC`,
		postID,
	)
	if err != nil {
		return nil, apperror.Storage("listing comments", err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(
			&c.ID, &c.PostID, &c.UserID, &c.Content,
			&c.IsApproved, &c.CreatedAt, &c.AuthorName,
		); err != nil {
			return nil, apperror.Storage("scanning comment row", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("iterating comment rows", err)
	}
	return comments, nil
}

// Counts returns the aggregate user/post/comment counts for the stats
// endpoint. Hung off CommentRepo's DB handle via a standalone method on DB
// so no repo owns it artificially.
func (db *DB) Counts(ctx context.Context) (repository.Stats, error) {
	var s repository.Stats
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM posts),
			(SELECT COUNT(*) FROM comments)`,
	).Scan(&s.Users, &s.Posts, &s.Comments)
	if err != nil {
		return repository.Stats{}, apperror.Storage("counting rows", err)
	}
	return s, nil
}

var _ repository.StatsRepository = (*DB)(nil)
