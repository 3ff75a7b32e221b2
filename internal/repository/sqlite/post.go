package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/karim/bloghub/internal/apperror"
	"github.com/karim/bloghub/internal/model"
	"github.com/karim/bloghub/internal/repository"
)

// PostRepo implements repository.PostRepository on SQLite.
type PostRepo struct {
	db *DB
}

var _ repository.PostRepository = (*PostRepo)(nil)

const postColumns = `id, title, content, author_id, slug, tags, published, created_at, updated_at`

// Create inserts the post and fills in ID and timestamps.
func (r *PostRepo) Create(ctx context.Context, post *model.Post) error {
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now

	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO posts (title, content, author_id, slug, tags, published, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			post.Title, post.Content, post.AuthorID, post.Slug,
			joinTags(post.Tags), post.Published, post.CreatedAt, post.UpdatedAt,
		)
		if err != nil {
			return apperror.Storage("inserting post", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return apperror.Storage("reading inserted post id", err)
		}
		post.ID = id
		return nil
	})
}

// GetByID retrieves a post by primary key.
func (r *PostRepo) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	return r.getOne(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
}

// GetBySlug retrieves the most recent post with the given slug. Slugs are
// derived from titles and only unique-enough — on a collision the newest
// post wins, which matches how readers land on a slug URL.
func (r *PostRepo) GetBySlug(ctx context.Context, slug string) (*model.Post, error) {
	return r.getOne(ctx,
		`SELECT `+postColumns+` FROM posts WHERE slug = ? ORDER BY created_at DESC LIMIT 1`, slug)
}

func (r *PostRepo) getOne(ctx context.Context, query string, arg any) (*model.Post, error) {
	p, err := scanPost(r.db.conn.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", arg)
		}
		return nil, apperror.Storage("querying post", err)
	}
	return p, nil
}

// List returns published posts, newest first unless the caller chose another
// sort key. The key is translated through the allow-list in sortColumn —
// never spliced in from caller input.
func (r *PostRepo) List(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	opts = clampList(opts)

	query := `SELECT ` + postColumns + ` FROM posts WHERE published = 1
		ORDER BY ` + sortColumn(opts.SortBy) + ` DESC LIMIT ? OFFSET ?`

	return r.queryPosts(ctx, query, opts.Limit, opts.Offset)
}

// Search applies the filter. Every predicate value is bound:
//   - keyword → two LIKE clauses with a bound %keyword% pattern
//   - tags → one bound LIKE per tag, OR-combined
//   - author → bound equality
//
// The SQL text varies only in which fixed clauses are included, never in
// any value a caller supplied.
func (r *PostRepo) Search(ctx context.Context, filter repository.PostFilter, opts repository.ListOptions) ([]model.Post, error) {
	opts = clampList(opts)

	where := []string{}
	args := []any{}

	if filter.PublishedOnly {
		where = append(where, `published = 1`)
	}
	if filter.Keyword != "" {
		where = append(where, `(title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')`)
		pattern := "%" + escapeLike(filter.Keyword) + "%"
		args = append(args, pattern, pattern)
	}
	if len(filter.Tags) > 0 {
		clauses := make([]string, 0, len(filter.Tags))
		for _, tag := range filter.Tags {
			clauses = append(clauses, `(',' || tags || ',') LIKE ? ESCAPE '\'`)
			// Anchor with commas so "go" doesn't match "golang".
			args = append(args, "%,"+escapeLike(strings.TrimSpace(tag))+",%")
		}
		where = append(where, `(`+strings.Join(clauses, ` OR `)+`)`)
	}
	if filter.AuthorID > 0 {
		where = append(where, `author_id = ?`)
		args = append(args, filter.AuthorID)
	}

	query := `SELECT ` + postColumns + ` FROM posts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY ` + sortColumn(opts.SortBy) + ` DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	return r.queryPosts(ctx, query, args...)
}

// Update persists the post's mutable fields. The caller (service layer) has
// already checked ownership; this is a plain row write.
func (r *PostRepo) Update(ctx context.Context, post *model.Post) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE posts
			    SET title = ?, content = ?, slug = ?, tags = ?, published = ?, updated_at = ?
			  WHERE id = ?`,
			post.Title, post.Content, post.Slug, joinTags(post.Tags),
			post.Published, post.UpdatedAt, post.ID,
		)
		if err != nil {
			return apperror.Storage("updating post", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return apperror.Storage("updating post", err)
		}
		if affected == 0 {
			return apperror.NotFound("post", post.ID)
		}
		return nil
	})
}

func (r *PostRepo) queryPosts(ctx context.Context, query string, args ...any) ([]model.Post, error) {
	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Storage("querying posts", err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, apperror.Storage("scanning post row", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("iterating post rows", err)
	}
	return posts, nil
}

func scanPost(s scanner) (*model.Post, error) {
	var (
		p    model.Post
		tags string
	)
	err := s.Scan(
		&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.Slug,
		&tags, &p.Published, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Tags = splitTags(tags)
	return &p, nil
}

// Tags are stored as a single comma-joined TEXT column. The encoding lives
// entirely in this file — models and services only ever see []string.

func joinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return strings.Join(cleaned, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// escapeLike neutralizes LIKE wildcards in a caller-supplied value so "50%"
// searches for a literal percent sign. The value itself still travels as a
// bound parameter; this only disarms wildcard semantics inside it.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
