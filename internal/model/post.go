package model

import (
	"strings"
	"time"
	"unicode"
)

// Post represents a blog post.
//
// Tags are free-form labels. In memory they are a slice; the repository owns
// how they're encoded in storage, so nothing outside that package depends on
// the encoding.
type Post struct {
	ID        int64     `json:"id"        db:"id"`
	Title     string    `json:"title"     db:"title"`
	Content   string    `json:"content"   db:"content"`
	AuthorID  int64     `json:"authorId"  db:"author_id"`
	Slug      string    `json:"slug"      db:"slug"`
	Tags      []string  `json:"tags"      db:"tags"`
	Published bool      `json:"published" db:"published"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// Comments is populated only on the post-detail read path.
	Comments []Comment `json:"comments,omitempty" db:"-"`
}

// NewPost builds an unpublished post with a slug derived from the title.
// The repository assigns ID and timestamps on insert.
func NewPost(title, content string, authorID int64, tags []string) *Post {
	return &Post{
		Title:    title,
		Content:  content,
		AuthorID: authorID,
		Slug:     Slugify(title),
		Tags:     tags,
	}
}

// PostUpdate describes a partial update. A nil field means "leave unchanged" —
// this is how PATCH semantics are expressed without sentinel values, since an
// empty string is a legal (if odd) content value but nil never is.
type PostUpdate struct {
	Title   *string
	Content *string
	Tags    *[]string
}

// ApplyUpdate mutates the post in place. If the title changes, the slug is
// recomputed from it. UpdatedAt is always refreshed, even if every field was
// nil — the caller asked for an update and got one.
func (p *Post) ApplyUpdate(upd PostUpdate, now time.Time) {
	if upd.Title != nil {
		p.Title = *upd.Title
		p.Slug = Slugify(p.Title)
	}
	if upd.Content != nil {
		p.Content = *upd.Content
	}
	if upd.Tags != nil {
		p.Tags = *upd.Tags
	}
	p.UpdatedAt = now
}

// Publish marks the post as published. Posts are created unpublished and
// transition explicitly; there is no automatic publication.
func (p *Post) Publish(now time.Time) {
	p.Published = true
	p.UpdatedAt = now
}

// Slugify derives a URL-safe identifier from a title:
//
//	lower-case → drop everything outside [a-z0-9, whitespace, hyphen]
//	→ collapse whitespace/hyphen runs to a single hyphen → trim edge hyphens
//
// It is deterministic and idempotent: Slugify(Slugify(x)) == Slugify(x).
//
//	Slugify("Hello World!") == "hello-world"
func Slugify(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-':
			// Run of separators → at most one hyphen, and never a leading one.
			pendingHyphen = true
		default:
			// Punctuation and other symbols are dropped entirely.
		}
	}

	return b.String()
}
