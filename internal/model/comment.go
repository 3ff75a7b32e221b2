package model

import "time"

// Comment is a user comment attached to a post.
//
// Comments are approved by default — there is no moderation queue. The flag
// exists so a moderation workflow can be added without a schema change.
type Comment struct {
	ID         int64     `json:"id"         db:"id"`
	PostID     int64     `json:"postId"     db:"post_id"`
	UserID     int64     `json:"userId"     db:"user_id"`
	Content    string    `json:"content"    db:"content"`
	IsApproved bool      `json:"isApproved" db:"is_approved"`
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`

	// AuthorName is joined in on read paths for display; not a column on
	// the comments table itself.
	AuthorName string `json:"authorName,omitempty" db:"-"`
}

// NewComment builds an approved comment. The repository assigns ID and
// CreatedAt on insert.
func NewComment(postID, userID int64, content string) *Comment {
	return &Comment{
		PostID:     postID,
		UserID:     userID,
		Content:    content,
		IsApproved: true,
	}
}

// Approve marks the comment as approved. Idempotent — approving an already
// approved comment is a no-op.
func (c *Comment) Approve() {
	c.IsApproved = true
}
