package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/karim/bloghub/internal/apperror"
	"github.com/karim/bloghub/internal/model"
	"github.com/karim/bloghub/internal/repository"
)

const MaxCommentLength = 2000

// CommentService owns comment business rules.
type CommentService struct {
	comments repository.CommentRepository
	logger   *slog.Logger
}

func NewCommentService(comments repository.CommentRepository, logger *slog.Logger) *CommentService {
	return &CommentService{
		comments: comments,
		logger:   logger,
	}
}

// Add attaches a comment to a post. The repository's foreign keys guarantee
// the post and author exist — a dangling post reference comes back as
// ErrNotFound. Comments are approved on creation; there is no moderation
// queue.
func (s *CommentService) Add(ctx context.Context, postID, authorID int64, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "comment content is required")
	}
	if len(content) > MaxCommentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}

	comment := model.NewComment(postID, authorID, content)
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.logger.Info("comment added",
		slog.Int64("commentID", comment.ID),
		slog.Int64("postID", postID),
		slog.Int64("authorID", authorID),
	)
	return comment, nil
}

// ListForPost returns a post's comments, oldest first.
func (s *CommentService) ListForPost(ctx context.Context, postID int64) ([]model.Comment, error) {
	return s.comments.ListForPost(ctx, postID)
}
