package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karim/bloghub/internal/apperror"
	"github.com/karim/bloghub/internal/model"
	"github.com/karim/bloghub/internal/repository"
)

const (
	MaxTitleLength   = 200
	MaxContentLength = 100000 // ~100KB of post body
	MaxTagCount      = 10
	MaxTagLength     = 40
)

// timeNow is a seam for tests that need deterministic timestamps.
var timeNow = func() time.Time { return time.Now().UTC() }

// PostService owns post business rules: validation, ownership, publication.
type PostService struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	logger   *slog.Logger
}

func NewPostService(posts repository.PostRepository, comments repository.CommentRepository, logger *slog.Logger) *PostService {
	return &PostService{
		posts:    posts,
		comments: comments,
		logger:   logger,
	}
}

// Create validates and saves a new post for the given author. Posts start
// unpublished; the slug is derived from the title at creation.
func (s *PostService) Create(ctx context.Context, authorID int64, title, content string, tags []string) (*model.Post, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "post title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	// A title of pure punctuation would slug to "" and the post could
	// never be reached by its slug URL.
	if model.Slugify(title) == "" {
		return nil, apperror.ValidationFailed("title", "title must contain at least one letter or digit")
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperror.ValidationFailed("content", "post content is required")
	}
	if len(content) > MaxContentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxContentLength))
	}
	if err := validateTags(tags); err != nil {
		return nil, err
	}

	post := model.NewPost(title, content, authorID, tags)
	if err := s.posts.Create(ctx, post); err != nil {
		s.logger.Error("failed to create post",
			slog.Int64("authorID", authorID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.Int64("postID", post.ID),
		slog.Int64("authorID", authorID),
		slog.String("slug", post.Slug),
	)
	return post, nil
}

// Get returns a post with its comments attached.
func (s *PostService) Get(ctx context.Context, id int64) (*model.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	comments, err := s.comments.ListForPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading comments for post %d: %w", id, err)
	}
	post.Comments = comments
	return post, nil
}

// GetBySlug resolves a post by its URL slug, comments included.
func (s *PostService) GetBySlug(ctx context.Context, slug string) (*model.Post, error) {
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, post.ID)
}

// List returns published posts with pagination.
func (s *PostService) List(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	return s.posts.List(ctx, opts)
}

// Search finds published posts matching a keyword and/or tags.
func (s *PostService) Search(ctx context.Context, keyword string, tags []string, opts repository.ListOptions) ([]model.Post, error) {
	filter := repository.PostFilter{
		Keyword:       strings.TrimSpace(keyword),
		Tags:          tags,
		PublishedOnly: true,
	}
	return s.posts.Search(ctx, filter, opts)
}

// Update applies a partial update. Only the owning user may mutate a post;
// anyone else gets ErrForbidden regardless of what they tried to change.
// Fields left nil in upd are untouched; a supplied title recomputes the
// slug; UpdatedAt always refreshes.
func (s *PostService) Update(ctx context.Context, postID, requesterID int64, upd model.PostUpdate) (*model.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != requesterID {
		return nil, apperror.Forbidden("only the author may modify this post")
	}

	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return nil, apperror.ValidationFailed("title", "title must not be empty")
		}
		if len(title) > MaxTitleLength {
			return nil, apperror.ValidationFailed("title",
				fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
		}
		if model.Slugify(title) == "" {
			return nil, apperror.ValidationFailed("title", "title must contain at least one letter or digit")
		}
		upd.Title = &title
	}
	if upd.Content != nil && len(*upd.Content) > MaxContentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxContentLength))
	}
	if upd.Tags != nil {
		if err := validateTags(*upd.Tags); err != nil {
			return nil, err
		}
	}

	post.ApplyUpdate(upd, timeNow())

	if err := s.posts.Update(ctx, post); err != nil {
		s.logger.Error("failed to update post",
			slog.Int64("postID", postID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating post: %w", err)
	}

	s.logger.Info("post updated", slog.Int64("postID", postID))
	return post, nil
}

// Publish transitions a post to published. Owner-only, idempotent.
func (s *PostService) Publish(ctx context.Context, postID, requesterID int64) (*model.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != requesterID {
		return nil, apperror.Forbidden("only the author may publish this post")
	}

	post.Publish(timeNow())
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, fmt.Errorf("publishing post: %w", err)
	}

	s.logger.Info("post published", slog.Int64("postID", postID))
	return post, nil
}

func validateTags(tags []string) error {
	if len(tags) > MaxTagCount {
		return apperror.ValidationFailed("tags",
			fmt.Sprintf("at most %d tags are allowed", MaxTagCount))
	}
	for _, tag := range tags {
		if len(tag) > MaxTagLength {
			return apperror.ValidationFailed("tags",
				fmt.Sprintf("each tag must be %d characters or less", MaxTagLength))
		}
		if strings.Contains(tag, ",") {
			return apperror.ValidationFailed("tags", "tags must not contain commas")
		}
	}
	return nil
}
