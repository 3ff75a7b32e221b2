package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/karim/bloghub/internal/apperror"
	"github.com/karim/bloghub/internal/auth"
	"github.com/karim/bloghub/internal/model"
	"github.com/karim/bloghub/internal/repository"
	"github.com/karim/bloghub/internal/service"
	"github.com/karim/bloghub/internal/validation"
)

// PostHandler serves post listing, search, CRUD, publishing, and comments.
type PostHandler struct {
	postService    *service.PostService
	commentService *service.CommentService
	logger         *slog.Logger
}

func NewPostHandler(postService *service.PostService, commentService *service.CommentService, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		postService:    postService,
		commentService: commentService,
		logger:         logger,
	}
}

type createPostRequest struct {
	Title   string   `json:"title"   validate:"required,max=200"`
	Content string   `json:"content" validate:"required"`
	Tags    []string `json:"tags"`
}

// HandleCreate creates a draft post owned by the current user.
//
// HTTP: POST /posts (requires auth)
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.InvalidCredentials())
		return
	}

	var req createPostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validation.Check(req); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.postService.Create(r.Context(), id.UserID, req.Title, req.Content, req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

// HandleList returns published posts, newest first.
//
// HTTP: GET /posts?limit=&offset=&sort=
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	posts, err := h.postService.List(r.Context(), listOptions(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// HandleSearch filters published posts by keyword and tags.
//
// HTTP: GET /posts/search?q=&tags=go,web
func (h *PostHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var tags []string
	if raw := q.Get("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	posts, err := h.postService.Search(r.Context(), q.Get("q"), tags, listOptions(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// HandleGet returns one post with its comments.
//
// HTTP: GET /posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.postService.Get(r.Context(), postID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleGetBySlug resolves a post by its URL slug.
//
// HTTP: GET /posts/slug/{slug}
func (h *PostHandler) HandleGetBySlug(w http.ResponseWriter, r *http.Request) {
	post, err := h.postService.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

type updatePostRequest struct {
	Title   *string   `json:"title"`
	Content *string   `json:"content"`
	Tags    *[]string `json:"tags"`
}

// HandleUpdate partially updates a post. Absent fields stay untouched;
// only the author may edit.
//
// HTTP: PATCH /posts/{id} (requires auth)
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.InvalidCredentials())
		return
	}

	postID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req updatePostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.postService.Update(r.Context(), postID, id.UserID, model.PostUpdate{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandlePublish flips a draft to published.
//
// HTTP: POST /posts/{id}/publish (requires auth, author only)
func (h *PostHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.InvalidCredentials())
		return
	}

	postID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.postService.Publish(r.Context(), postID, id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

type addCommentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// HandleAddComment attaches a comment to a post.
//
// HTTP: POST /posts/{id}/comments (requires auth)
func (h *PostHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.InvalidCredentials())
		return
	}

	postID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req addCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validation.Check(req); err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.commentService.Add(r.Context(), postID, id.UserID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// HandleListComments returns a post's visible comments, oldest first.
//
// HTTP: GET /posts/{id}/comments
func (h *PostHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	comments, err := h.commentService.ListForPost(r.Context(), postID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// pathID parses a numeric path parameter. A non-numeric value is a client
// error, not a missing resource.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed(name, "must be a positive integer")
	}
	return id, nil
}

// listOptions reads pagination and sort parameters. Bounds are enforced by
// the repository; bad numbers just fall back to defaults here.
func listOptions(r *http.Request) repository.ListOptions {
	q := r.URL.Query()
	opts := repository.ListOptions{SortBy: q.Get("sort")}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = v
	}
	return opts
}
