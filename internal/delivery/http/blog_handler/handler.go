package blogHandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"blog/domain/entity"
	"blog/internal/delivery/http/requestctx"
	blogUs "blog/internal/usecase/blog"
	"blog/pkg/customerrors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type BlogUsecase interface {
	ListCategories(ctx context.Context) ([]entity.Category, error)
	GetCategory(ctx context.Context, id int64) (entity.Category, error)
	CreateCategory(ctx context.Context, caller uuid.UUID, in blogUs.CategoryInput) (entity.Category, error)
	UpdateCategory(ctx context.Context, caller uuid.UUID, id int64, in blogUs.CategoryInput, partial bool) (entity.Category, error)
	DeleteCategory(ctx context.Context, caller uuid.UUID, id int64) error

	ListPosts(ctx context.Context) ([]entity.BlogPost, error)
	GetPost(ctx context.Context, id int64) (entity.BlogPost, error)
	CreatePost(ctx context.Context, caller uuid.UUID, in blogUs.PostInput) (entity.BlogPost, error)
	UpdatePost(ctx context.Context, caller uuid.UUID, id int64, in blogUs.PostInput, partial bool) (entity.BlogPost, error)
	DeletePost(ctx context.Context, caller uuid.UUID, id int64) error

	ListComments(ctx context.Context, postID *int64) ([]entity.Comment, error)
	GetComment(ctx context.Context, id int64) (entity.Comment, error)
	CreateComment(ctx context.Context, caller uuid.UUID, in blogUs.CommentInput) (entity.Comment, error)
	UpdateComment(ctx context.Context, caller uuid.UUID, id int64, in blogUs.CommentInput, partial bool) (entity.Comment, error)
	DeleteComment(ctx context.Context, caller uuid.UUID, id int64) error
}

type BlogHandler struct {
	BlogUsecase BlogUsecase
}

func NewBlogHandler(blogUsecase BlogUsecase) *BlogHandler {
	return &BlogHandler{BlogUsecase: blogUsecase}
}

// DTOs
type CategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// PostRequest keeps category raw so that an explicit null can be told apart from an absent field.
type PostRequest struct {
	Title    *string         `json:"title"`
	Content  *string         `json:"content"`
	Category json.RawMessage `json:"category"`
}

// CommentRequest accepts the post id as a number or a numeric string.
type CommentRequest struct {
	Content *string         `json:"content"`
	Post    json.RawMessage `json:"post"`
}

// pathID parses the :id route parameter; a non-numeric id matches no resource.
func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, customerrors.ErrNotFound
	}
	return id, nil
}

// parseID reads an optional id that may be encoded as a JSON number or string.
func parseID(field string, raw json.RawMessage) (*int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil, nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &n, nil
		}
	}
	return nil, customerrors.NewValidationError(field, "Incorrect type. Expected pk value.")
}

// ---------------- categories ----------------

func (h *BlogHandler) ListCategories(c echo.Context) error {
	categories, err := h.BlogUsecase.ListCategories(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, categories)
}

func (h *BlogHandler) GetCategory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	category, err := h.BlogUsecase.GetCategory(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, category)
}

func (h *BlogHandler) CreateCategory(c echo.Context) error {
	var req CategoryRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	category, err := h.BlogUsecase.CreateCategory(c.Request().Context(), requestctx.UserID(c), blogUs.CategoryInput(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, category)
}

func (h *BlogHandler) updateCategory(c echo.Context, partial bool) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req CategoryRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	category, err := h.BlogUsecase.UpdateCategory(c.Request().Context(), requestctx.UserID(c), id, blogUs.CategoryInput(req), partial)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, category)
}

func (h *BlogHandler) PutCategory(c echo.Context) error   { return h.updateCategory(c, false) }
func (h *BlogHandler) PatchCategory(c echo.Context) error { return h.updateCategory(c, true) }

func (h *BlogHandler) DeleteCategory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.BlogUsecase.DeleteCategory(c.Request().Context(), requestctx.UserID(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ---------------- posts ----------------

func (r PostRequest) input() (blogUs.PostInput, error) {
	in := blogUs.PostInput{Title: r.Title, Content: r.Content}
	if len(bytes.TrimSpace(r.Category)) > 0 {
		category, err := parseID("category", r.Category)
		if err != nil {
			return blogUs.PostInput{}, err
		}
		in.Category, in.CategorySet = category, true
	}
	return in, nil
}

func (h *BlogHandler) ListPosts(c echo.Context) error {
	posts, err := h.BlogUsecase.ListPosts(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, posts)
}

func (h *BlogHandler) GetPost(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	post, err := h.BlogUsecase.GetPost(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (h *BlogHandler) CreatePost(c echo.Context) error {
	var req PostRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	in, err := req.input()
	if err != nil {
		return err
	}
	post, err := h.BlogUsecase.CreatePost(c.Request().Context(), requestctx.UserID(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, post)
}

func (h *BlogHandler) updatePost(c echo.Context, partial bool) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req PostRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	in, err := req.input()
	if err != nil {
		return err
	}
	post, err := h.BlogUsecase.UpdatePost(c.Request().Context(), requestctx.UserID(c), id, in, partial)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (h *BlogHandler) PutPost(c echo.Context) error   { return h.updatePost(c, false) }
func (h *BlogHandler) PatchPost(c echo.Context) error { return h.updatePost(c, true) }

func (h *BlogHandler) DeletePost(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.BlogUsecase.DeletePost(c.Request().Context(), requestctx.UserID(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ---------------- comments ----------------

func (h *BlogHandler) ListComments(c echo.Context) error {
	var postID *int64
	if raw := c.QueryParam("post_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return customerrors.NewValidationError("post_id", "Enter a whole number.")
		}
		postID = &id
	}
	comments, err := h.BlogUsecase.ListComments(c.Request().Context(), postID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, comments)
}

func (h *BlogHandler) GetComment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	comment, err := h.BlogUsecase.GetComment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, comment)
}

func (h *BlogHandler) CreateComment(c echo.Context) error {
	var req CommentRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	post, err := parseID("post", req.Post)
	if err != nil {
		return err
	}
	comment, err := h.BlogUsecase.CreateComment(c.Request().Context(), requestctx.UserID(c), blogUs.CommentInput{Content: req.Content, Post: post})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, comment)
}

func (h *BlogHandler) updateComment(c echo.Context, partial bool) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req CommentRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	comment, err := h.BlogUsecase.UpdateComment(c.Request().Context(), requestctx.UserID(c), id, blogUs.CommentInput{Content: req.Content}, partial)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, comment)
}

func (h *BlogHandler) PutComment(c echo.Context) error   { return h.updateComment(c, false) }
func (h *BlogHandler) PatchComment(c echo.Context) error { return h.updateComment(c, true) }

func (h *BlogHandler) DeleteComment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.BlogUsecase.DeleteComment(c.Request().Context(), requestctx.UserID(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
