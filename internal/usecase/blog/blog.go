package blog

import (
	"context"
	"log/slog"

	"blog/domain/entity"
	"blog/internal/metrics"
	"blog/internal/policy"

	"github.com/google/uuid"
)

type CategoryRepo interface {
	ListCategories(ctx context.Context) ([]entity.Category, error)
	CreateCategory(ctx context.Context, c entity.Category) (entity.Category, error)
	GetCategory(ctx context.Context, id int64) (entity.Category, error)
	UpdateCategory(ctx context.Context, c entity.Category) (entity.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

type PostRepo interface {
	ListPosts(ctx context.Context) ([]entity.BlogPost, error)
	CreatePost(ctx context.Context, p entity.BlogPost) (entity.BlogPost, error)
	GetPost(ctx context.Context, id int64) (entity.BlogPost, error)
	UpdatePost(ctx context.Context, p entity.BlogPost) (entity.BlogPost, error)
	DeletePost(ctx context.Context, id int64) error
}

type CommentRepo interface {
	ListComments(ctx context.Context, postID *int64) ([]entity.Comment, error)
	CreateComment(ctx context.Context, c entity.Comment) (entity.Comment, error)
	GetComment(ctx context.Context, id int64) (entity.Comment, error)
	UpdateComment(ctx context.Context, c entity.Comment) (entity.Comment, error)
	DeleteComment(ctx context.Context, id int64) error
}

// BlogUsecase implements the CRUD operations on categories, posts and
// comments. Callers are identified by user id; uuid.Nil is anonymous.
type BlogUsecase struct {
	categories CategoryRepo
	posts      PostRepo
	comments   CommentRepo
	policy     policy.Policy
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewBlogUsecase(categories CategoryRepo, posts PostRepo, comments CommentRepo, p policy.Policy, logger *slog.Logger) *BlogUsecase {
	return &BlogUsecase{
		categories: categories,
		posts:      posts,
		comments:   comments,
		policy:     p,
		logger:     logger.With("component", "blog_usecase"),
	}
}

// WithMetrics makes the usecase count successful writes and policy denials.
func (u *BlogUsecase) WithMetrics(m *metrics.Metrics) *BlogUsecase {
	u.metrics = m
	return u
}

func (u *BlogUsecase) authorize(op policy.Operation, kind policy.Kind, owner, caller uuid.UUID) error {
	decision := u.policy.Decide(op, kind, owner, caller)
	if decision != policy.Allow && u.metrics != nil {
		u.metrics.PolicyDenials.WithLabelValues(string(kind), decision.String()).Inc()
	}
	return decision.Err()
}

// authenticated rejects anonymous writers before the resource is loaded; the
// owner check follows once the resource is known.
func (u *BlogUsecase) authenticated(op policy.Operation, kind policy.Kind, caller uuid.UUID) error {
	return u.authorize(op, kind, caller, caller)
}

func (u *BlogUsecase) written(kind policy.Kind, op policy.Operation) {
	if u.metrics != nil {
		u.metrics.ContentWrites.WithLabelValues(string(kind), string(op)).Inc()
	}
}
