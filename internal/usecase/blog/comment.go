package blog

import (
	"context"
	"errors"
	"strings"

	"blog/domain/entity"
	"blog/internal/policy"
	"blog/pkg/customerrors"

	"github.com/google/uuid"
)

type CommentInput struct {
	Content *string
	Post    *int64
}

// ListComments returns all comments, or only those of one post when postID is set.
func (u *BlogUsecase) ListComments(ctx context.Context, postID *int64) ([]entity.Comment, error) {
	return u.comments.ListComments(ctx, postID)
}

func (u *BlogUsecase) GetComment(ctx context.Context, id int64) (entity.Comment, error) {
	return u.comments.GetComment(ctx, id)
}

// CreateComment stores a comment by caller on an existing post. A user may
// comment on a given post only once.
func (u *BlogUsecase) CreateComment(ctx context.Context, caller uuid.UUID, in CommentInput) (entity.Comment, error) {
	if err := u.authorize(policy.Create, policy.Comment, uuid.Nil, caller); err != nil {
		return entity.Comment{}, err
	}

	content, err := commentContent(in.Content)
	if err != nil {
		return entity.Comment{}, err
	}
	if in.Post == nil {
		return entity.Comment{}, customerrors.NewValidationError("post", "Post ID is required to create a comment.")
	}
	if *in.Post <= 0 {
		return entity.Comment{}, customerrors.NewValidationError("post", "The specified post does not exist.")
	}

	created, err := u.comments.CreateComment(ctx, entity.Comment{
		Content:  content,
		PostID:   *in.Post,
		AuthorID: caller,
	})
	switch {
	case errors.Is(err, customerrors.ErrAlreadyExists):
		return entity.Comment{}, customerrors.NewValidationError("", "You have already commented on this post.")
	case errors.Is(err, customerrors.ErrNotFound):
		return entity.Comment{}, customerrors.NewValidationError("post", "The specified post does not exist.")
	case err != nil:
		return entity.Comment{}, err
	}
	u.written(policy.Comment, policy.Create)
	u.logger.Info("comment created", "comment_id", created.ID, "post_id", created.PostID, "user_id", caller)
	return created, nil
}

// UpdateComment changes the comment content. The post a comment belongs to never changes.
func (u *BlogUsecase) UpdateComment(ctx context.Context, caller uuid.UUID, id int64, in CommentInput, partial bool) (entity.Comment, error) {
	if err := u.authenticated(policy.Update, policy.Comment, caller); err != nil {
		return entity.Comment{}, err
	}
	c, err := u.comments.GetComment(ctx, id)
	if err != nil {
		return entity.Comment{}, err
	}
	if err := u.authorize(policy.Update, policy.Comment, c.AuthorID, caller); err != nil {
		return entity.Comment{}, err
	}
	if partial && in.Content == nil {
		return c, nil
	}
	if c.Content, err = commentContent(in.Content); err != nil {
		return entity.Comment{}, err
	}
	updated, err := u.comments.UpdateComment(ctx, c)
	if err != nil {
		return entity.Comment{}, err
	}
	u.written(policy.Comment, policy.Update)
	return updated, nil
}

func (u *BlogUsecase) DeleteComment(ctx context.Context, caller uuid.UUID, id int64) error {
	if err := u.authenticated(policy.Delete, policy.Comment, caller); err != nil {
		return err
	}
	c, err := u.comments.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if err := u.authorize(policy.Delete, policy.Comment, c.AuthorID, caller); err != nil {
		return err
	}
	if err := u.comments.DeleteComment(ctx, id); err != nil {
		return err
	}
	u.written(policy.Comment, policy.Delete)
	u.logger.Info("comment deleted", "comment_id", id, "user_id", caller)
	return nil
}

func commentContent(content *string) (string, error) {
	if content == nil || strings.TrimSpace(*content) == "" {
		return "", customerrors.NewValidationError("", "Comment content cannot be empty.")
	}
	return *content, nil
}
