package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"blog/domain/entity"
	"blog/internal/policy"
	"blog/pkg/customerrors"

	"github.com/google/uuid"
)

const maxTitleLength = 200

// PostInput carries client-supplied post fields. Nil means absent.
// CategorySet distinguishes an explicit null category from an absent one.
type PostInput struct {
	Title       *string
	Content     *string
	Category    *int64
	CategorySet bool
}

func (u *BlogUsecase) ListPosts(ctx context.Context) ([]entity.BlogPost, error) {
	return u.posts.ListPosts(ctx)
}

func (u *BlogUsecase) GetPost(ctx context.Context, id int64) (entity.BlogPost, error) {
	return u.posts.GetPost(ctx, id)
}

// CreatePost stores a new post authored by caller. Titles are unique across all posts.
func (u *BlogUsecase) CreatePost(ctx context.Context, caller uuid.UUID, in PostInput) (entity.BlogPost, error) {
	if err := u.authorize(policy.Create, policy.Post, uuid.Nil, caller); err != nil {
		return entity.BlogPost{}, err
	}

	p := entity.BlogPost{AuthorID: caller}
	if err := applyPostInput(&p, in, false); err != nil {
		return entity.BlogPost{}, err
	}

	created, err := u.posts.CreatePost(ctx, p)
	if err != nil {
		return entity.BlogPost{}, postWriteError(err, p.CategoryID)
	}
	u.written(policy.Post, policy.Create)
	u.logger.Info("post created", "post_id", created.ID, "user_id", caller)
	return created, nil
}

func (u *BlogUsecase) UpdatePost(ctx context.Context, caller uuid.UUID, id int64, in PostInput, partial bool) (entity.BlogPost, error) {
	if err := u.authenticated(policy.Update, policy.Post, caller); err != nil {
		return entity.BlogPost{}, err
	}
	p, err := u.posts.GetPost(ctx, id)
	if err != nil {
		return entity.BlogPost{}, err
	}
	if err := u.authorize(policy.Update, policy.Post, p.AuthorID, caller); err != nil {
		return entity.BlogPost{}, err
	}
	if err := applyPostInput(&p, in, partial); err != nil {
		return entity.BlogPost{}, err
	}

	updated, err := u.posts.UpdatePost(ctx, p)
	if err != nil {
		return entity.BlogPost{}, postWriteError(err, p.CategoryID)
	}
	u.written(policy.Post, policy.Update)
	return updated, nil
}

// DeletePost removes the post together with all of its comments.
func (u *BlogUsecase) DeletePost(ctx context.Context, caller uuid.UUID, id int64) error {
	if err := u.authenticated(policy.Delete, policy.Post, caller); err != nil {
		return err
	}
	p, err := u.posts.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if err := u.authorize(policy.Delete, policy.Post, p.AuthorID, caller); err != nil {
		return err
	}
	if err := u.posts.DeletePost(ctx, id); err != nil {
		return err
	}
	u.written(policy.Post, policy.Delete)
	u.logger.Info("post deleted", "post_id", id, "user_id", caller, "comments", len(p.Comments))
	return nil
}

func applyPostInput(p *entity.BlogPost, in PostInput, partial bool) error {
	if in.Title != nil || !partial {
		title := ""
		if in.Title != nil {
			title = strings.TrimSpace(*in.Title)
		}
		if title == "" {
			return customerrors.NewValidationError("title", "This field is required.")
		}
		if len(title) > maxTitleLength {
			return customerrors.NewValidationError("title", fmt.Sprintf("Ensure this field has no more than %d characters.", maxTitleLength))
		}
		p.Title = title
	}
	if in.Content != nil || !partial {
		if in.Content == nil || strings.TrimSpace(*in.Content) == "" {
			return customerrors.NewValidationError("content", "This field is required.")
		}
		p.Content = *in.Content
	}
	if in.CategorySet || !partial {
		p.CategoryID = in.Category
	}
	return nil
}

// postWriteError turns store constraint failures into field errors: the only
// unique constraint on posts is the title, the only reference a client sets is the category.
func postWriteError(err error, category *int64) error {
	switch {
	case errors.Is(err, customerrors.ErrAlreadyExists):
		return customerrors.NewValidationError("title", "A post with this title already exists.")
	case errors.Is(err, customerrors.ErrNotFound) && category != nil:
		return customerrors.NewValidationError("category", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *category))
	}
	return err
}
