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

const maxCategoryNameLength = 100

type CategoryInput struct {
	Name        *string
	Description *string
}

func (u *BlogUsecase) ListCategories(ctx context.Context) ([]entity.Category, error) {
	return u.categories.ListCategories(ctx)
}

func (u *BlogUsecase) GetCategory(ctx context.Context, id int64) (entity.Category, error) {
	return u.categories.GetCategory(ctx, id)
}

func (u *BlogUsecase) CreateCategory(ctx context.Context, caller uuid.UUID, in CategoryInput) (entity.Category, error) {
	if err := u.authorize(policy.Create, policy.Category, uuid.Nil, caller); err != nil {
		return entity.Category{}, err
	}

	c := entity.Category{}
	if err := applyCategoryInput(&c, in, false); err != nil {
		return entity.Category{}, err
	}

	created, err := u.categories.CreateCategory(ctx, c)
	if err != nil {
		return entity.Category{}, categoryWriteError(err)
	}
	u.written(policy.Category, policy.Create)
	u.logger.Info("category created", "category_id", created.ID, "user_id", caller)
	return created, nil
}

// UpdateCategory replaces the category fields, or only the provided ones when partial is set.
func (u *BlogUsecase) UpdateCategory(ctx context.Context, caller uuid.UUID, id int64, in CategoryInput, partial bool) (entity.Category, error) {
	if err := u.authorize(policy.Update, policy.Category, uuid.Nil, caller); err != nil {
		return entity.Category{}, err
	}

	c, err := u.categories.GetCategory(ctx, id)
	if err != nil {
		return entity.Category{}, err
	}
	if err := applyCategoryInput(&c, in, partial); err != nil {
		return entity.Category{}, err
	}

	updated, err := u.categories.UpdateCategory(ctx, c)
	if err != nil {
		return entity.Category{}, categoryWriteError(err)
	}
	u.written(policy.Category, policy.Update)
	return updated, nil
}

func (u *BlogUsecase) DeleteCategory(ctx context.Context, caller uuid.UUID, id int64) error {
	if err := u.authorize(policy.Delete, policy.Category, uuid.Nil, caller); err != nil {
		return err
	}
	if err := u.categories.DeleteCategory(ctx, id); err != nil {
		return err
	}
	u.written(policy.Category, policy.Delete)
	u.logger.Info("category deleted", "category_id", id, "user_id", caller)
	return nil
}

func applyCategoryInput(c *entity.Category, in CategoryInput, partial bool) error {
	if in.Name != nil || !partial {
		name := ""
		if in.Name != nil {
			name = strings.TrimSpace(*in.Name)
		}
		if name == "" {
			return customerrors.NewValidationError("name", "This field is required.")
		}
		if len(name) > maxCategoryNameLength {
			return customerrors.NewValidationError("name", fmt.Sprintf("Ensure this field has no more than %d characters.", maxCategoryNameLength))
		}
		c.Name = name
	}
	if in.Description != nil {
		c.Description = *in.Description
	} else if !partial {
		c.Description = ""
	}
	return nil
}

func categoryWriteError(err error) error {
	if errors.Is(err, customerrors.ErrAlreadyExists) {
		return customerrors.NewValidationError("name", "category with this name already exists.")
	}
	return err
}
