package blog_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"blog/domain/entity"
	"blog/internal/metrics"
	"blog/internal/policy"
	"blog/internal/storage/memory"
	blogUs "blog/internal/usecase/blog"
	"blog/pkg/customerrors"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newUsecase(t *testing.T, ownerOnly bool) (*blogUs.BlogUsecase, *memory.Store) {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return blogUs.NewBlogUsecase(store, store, store, policy.New(ownerOnly), logger), store
}

func newUser(t *testing.T, store *memory.Store, username string) uuid.UUID {
	t.Helper()
	u, err := store.CreateUser(context.Background(), entity.User{ID: uuid.New(), Username: username, Email: username + "@x.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u.ID
}

func ptr[T any](v T) *T { return &v }

func expectField(t *testing.T, err error, field string) {
	t.Helper()
	var ve *customerrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError on %q, got %v", field, err)
	}
	if ve.Field != field {
		t.Errorf("expected field %q, got %q (%s)", field, ve.Field, ve.Message)
	}
}

func TestCreatePostSetsAuthorAndRejectsDuplicateTitle(t *testing.T) {
	uc, store := newUsecase(t, false)
	ctx := context.Background()
	alice := newUser(t, store, "alice")

	post, err := uc.CreatePost(ctx, alice, blogUs.PostInput{Title: ptr("T"), Content: ptr("body")})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if post.AuthorID != alice || post.AuthorUsername != "alice" {
		t.Errorf("expected author alice, got %q", post.AuthorUsername)
	}

	_, err = uc.CreatePost(ctx, alice, blogUs.PostInput{Title: ptr("T"), Content: ptr("again")})
	expectField(t, err, "title")

	// Titles are compared exactly.
	if _, err := uc.CreatePost(ctx, alice, blogUs.PostInput{Title: ptr("t"), Content: ptr("lower")}); err != nil {
		t.Errorf("expected differently cased title to be accepted, got %v", err)
	}
}

func TestAnonymousWritesFailBeforeValidation(t *testing.T) {
	uc, _ := newUsecase(t, false)
	ctx := context.Background()

	if _, err := uc.CreatePost(ctx, uuid.Nil, blogUs.PostInput{}); !errors.Is(err, customerrors.ErrUnauthorized) {
		t.Errorf("post: expected ErrUnauthorized, got %v", err)
	}
	if _, err := uc.CreateCategory(ctx, uuid.Nil, blogUs.CategoryInput{}); !errors.Is(err, customerrors.ErrUnauthorized) {
		t.Errorf("category: expected ErrUnauthorized, got %v", err)
	}
	if _, err := uc.CreateComment(ctx, uuid.Nil, blogUs.CommentInput{}); !errors.Is(err, customerrors.ErrUnauthorized) {
		t.Errorf("comment: expected ErrUnauthorized, got %v", err)
	}
}

func TestPostCategoryMustExist(t *testing.T) {
	uc, store := newUsecase(t, false)
	ctx := context.Background()
	alice := newUser(t, store, "alice")

	_, err := uc.CreatePost(ctx, alice, blogUs.PostInput{Title: ptr("T"), Content: ptr("c"), Category: ptr(int64(42)), CategorySet: true})
	expectField(t, err, "category")

	cat, err := uc.CreateCategory(ctx, alice, blogUs.CategoryInput{Name: ptr("Go")})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	post, err := uc.CreatePost(ctx, alice, blogUs.PostInput{Title: ptr("T"), Content: ptr("c"), Category: &cat.ID, CategorySet: true})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if post.CategoryID == nil || *post.CategoryID != cat.ID {
		t.Errorf("expected category %d, got %v", cat.ID, post.CategoryID)
	}
}

func TestUpdatePostPartialAndFull(t *testing.T) {
	uc, store := newUsecase(t, false)
	ctx := context.Background()
	alice := newUser(t, store, "alice")

	post, _ := uc.CreatePost(ctx, alice, blogUs.PostInput{Title: ptr("T"), Content: ptr("c")})
	other, _ := uc.CreatePost(ctx, alice, blogUs.PostInput{Title: ptr("Other"), Content: ptr("c")})

	patched, err := uc.UpdatePost(ctx, alice, post.ID, blogUs.PostInput{Content: ptr("new")}, true)
	if err != nil {
		t.Fatalf("UpdatePost partial: %v", err)
	}
	if patched.Title != "T" || patched.Content != "new" {
		t.Errorf("expected T/new, got %s/%s", patched.Title, patched.Content)
	}

	_, err = uc.UpdatePost(ctx, alice, post.ID, blogUs.PostInput{Title: ptr("T2")}, false)
	expectField(t, err, "content")

	_, err = uc.UpdatePost(ctx, alice, post.ID, blogUs.PostInput{Title: ptr(other.Title)}, true)
	expectField(t, err, "title")

	if _, err := uc.UpdatePost(ctx, alice, post.ID, blogUs.PostInput{Title: ptr("T")}, true); err != nil {
		t.Errorf("expected keeping own title to succeed, got %v", err)
	}

	if _, err := uc.UpdatePost(ctx, alice, 999, blogUs.PostInput{}, true); !errors.Is(err, customerrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCommentRules(t *testing.T) {
	uc, store := newUsecase(t, false)
	ctx := context.Background()
	alice := newUser(t, store, "alice")
	bob := newUser(t, store, "bob")
	post, _ := uc.CreatePost(ctx, alice, blogUs.PostInput{Title: ptr("T"), Content: ptr("c")})

	_, err := uc.CreateComment(ctx, alice, blogUs.CommentInput{Content: ptr("hi")})
	expectField(t, err, "post")

	_, err = uc.CreateComment(ctx, alice, blogUs.CommentInput{Content: ptr("hi"), Post: ptr(int64(999))})
	expectField(t, err, "post")

	_, err = uc.CreateComment(ctx, alice, blogUs.CommentInput{Content: ptr("   "), Post: &post.ID})
	expectField(t, err, "")

	first, err := uc.CreateComment(ctx, alice, blogUs.CommentInput{Content: ptr("hi"), Post: &post.ID})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if first.AuthorUsername != "alice" || first.PostID != post.ID {
		t.Errorf("expected alice on post %d, got %s on %d", post.ID, first.AuthorUsername, first.PostID)
	}

	_, err = uc.CreateComment(ctx, alice, blogUs.CommentInput{Content: ptr("again"), Post: &post.ID})
	expectField(t, err, "")

	if _, err := uc.CreateComment(ctx, bob, blogUs.CommentInput{Content: ptr("me too"), Post: &post.ID}); err != nil {
		t.Errorf("expected a second author to comment, got %v", err)
	}

	comments, _ := uc.ListComments(ctx, &post.ID)
	if len(comments) != 2 || comments[0].AuthorUsername != "alice" || comments[1].AuthorUsername != "bob" {
		t.Errorf("expected alice then bob, got %+v", comments)
	}
}

func TestListCommentsFilter(t *testing.T) {
	uc, store := newUsecase(t, false)
	ctx := context.Background()
	alice := newUser(t, store, "alice")
	p1, _ := uc.CreatePost(ctx, alice, blogUs.PostInput{Title: ptr("one"), Content: ptr("c")})
	p2, _ := uc.CreatePost(ctx, alice, blogUs.PostInput{Title: ptr("two"), Content: ptr("c")})
	_, _ = uc.CreateComment(ctx, alice, blogUs.CommentInput{Content: ptr("a"), Post: &p1.ID})
	_, _ = uc.CreateComment(ctx, alice, blogUs.CommentInput{Content: ptr("b"), Post: &p2.ID})

	all, _ := uc.ListComments(ctx, nil)
	if len(all) != 2 {
		t.Errorf("expected 2 comments, got %d", len(all))
	}
	only, _ := uc.ListComments(ctx, &p2.ID)
	if len(only) != 1 || only[0].Content != "b" {
		t.Errorf("expected only comment b, got %+v", only)
	}
}

func TestDeletePostRemovesComments(t *testing.T) {
	uc, store := newUsecase(t, false)
	ctx := context.Background()
	alice := newUser(t, store, "alice")
	post, _ := uc.CreatePost(ctx, alice, blogUs.PostInput{Title: ptr("T"), Content: ptr("c")})
	comment, _ := uc.CreateComment(ctx, alice, blogUs.CommentInput{Content: ptr("hi"), Post: &post.ID})

	if err := uc.DeletePost(ctx, alice, post.ID); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	if _, err := uc.GetComment(ctx, comment.ID); !errors.Is(err, customerrors.ErrNotFound) {
		t.Errorf("expected comment to be deleted with its post, got %v", err)
	}
	if _, err := uc.GetPost(ctx, post.ID); !errors.Is(err, customerrors.ErrNotFound) {
		t.Errorf("expected post to be gone, got %v", err)
	}
}

func TestAnyAuthenticatedUserMayEditByDefault(t *testing.T) {
	uc, store := newUsecase(t, false)
	ctx := context.Background()
	alice := newUser(t, store, "alice")
	bob := newUser(t, store, "bob")
	post, _ := uc.CreatePost(ctx, alice, blogUs.PostInput{Title: ptr("T"), Content: ptr("c")})

	if _, err := uc.UpdatePost(ctx, bob, post.ID, blogUs.PostInput{Content: ptr("bob was here")}, true); err != nil {
		t.Errorf("expected bob to edit alice's post, got %v", err)
	}
}

func TestOwnerOnlyWrites(t *testing.T) {
	uc, store := newUsecase(t, true)
	ctx := context.Background()
	alice := newUser(t, store, "alice")
	bob := newUser(t, store, "bob")
	post, _ := uc.CreatePost(ctx, alice, blogUs.PostInput{Title: ptr("T"), Content: ptr("c")})
	comment, _ := uc.CreateComment(ctx, alice, blogUs.CommentInput{Content: ptr("hi"), Post: &post.ID})

	if _, err := uc.UpdatePost(ctx, bob, post.ID, blogUs.PostInput{Content: ptr("x")}, true); !errors.Is(err, customerrors.ErrForbidden) {
		t.Errorf("expected ErrForbidden on post update, got %v", err)
	}
	if err := uc.DeleteComment(ctx, bob, comment.ID); !errors.Is(err, customerrors.ErrForbidden) {
		t.Errorf("expected ErrForbidden on comment delete, got %v", err)
	}
	if _, err := uc.UpdateComment(ctx, alice, comment.ID, blogUs.CommentInput{Content: ptr("edited")}, false); err != nil {
		t.Errorf("expected owner to edit, got %v", err)
	}
}

func TestCategoryLifecycle(t *testing.T) {
	uc, store := newUsecase(t, false)
	ctx := context.Background()
	alice := newUser(t, store, "alice")

	_, err := uc.CreateCategory(ctx, alice, blogUs.CategoryInput{Name: ptr("")})
	expectField(t, err, "name")

	cat, err := uc.CreateCategory(ctx, alice, blogUs.CategoryInput{Name: ptr("Go"), Description: ptr("gophers")})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	_, err = uc.CreateCategory(ctx, alice, blogUs.CategoryInput{Name: ptr("Go")})
	expectField(t, err, "name")

	updated, err := uc.UpdateCategory(ctx, alice, cat.ID, blogUs.CategoryInput{Description: ptr("changed")}, true)
	if err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}
	if updated.Name != "Go" || updated.Description != "changed" {
		t.Errorf("expected Go/changed, got %s/%s", updated.Name, updated.Description)
	}

	post, _ := uc.CreatePost(ctx, alice, blogUs.PostInput{Title: ptr("T"), Content: ptr("c"), Category: &cat.ID, CategorySet: true})
	if err := uc.DeleteCategory(ctx, alice, cat.ID); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	got, _ := uc.GetPost(ctx, post.ID)
	if got.CategoryID != nil {
		t.Errorf("expected category reference cleared, got %v", *got.CategoryID)
	}
	list, _ := uc.ListCategories(ctx)
	if len(list) != 0 {
		t.Errorf("expected no categories, got %d", len(list))
	}
}

func TestWritesAndDenialsAreCounted(t *testing.T) {
	uc, store := newUsecase(t, true)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	uc.WithMetrics(m)
	ctx := context.Background()
	alice := newUser(t, store, "alice")
	bob := newUser(t, store, "bob")

	post, err := uc.CreatePost(ctx, alice, blogUs.PostInput{Title: ptr("T"), Content: ptr("body")})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if err := uc.DeletePost(ctx, bob, post.ID); !errors.Is(err, customerrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := uc.CreateCategory(ctx, uuid.Nil, blogUs.CategoryInput{Name: ptr("Go")}); !errors.Is(err, customerrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if got := testutil.ToFloat64(m.ContentWrites.WithLabelValues("post", "create")); got != 1 {
		t.Errorf("expected 1 post create, got %v", got)
	}
	if got := testutil.ToFloat64(m.PolicyDenials.WithLabelValues("post", "not_owner")); got != 1 {
		t.Errorf("expected 1 not_owner denial, got %v", got)
	}
	if got := testutil.ToFloat64(m.PolicyDenials.WithLabelValues("category", "anonymous")); got != 1 {
		t.Errorf("expected 1 anonymous denial, got %v", got)
	}
}

func TestAnonymousWriteOnUnknownIDIsUnauthorized(t *testing.T) {
	for _, ownerOnly := range []bool{false, true} {
		uc, _ := newUsecase(t, ownerOnly)
		ctx := context.Background()
		const missing = 404

		if _, err := uc.UpdatePost(ctx, uuid.Nil, missing, blogUs.PostInput{Title: ptr("T")}, true); !errors.Is(err, customerrors.ErrUnauthorized) {
			t.Errorf("ownerOnly=%v UpdatePost: expected ErrUnauthorized, got %v", ownerOnly, err)
		}
		if err := uc.DeletePost(ctx, uuid.Nil, missing); !errors.Is(err, customerrors.ErrUnauthorized) {
			t.Errorf("ownerOnly=%v DeletePost: expected ErrUnauthorized, got %v", ownerOnly, err)
		}
		if _, err := uc.UpdateComment(ctx, uuid.Nil, missing, blogUs.CommentInput{Content: ptr("x")}, false); !errors.Is(err, customerrors.ErrUnauthorized) {
			t.Errorf("ownerOnly=%v UpdateComment: expected ErrUnauthorized, got %v", ownerOnly, err)
		}
		if err := uc.DeleteComment(ctx, uuid.Nil, missing); !errors.Is(err, customerrors.ErrUnauthorized) {
			t.Errorf("ownerOnly=%v DeleteComment: expected ErrUnauthorized, got %v", ownerOnly, err)
		}

		// An authenticated caller still gets ErrNotFound.
		if err := uc.DeletePost(ctx, uuid.New(), missing); !errors.Is(err, customerrors.ErrNotFound) {
			t.Errorf("ownerOnly=%v DeletePost by user: expected ErrNotFound, got %v", ownerOnly, err)
		}
	}
}
