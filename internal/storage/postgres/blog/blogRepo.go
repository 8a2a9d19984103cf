package blog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blog/domain/entity"
	metrics "blog/internal/metrics"
	psql "blog/internal/storage/postgres"
	"blog/pkg/customerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Unique constraints a client request can violate. Any other unique violation is a server error.
const (
	constraintPostTitle     = "posts_title_key"
	constraintCommentAuthor = "comments_author_post_key"
	constraintCategoryName  = "categories_name_key"
)

var clientConstraints = map[string]bool{
	constraintPostTitle:     true,
	constraintCommentAuthor: true,
	constraintCategoryName:  true,
}

type BlogRepo struct {
	pool    *pgxpool.Pool
	Metrics *metrics.Metrics
}

func NewBlogRepo(pool *pgxpool.Pool, metrics *metrics.Metrics) *BlogRepo {
	return &BlogRepo{
		pool:    pool,
		Metrics: metrics,
	}
}

// translate maps store errors onto the shared error taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return customerrors.ErrNotFound
	}
	if constraint, ok := psql.IsUniqueViolation(err); ok {
		if !clientConstraints[constraint] {
			return err
		}
		return fmt.Errorf("%s: %w", constraint, customerrors.ErrAlreadyExists)
	}
	if psql.IsForeignKeyViolation(err) {
		return fmt.Errorf("referenced row: %w", customerrors.ErrNotFound)
	}
	// comments.content is the only checked column.
	if psql.IsCheckViolation(err) {
		return customerrors.NewValidationError("", "Comment content cannot be empty.")
	}
	return err
}

// ---------------- categories ----------------

const categoryColumns = `id, name, description, created_at, updated_at`

func scanCategory(row pgx.Row) (c entity.Category, err error) {
	err = row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *BlogRepo) ListCategories(ctx context.Context) (categories []entity.Category, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_categories", start, err)
	}(time.Now())

	rows, err := r.pool.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories = []entity.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *BlogRepo) CreateCategory(ctx context.Context, c entity.Category) (created entity.Category, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("insert_category", start, err)
	}(time.Now())

	created, err = scanCategory(r.pool.QueryRow(ctx,
		`INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING `+categoryColumns,
		c.Name, c.Description))
	return created, translate(err)
}

func (r *BlogRepo) GetCategory(ctx context.Context, id int64) (c entity.Category, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_category", start, err)
	}(time.Now())

	c, err = scanCategory(r.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	return c, translate(err)
}

func (r *BlogRepo) UpdateCategory(ctx context.Context, c entity.Category) (updated entity.Category, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("update_category", start, err)
	}(time.Now())

	updated, err = scanCategory(r.pool.QueryRow(ctx,
		`UPDATE categories SET name = $2, description = $3, updated_at = now()
		 WHERE id = $1 RETURNING `+categoryColumns,
		c.ID, c.Name, c.Description))
	return updated, translate(err)
}

func (r *BlogRepo) DeleteCategory(ctx context.Context, id int64) (err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("delete_category", start, err)
	}(time.Now())

	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = customerrors.ErrNotFound
	}
	return err
}

// ---------------- posts ----------------

const postSelect = `SELECT p.id, p.title, p.content, p.category_id, p.author_id, u.username, p.created_at, p.updated_at
	FROM posts p JOIN users u ON u.id = p.author_id`

func scanPost(row pgx.Row) (p entity.BlogPost, err error) {
	err = row.Scan(&p.ID, &p.Title, &p.Content, &p.CategoryID, &p.AuthorID, &p.AuthorUsername, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ListPosts returns every post with its comments in creation order.
func (r *BlogRepo) ListPosts(ctx context.Context) (posts []entity.BlogPost, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_posts", start, err)
	}(time.Now())

	rows, err := r.pool.Query(ctx, postSelect+` ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts = []entity.BlogPost{}
	index := map[int64]int{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		p.Comments = []entity.Comment{}
		index[p.ID] = len(posts)
		posts = append(posts, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return posts, nil
	}

	comments, err := r.listComments(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		if i, ok := index[c.PostID]; ok {
			posts[i].Comments = append(posts[i].Comments, c)
		}
	}
	return posts, nil
}

func (r *BlogRepo) GetPost(ctx context.Context, id int64) (p entity.BlogPost, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_post", start, err)
	}(time.Now())

	p, err = scanPost(r.pool.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return entity.BlogPost{}, translate(err)
	}
	p.Comments, err = r.listComments(ctx, &id)
	return p, err
}

// CreatePost inserts a post. A duplicate title yields ErrAlreadyExists and an
// unknown category yields ErrNotFound.
func (r *BlogRepo) CreatePost(ctx context.Context, p entity.BlogPost) (created entity.BlogPost, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("insert_post", start, err)
	}(time.Now())

	var id int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO posts (title, content, category_id, author_id) VALUES ($1, $2, $3, $4) RETURNING id`,
		p.Title, p.Content, p.CategoryID, p.AuthorID).Scan(&id)
	if err != nil {
		return entity.BlogPost{}, translate(err)
	}
	return r.GetPost(ctx, id)
}

func (r *BlogRepo) UpdatePost(ctx context.Context, p entity.BlogPost) (updated entity.BlogPost, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("update_post", start, err)
	}(time.Now())

	tag, err := r.pool.Exec(ctx,
		`UPDATE posts SET title = $2, content = $3, category_id = $4, updated_at = now() WHERE id = $1`,
		p.ID, p.Title, p.Content, p.CategoryID)
	if err != nil {
		return entity.BlogPost{}, translate(err)
	}
	if tag.RowsAffected() == 0 {
		return entity.BlogPost{}, customerrors.ErrNotFound
	}
	return r.GetPost(ctx, p.ID)
}

// DeletePost removes the post and its comments in one transaction. The post row
// is locked first so no comment can be added to it before it is gone.
func (r *BlogRepo) DeletePost(ctx context.Context, id int64) (err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("delete_post", start, err)
	}(time.Now())

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var locked int64
	if err = tx.QueryRow(ctx, `SELECT id FROM posts WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		err = translate(err)
		return err
	}
	if _, err = tx.Exec(ctx, `DELETE FROM comments WHERE post_id = $1`, id); err != nil {
		err = translate(err)
		return err
	}
	if _, err = tx.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
		err = translate(err)
		return err
	}
	return tx.Commit(ctx)
}

// ---------------- comments ----------------

const commentSelect = `SELECT c.id, c.content, c.post_id, c.author_id, u.username, c.created_at, c.updated_at
	FROM comments c JOIN users u ON u.id = c.author_id`

func scanComment(row pgx.Row) (c entity.Comment, err error) {
	err = row.Scan(&c.ID, &c.Content, &c.PostID, &c.AuthorID, &c.AuthorUsername, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ListComments returns comments in creation order, restricted to one post when postID is set.
func (r *BlogRepo) ListComments(ctx context.Context, postID *int64) (comments []entity.Comment, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_comments", start, err)
	}(time.Now())

	return r.listComments(ctx, postID)
}

func (r *BlogRepo) listComments(ctx context.Context, postID *int64) ([]entity.Comment, error) {
	query := commentSelect + ` WHERE ($1::bigint IS NULL OR c.post_id = $1) ORDER BY c.created_at, c.id`
	rows, err := r.pool.Query(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []entity.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// CreateComment inserts a comment. A second comment by the same author on the
// same post yields ErrAlreadyExists; a missing post yields ErrNotFound.
func (r *BlogRepo) CreateComment(ctx context.Context, c entity.Comment) (created entity.Comment, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("insert_comment", start, err)
	}(time.Now())

	var id int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO comments (content, post_id, author_id) VALUES ($1, $2, $3) RETURNING id`,
		c.Content, c.PostID, c.AuthorID).Scan(&id)
	if err != nil {
		return entity.Comment{}, translate(err)
	}
	return r.GetComment(ctx, id)
}

func (r *BlogRepo) GetComment(ctx context.Context, id int64) (c entity.Comment, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_comment", start, err)
	}(time.Now())

	c, err = scanComment(r.pool.QueryRow(ctx, commentSelect+` WHERE c.id = $1`, id))
	return c, translate(err)
}

func (r *BlogRepo) UpdateComment(ctx context.Context, c entity.Comment) (updated entity.Comment, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("update_comment", start, err)
	}(time.Now())

	tag, err := r.pool.Exec(ctx, `UPDATE comments SET content = $2, updated_at = now() WHERE id = $1`, c.ID, c.Content)
	if err != nil {
		return entity.Comment{}, translate(err)
	}
	if tag.RowsAffected() == 0 {
		return entity.Comment{}, customerrors.ErrNotFound
	}
	return r.GetComment(ctx, c.ID)
}

func (r *BlogRepo) DeleteComment(ctx context.Context, id int64) (err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("delete_comment", start, err)
	}(time.Now())

	tag, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = customerrors.ErrNotFound
	}
	return err
}
