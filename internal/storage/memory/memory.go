// Package memory is an in-process implementation of the repositories with the
// same constraint behaviour as the postgres schema. Tests use it in place of a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"blog/domain/entity"
	"blog/pkg/customerrors"

	"github.com/google/uuid"
)

type Store struct {
	mu sync.Mutex

	users  map[uuid.UUID]entity.User
	tokens map[uuid.UUID]entity.RefreshToken

	categories map[int64]entity.Category
	posts      map[int64]entity.BlogPost
	comments   map[int64]entity.Comment
	nextID     int64

	blacklist map[string]time.Time
	now       func() time.Time
}

func New() *Store {
	return &Store{
		users:      map[uuid.UUID]entity.User{},
		tokens:     map[uuid.UUID]entity.RefreshToken{},
		categories: map[int64]entity.Category{},
		posts:      map[int64]entity.BlogPost{},
		comments:   map[int64]entity.Comment{},
		blacklist:  map[string]time.Time{},
		now:        time.Now,
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// ---------------- users and tokens ----------------

func (s *Store) CreateUser(_ context.Context, user entity.User) (entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username {
			return entity.User{}, fmt.Errorf("username %q: %w", user.Username, customerrors.ErrAlreadyExists)
		}
	}
	user.CreatedAt = s.now()
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return entity.User{}, customerrors.ErrNotFound
}

func (s *Store) StoreRefreshToken(_ context.Context, token entity.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[token.UserID]; !ok {
		return customerrors.ErrNotFound
	}
	s.tokens[token.JTI] = token
	return nil
}

func (s *Store) GetRefreshToken(_ context.Context, jti uuid.UUID) (entity.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[jti]
	if !ok {
		return entity.RefreshToken{}, customerrors.ErrNotFound
	}
	return token, nil
}

func (s *Store) BlacklistRefreshToken(_ context.Context, jti uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[jti]
	if !ok || token.IsBlacklisted() {
		return customerrors.ErrNoTagsAffected
	}
	token.BlacklistedAt = &at
	s.tokens[jti] = token
	return nil
}

// ---------------- blacklist cache ----------------

func (s *Store) Add(_ context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl > 0 {
		s.blacklist[jti] = s.now().Add(ttl)
	}
	return nil
}

func (s *Store) Contains(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.blacklist[jti]
	return ok && s.now().Before(until), nil
}

// ForgetBlacklist drops the cached entries, as if the cache had been flushed.
func (s *Store) ForgetBlacklist() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist = map[string]time.Time{}
}

// ---------------- categories ----------------

func (s *Store) ListCategories(_ context.Context) ([]entity.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, c entity.Category) (entity.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.categoryNameTaken(c.Name, 0) {
		return entity.Category{}, fmt.Errorf("categories_name_key: %w", customerrors.ErrAlreadyExists)
	}
	c.ID = s.id()
	c.CreatedAt, c.UpdatedAt = s.now(), s.now()
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (entity.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return entity.Category{}, customerrors.ErrNotFound
	}
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, c entity.Category) (entity.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.categories[c.ID]
	if !ok {
		return entity.Category{}, customerrors.ErrNotFound
	}
	if s.categoryNameTaken(c.Name, c.ID) {
		return entity.Category{}, fmt.Errorf("categories_name_key: %w", customerrors.ErrAlreadyExists)
	}
	c.CreatedAt, c.UpdatedAt = old.CreatedAt, s.now()
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return customerrors.ErrNotFound
	}
	delete(s.categories, id)
	for pid, p := range s.posts {
		if p.CategoryID != nil && *p.CategoryID == id {
			p.CategoryID = nil
			s.posts[pid] = p
		}
	}
	return nil
}

func (s *Store) categoryNameTaken(name string, except int64) bool {
	for _, c := range s.categories {
		if c.Name == name && c.ID != except {
			return true
		}
	}
	return false
}

// ---------------- posts ----------------

func (s *Store) ListPosts(_ context.Context) ([]entity.BlogPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.BlogPost, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, s.hydratePost(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreatePost(_ context.Context, p entity.BlogPost) (entity.BlogPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPost(p); err != nil {
		return entity.BlogPost{}, err
	}
	p.ID = s.id()
	p.CreatedAt, p.UpdatedAt = s.now(), s.now()
	p.Comments = nil
	s.posts[p.ID] = p
	return s.hydratePost(p), nil
}

func (s *Store) GetPost(_ context.Context, id int64) (entity.BlogPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return entity.BlogPost{}, customerrors.ErrNotFound
	}
	return s.hydratePost(p), nil
}

func (s *Store) UpdatePost(_ context.Context, p entity.BlogPost) (entity.BlogPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.posts[p.ID]
	if !ok {
		return entity.BlogPost{}, customerrors.ErrNotFound
	}
	if err := s.checkPost(p); err != nil {
		return entity.BlogPost{}, err
	}
	old.Title, old.Content, old.CategoryID, old.UpdatedAt = p.Title, p.Content, p.CategoryID, s.now()
	s.posts[p.ID] = old
	return s.hydratePost(old), nil
}

func (s *Store) DeletePost(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return customerrors.ErrNotFound
	}
	for cid, c := range s.comments {
		if c.PostID == id {
			delete(s.comments, cid)
		}
	}
	delete(s.posts, id)
	return nil
}

func (s *Store) checkPost(p entity.BlogPost) error {
	for _, other := range s.posts {
		if other.Title == p.Title && other.ID != p.ID {
			return fmt.Errorf("posts_title_key: %w", customerrors.ErrAlreadyExists)
		}
	}
	if p.CategoryID != nil {
		if _, ok := s.categories[*p.CategoryID]; !ok {
			return fmt.Errorf("referenced row: %w", customerrors.ErrNotFound)
		}
	}
	if _, ok := s.users[p.AuthorID]; !ok {
		return fmt.Errorf("referenced row: %w", customerrors.ErrNotFound)
	}
	return nil
}

func (s *Store) hydratePost(p entity.BlogPost) entity.BlogPost {
	p.AuthorUsername = s.users[p.AuthorID].Username
	p.Comments = s.commentsOf(&p.ID)
	return p
}

// ---------------- comments ----------------

func (s *Store) ListComments(_ context.Context, postID *int64) ([]entity.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commentsOf(postID), nil
}

func (s *Store) CreateComment(_ context.Context, c entity.Comment) (entity.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[c.PostID]; !ok {
		return entity.Comment{}, fmt.Errorf("referenced row: %w", customerrors.ErrNotFound)
	}
	for _, other := range s.comments {
		if other.PostID == c.PostID && other.AuthorID == c.AuthorID {
			return entity.Comment{}, fmt.Errorf("comments_author_post_key: %w", customerrors.ErrAlreadyExists)
		}
	}
	c.ID = s.id()
	c.CreatedAt, c.UpdatedAt = s.now(), s.now()
	s.comments[c.ID] = c
	return s.hydrateComment(c), nil
}

func (s *Store) GetComment(_ context.Context, id int64) (entity.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return entity.Comment{}, customerrors.ErrNotFound
	}
	return s.hydrateComment(c), nil
}

func (s *Store) UpdateComment(_ context.Context, c entity.Comment) (entity.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.comments[c.ID]
	if !ok {
		return entity.Comment{}, customerrors.ErrNotFound
	}
	old.Content, old.UpdatedAt = c.Content, s.now()
	s.comments[c.ID] = old
	return s.hydrateComment(old), nil
}

func (s *Store) DeleteComment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return customerrors.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

// commentsOf returns comments in creation order; ids grow monotonically so they order by creation.
func (s *Store) commentsOf(postID *int64) []entity.Comment {
	out := []entity.Comment{}
	for _, c := range s.comments {
		if postID == nil || c.PostID == *postID {
			out = append(out, s.hydrateComment(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) hydrateComment(c entity.Comment) entity.Comment {
	c.AuthorUsername = s.users[c.AuthorID].Username
	return c
}
