package entity

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered author. PasswordHash never leaves the service.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// RefreshToken is the server-side record of an issued refresh token.
// A token with a non-nil BlacklistedAt is rejected regardless of expiry.
type RefreshToken struct {
	JTI           uuid.UUID  `json:"jti"`
	UserID        uuid.UUID  `json:"user_id"`
	IssuedAt      time.Time  `json:"issued_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	BlacklistedAt *time.Time `json:"blacklisted_at,omitempty"`
}

func (t RefreshToken) IsBlacklisted() bool {
	return t.BlacklistedAt != nil
}

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BlogPost owns its comments; deleting a post deletes them.
type BlogPost struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	CategoryID     *int64    `json:"category"`
	AuthorID       uuid.UUID `json:"-"`
	AuthorUsername string    `json:"author"`
	Comments       []Comment `json:"comments"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Comment belongs to exactly one post. At most one comment exists per (author, post).
type Comment struct {
	ID             int64     `json:"id"`
	Content        string    `json:"content"`
	PostID         int64     `json:"post"`
	AuthorID       uuid.UUID `json:"-"`
	AuthorUsername string    `json:"author"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
