package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blog/domain/entity"
	metrics "blog/internal/metrics"
	psql "blog/internal/storage/postgres"
	"blog/pkg/customerrors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuthRepo struct {
	pool    *pgxpool.Pool
	Metrics *metrics.Metrics
}

func NewAuthRepo(pool *pgxpool.Pool, metrics *metrics.Metrics) *AuthRepo {
	return &AuthRepo{
		pool:    pool,
		Metrics: metrics,
	}
}

// CreateUser inserts a new user. A taken username yields customerrors.ErrAlreadyExists.
func (r *AuthRepo) CreateUser(ctx context.Context, user entity.User) (created entity.User, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("insert_user", start, err)
	}(time.Now())

	err = r.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, username, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, email, username, password_hash, created_at`,
		user.ID, user.Email, user.Username, user.PasswordHash,
	).Scan(&created.ID, &created.Email, &created.Username, &created.PasswordHash, &created.CreatedAt)
	if err != nil {
		if _, ok := psql.IsUniqueViolation(err); ok {
			return entity.User{}, fmt.Errorf("username %q: %w", user.Username, customerrors.ErrAlreadyExists)
		}
		return entity.User{}, err
	}
	return created, nil
}

// GetUserByUsername returns the user with the exact username, or customerrors.ErrNotFound.
func (r *AuthRepo) GetUserByUsername(ctx context.Context, username string) (user entity.User, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_user_by_username", start, err)
	}(time.Now())

	err = r.pool.QueryRow(ctx,
		"SELECT id, email, username, password_hash, created_at FROM users WHERE username = $1", username,
	).Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.User{}, customerrors.ErrNotFound
	}
	return user, err
}

// StoreRefreshToken records an issued refresh token so it can later be blacklisted.
func (r *AuthRepo) StoreRefreshToken(ctx context.Context, token entity.RefreshToken) (err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("insert_refresh_token", start, err)
	}(time.Now())

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (jti, user_id, issued_at, expires_at) VALUES ($1, $2, $3, $4)`,
		token.JTI, token.UserID, token.IssuedAt, token.ExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		err = customerrors.ErrNoTagsAffected
	}
	return err
}

func (r *AuthRepo) GetRefreshToken(ctx context.Context, jti uuid.UUID) (token entity.RefreshToken, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_refresh_token", start, err)
	}(time.Now())

	err = r.pool.QueryRow(ctx,
		`SELECT jti, user_id, issued_at, expires_at, blacklisted_at FROM refresh_tokens WHERE jti = $1`, jti,
	).Scan(&token.JTI, &token.UserID, &token.IssuedAt, &token.ExpiresAt, &token.BlacklistedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.RefreshToken{}, customerrors.ErrNotFound
	}
	return token, err
}

// BlacklistRefreshToken marks the token blacklisted. The update only matches a
// token that is not blacklisted yet, so concurrent logouts with the same token
// see exactly one success; the others get customerrors.ErrNoTagsAffected.
func (r *AuthRepo) BlacklistRefreshToken(ctx context.Context, jti uuid.UUID, at time.Time) (err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("blacklist_refresh_token", start, err)
	}(time.Now())

	tag, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET blacklisted_at = $2 WHERE jti = $1 AND blacklisted_at IS NULL`, jti, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		err = customerrors.ErrNoTagsAffected
	}
	return err
}

// DeleteExpiredRefreshTokens removes tokens whose expiry passed before the given time.
func (r *AuthRepo) DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (n int64, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("delete_expired_refresh_tokens", start, err)
	}(time.Now())

	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *AuthRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
