package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"blog/domain/entity"
	"blog/internal/metrics"
	"blog/pkg/customerrors"
	"blog/pkg/jwt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type UserRepo interface {
	CreateUser(ctx context.Context, user entity.User) (entity.User, error)
	GetUserByUsername(ctx context.Context, username string) (entity.User, error)
}

type TokenRepo interface {
	StoreRefreshToken(ctx context.Context, token entity.RefreshToken) error
	GetRefreshToken(ctx context.Context, jti uuid.UUID) (entity.RefreshToken, error)
	BlacklistRefreshToken(ctx context.Context, jti uuid.UUID, at time.Time) error
}

// Blacklist is the fast lookup of blacklisted refresh token ids shared by all instances.
type Blacklist interface {
	Add(ctx context.Context, jti string, ttl time.Duration) error
	Contains(ctx context.Context, jti string) (bool, error)
}

// Identity is the caller resolved from an access token.
type Identity struct {
	UserID   uuid.UUID
	Username string
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

const maxUsernameLength = 150

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

type AuthUsecase struct {
	users     UserRepo
	tokens    TokenRepo
	blacklist Blacklist
	jwt       *jwt.JWTManager
	metrics   *metrics.Metrics
	logger    *slog.Logger

	hashCost  int
	dummyHash []byte
	now       func() time.Time
}

func NewAuthUsecase(
	users UserRepo,
	tokens TokenRepo,
	blacklist Blacklist,
	jwtManager *jwt.JWTManager,
	m *metrics.Metrics,
	logger *slog.Logger,
	hashCost int,
) (*AuthUsecase, error) {
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
	// Unknown usernames are checked against this hash so both failure paths cost the same.
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), hashCost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}
	return &AuthUsecase{
		users:     users,
		tokens:    tokens,
		blacklist: blacklist,
		jwt:       jwtManager,
		metrics:   m,
		logger:    logger.With("component", "auth_usecase"),
		hashCost:  hashCost,
		dummyHash: dummy,
		now:       time.Now,
	}, nil
}

// RegisterUser validates the input and stores a new user with a bcrypt password hash.
func (u *AuthUsecase) RegisterUser(ctx context.Context, username, email, password string) (entity.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	switch {
	case username == "":
		return entity.User{}, customerrors.NewValidationError("username", "This field is required.")
	case len(username) > maxUsernameLength:
		return entity.User{}, customerrors.NewValidationError("username", fmt.Sprintf("Ensure this field has no more than %d characters.", maxUsernameLength))
	case !usernamePattern.MatchString(username):
		return entity.User{}, customerrors.NewValidationError("username", "Enter a valid username. It may contain only letters, numbers, and @/./+/-/_ characters.")
	case email == "":
		return entity.User{}, customerrors.NewValidationError("email", "This field is required.")
	case password == "":
		return entity.User{}, customerrors.NewValidationError("password", "This field is required.")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return entity.User{}, customerrors.NewValidationError("email", "Enter a valid email address.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.hashCost)
	if err != nil {
		return entity.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := u.users.CreateUser(ctx, entity.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
	})
	if errors.Is(err, customerrors.ErrAlreadyExists) {
		return entity.User{}, customerrors.NewValidationError("username", "A user with that username already exists.")
	}
	if err != nil {
		return entity.User{}, fmt.Errorf("create user: %w", err)
	}

	u.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords produce the same ErrInvalidCredentials.
func (u *AuthUsecase) Authenticate(ctx context.Context, username, password string) (entity.User, error) {
	user, err := u.users.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, customerrors.ErrNotFound):
		_ = bcrypt.CompareHashAndPassword(u.dummyHash, []byte(password))
		return entity.User{}, customerrors.ErrInvalidCredentials
	case err != nil:
		return entity.User{}, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return entity.User{}, customerrors.ErrInvalidCredentials
	}
	return user, nil
}

// Issue creates an access/refresh pair and records the refresh token id.
func (u *AuthUsecase) Issue(ctx context.Context, user entity.User) (TokenPair, error) {
	refresh, refreshClaims, err := u.jwt.NewRefreshToken(user.ID, user.Username)
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate refresh: %w", err)
	}
	access, _, err := u.jwt.NewAccessToken(user.ID, user.Username, refreshClaims.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate access: %w", err)
	}

	err = u.tokens.StoreRefreshToken(ctx, entity.RefreshToken{
		JTI:       uuid.MustParse(refreshClaims.ID),
		UserID:    user.ID,
		IssuedAt:  refreshClaims.IssuedAt.Time,
		ExpiresAt: refreshClaims.ExpiresAt.Time,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("store refresh: %w", err)
	}

	u.metrics.IssuedTokens.WithLabelValues(string(jwt.AccessToken)).Inc()
	u.metrics.IssuedTokens.WithLabelValues(string(jwt.RefreshToken)).Inc()
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// LoginUser authenticates the user and returns a fresh token pair.
func (u *AuthUsecase) LoginUser(ctx context.Context, username, password string) (TokenPair, error) {
	user, err := u.Authenticate(ctx, username, password)
	if err != nil {
		u.metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return TokenPair{}, err
	}
	pair, err := u.Issue(ctx, user)
	if err != nil {
		u.metrics.LoginAttempts.WithLabelValues("error").Inc()
		return TokenPair{}, err
	}
	u.metrics.LoginAttempts.WithLabelValues("success").Inc()
	u.logger.Info("user logged in", "user_id", user.ID)
	return pair, nil
}

// VerifyUser resolves an access token into the calling identity. Tokens whose
// session was blacklisted are rejected.
func (u *AuthUsecase) VerifyUser(ctx context.Context, accessToken string) (Identity, error) {
	claims, err := u.jwt.VerifyAccessToken(accessToken)
	if err != nil {
		return Identity{}, customerrors.ErrUnauthorized
	}
	if err := u.checkSession(ctx, claims); err != nil {
		return Identity{}, err
	}
	return Identity{UserID: claims.UserID, Username: claims.Username}, nil
}

// checkSession rejects access tokens whose refresh token is blacklisted. A cache
// miss is confirmed against the stored record, and a blacklisted record is put
// back into the cache.
func (u *AuthUsecase) checkSession(ctx context.Context, claims *jwt.Claims) error {
	jti, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return customerrors.ErrUnauthorized
	}

	if blocked, err := u.blacklist.Contains(ctx, claims.SessionID); err != nil {
		u.logger.Warn("blacklist cache unavailable, falling back to store", "error", err)
	} else if blocked {
		return customerrors.ErrUnauthorized
	}

	record, err := u.tokens.GetRefreshToken(ctx, jti)
	if errors.Is(err, customerrors.ErrNotFound) {
		return customerrors.ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if record.UserID != claims.UserID {
		return customerrors.ErrUnauthorized
	}
	if record.IsBlacklisted() {
		if err := u.blacklist.Add(ctx, claims.SessionID, record.ExpiresAt.Sub(u.now())); err != nil {
			u.logger.Error("cache blacklisted token", "jti", claims.SessionID, "error", err)
		}
		return customerrors.ErrUnauthorized
	}
	return nil
}

// Logout blacklists the refresh token. The token must belong to caller unless
// caller is uuid.Nil. A token that is malformed, foreign, unknown, or already
// blacklisted fails with ErrInvalidToken.
func (u *AuthUsecase) Logout(ctx context.Context, caller uuid.UUID, refreshToken string) error {
	claims, err := u.jwt.VerifyRefreshToken(refreshToken)
	if err != nil {
		return customerrors.ErrInvalidToken
	}
	if caller != uuid.Nil && claims.UserID != caller {
		return customerrors.ErrInvalidToken
	}
	jti, err := uuid.Parse(claims.ID)
	if err != nil {
		return customerrors.ErrInvalidToken
	}

	err = u.tokens.BlacklistRefreshToken(ctx, jti, u.now())
	if errors.Is(err, customerrors.ErrNoTagsAffected) {
		return customerrors.ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("blacklist refresh: %w", err)
	}

	if err := u.blacklist.Add(ctx, claims.ID, claims.ExpiresAt.Sub(u.now())); err != nil {
		u.logger.Error("cache blacklisted token", "jti", claims.ID, "error", err)
	}
	u.metrics.BlacklistedTokens.Inc()
	u.logger.Info("refresh token blacklisted", "user_id", claims.UserID, "jti", claims.ID)
	return nil
}

// Refresh exchanges a valid, non-blacklisted refresh token for a new access token.
func (u *AuthUsecase) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := u.jwt.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", customerrors.ErrInvalidToken
	}
	jti, err := uuid.Parse(claims.ID)
	if err != nil {
		return "", customerrors.ErrInvalidToken
	}

	if blocked, err := u.blacklist.Contains(ctx, claims.ID); err != nil {
		u.logger.Warn("blacklist cache unavailable, falling back to store", "error", err)
	} else if blocked {
		return "", customerrors.ErrInvalidToken
	}

	record, err := u.tokens.GetRefreshToken(ctx, jti)
	if errors.Is(err, customerrors.ErrNotFound) {
		return "", customerrors.ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("get refresh: %w", err)
	}
	if record.IsBlacklisted() || record.UserID != claims.UserID {
		return "", customerrors.ErrInvalidToken
	}

	access, _, err := u.jwt.NewAccessToken(claims.UserID, claims.Username, claims.ID)
	if err != nil {
		return "", fmt.Errorf("generate access: %w", err)
	}
	u.metrics.IssuedTokens.WithLabelValues(string(jwt.AccessToken)).Inc()
	return access, nil
}
