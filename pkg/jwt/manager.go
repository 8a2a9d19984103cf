package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

var ErrWrongTokenType = errors.New("unexpected token type")

// Claims is the payload carried by both token kinds. SessionID is set on
// access tokens only and holds the jti of the refresh token they were
// issued with, so blacklisting that refresh token also cuts them off.
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Type      TokenType `json:"typ"`
	SessionID string    `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	secretKey  []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewJWTManager(secretKey, issuer string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:  []byte(secretKey),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock replaces the time source. Used by tests to mint expired tokens.
func (manager *JWTManager) WithClock(now func() time.Time) *JWTManager {
	clone := *manager
	clone.now = now
	return &clone
}

// NewAccessToken generates a short-lived access token bound to the session sessionID.
func (manager *JWTManager) NewAccessToken(userID uuid.UUID, username, sessionID string) (string, *Claims, error) {
	claims := manager.claims(userID, username, AccessToken, manager.accessTTL)
	claims.SessionID = sessionID
	return manager.sign(claims)
}

// NewRefreshToken generates a refresh token with a fresh jti.
func (manager *JWTManager) NewRefreshToken(userID uuid.UUID, username string) (string, *Claims, error) {
	return manager.sign(manager.claims(userID, username, RefreshToken, manager.refreshTTL))
}

func (manager *JWTManager) claims(userID uuid.UUID, username string, typ TokenType, ttl time.Duration) *Claims {
	now := manager.now()
	return &Claims{
		UserID:   userID,
		Username: username,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    manager.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func (manager *JWTManager) sign(claims *Claims) (string, *Claims, error) {
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(manager.secretKey)
	if err != nil {
		return "", nil, err
	}
	return tokenString, claims, nil
}

// VerifyAccessToken verifies an access token and returns its claims.
func (manager *JWTManager) VerifyAccessToken(tokenString string) (*Claims, error) {
	return manager.verify(tokenString, AccessToken)
}

// VerifyRefreshToken verifies a refresh token and returns its claims.
func (manager *JWTManager) VerifyRefreshToken(tokenString string) (*Claims, error) {
	return manager.verify(tokenString, RefreshToken)
}

func (manager *JWTManager) verify(tokenString string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return manager.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(manager.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(manager.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Type != want {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongTokenType, claims.Type, want)
	}
	if claims.UserID == uuid.Nil || claims.ID == "" {
		return nil, jwt.ErrTokenMalformed
	}
	return claims, nil
}
