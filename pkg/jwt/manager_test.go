package jwt_test

import (
	"errors"
	"testing"
	"time"

	"blog/pkg/jwt"

	"github.com/google/uuid"
)

func newManager() *jwt.JWTManager {
	return jwt.NewJWTManager("test-secret", "blog-test", 5*time.Minute, time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newManager()
	userID := uuid.New()

	token, issued, err := m.NewAccessToken(userID, "alice", "session-1")
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	claims, err := m.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.UserID != userID || claims.Username != "alice" {
		t.Errorf("expected alice/%s, got %s/%s", userID, claims.Username, claims.UserID)
	}
	if claims.SessionID != "session-1" {
		t.Errorf("expected session-1, got %q", claims.SessionID)
	}
	if claims.ID != issued.ID {
		t.Errorf("expected jti %s, got %s", issued.ID, claims.ID)
	}
}

func TestRefreshTokensHaveUniqueIDs(t *testing.T) {
	m := newManager()
	userID := uuid.New()

	_, first, err := m.NewRefreshToken(userID, "alice")
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	_, second, err := m.NewRefreshToken(userID, "alice")
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	if first.ID == second.ID {
		t.Errorf("expected distinct jti, got %s twice", first.ID)
	}
	if !second.ExpiresAt.After(second.IssuedAt.Time) {
		t.Errorf("expected expiry after issue time")
	}
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	m := newManager()
	userID := uuid.New()

	access, _, _ := m.NewAccessToken(userID, "alice", "s")
	refresh, _, _ := m.NewRefreshToken(userID, "alice")

	if _, err := m.VerifyRefreshToken(access); !errors.Is(err, jwt.ErrWrongTokenType) {
		t.Errorf("expected ErrWrongTokenType for access-as-refresh, got %v", err)
	}
	if _, err := m.VerifyAccessToken(refresh); !errors.Is(err, jwt.ErrWrongTokenType) {
		t.Errorf("expected ErrWrongTokenType for refresh-as-access, got %v", err)
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	m := newManager()
	past := m.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })

	token, _, err := past.NewAccessToken(uuid.New(), "alice", "s")
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	if _, err := m.VerifyAccessToken(token); err == nil {
		t.Errorf("expected expired token to fail verification")
	}
}

func TestForeignSignatureIsRejected(t *testing.T) {
	other := jwt.NewJWTManager("other-secret", "blog-test", time.Minute, time.Hour)
	token, _, _ := other.NewAccessToken(uuid.New(), "mallory", "s")

	if _, err := newManager().VerifyAccessToken(token); err == nil {
		t.Errorf("expected token signed with another key to fail")
	}
}

func TestMalformedTokenIsRejected(t *testing.T) {
	for _, token := range []string{"", "abc", "a.b.c"} {
		if _, err := newManager().VerifyAccessToken(token); err == nil {
			t.Errorf("expected %q to fail verification", token)
		}
	}
}
