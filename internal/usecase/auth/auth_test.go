package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"blog/internal/metrics"
	"blog/internal/storage/memory"
	authUs "blog/internal/usecase/auth"
	"blog/pkg/customerrors"
	"blog/pkg/jwt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

func newUsecase(t *testing.T) (*authUs.AuthUsecase, *memory.Store) {
	t.Helper()
	store := memory.New()
	manager := jwt.NewJWTManager("secret", "blog-test", 5*time.Minute, time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uc, err := authUs.NewAuthUsecase(store, store, store, manager, metrics.NewMetrics(prometheus.NewRegistry()), logger, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewAuthUsecase: %v", err)
	}
	return uc, store
}

func TestRegisterThenLogin(t *testing.T) {
	uc, store := newUsecase(t)
	ctx := context.Background()

	user, err := uc.RegisterUser(ctx, "alice", "a@x.com", "pw")
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	stored, err := store.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if stored.PasswordHash == "pw" {
		t.Fatalf("password stored in cleartext")
	}

	pair, err := uc.LoginUser(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}
	id, err := uc.VerifyUser(ctx, pair.Access)
	if err != nil {
		t.Fatalf("VerifyUser: %v", err)
	}
	if id.UserID != user.ID || id.Username != "alice" {
		t.Errorf("expected alice/%s, got %s/%s", user.ID, id.Username, id.UserID)
	}
}

func TestRegisterValidation(t *testing.T) {
	uc, _ := newUsecase(t)
	ctx := context.Background()

	if _, err := uc.RegisterUser(ctx, "alice", "a@x.com", "pw"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	cases := []struct {
		name                      string
		username, email, password string
		field                     string
	}{
		{"duplicate", "alice", "b@x.com", "pw", "username"},
		{"empty username", "", "a@x.com", "pw", "username"},
		{"bad username", "al ice", "a@x.com", "pw", "username"},
		{"empty email", "bob", "", "pw", "email"},
		{"bad email", "bob", "not-an-email", "pw", "email"},
		{"empty password", "bob", "b@x.com", "", "password"},
	}
	for _, tc := range cases {
		_, err := uc.RegisterUser(ctx, tc.username, tc.email, tc.password)
		var ve *customerrors.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: expected ValidationError, got %v", tc.name, err)
			continue
		}
		if ve.Field != tc.field {
			t.Errorf("%s: expected field %q, got %q", tc.name, tc.field, ve.Field)
		}
	}
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	uc, _ := newUsecase(t)
	ctx := context.Background()
	if _, err := uc.RegisterUser(ctx, "alice", "a@x.com", "pw"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	_, wrongPassword := uc.LoginUser(ctx, "alice", "nope")
	_, unknownUser := uc.LoginUser(ctx, "bob", "pw")

	if !errors.Is(wrongPassword, customerrors.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", wrongPassword)
	}
	if wrongPassword != unknownUser {
		t.Errorf("expected identical errors, got %v and %v", wrongPassword, unknownUser)
	}
}

func TestLogoutBlacklistsOnce(t *testing.T) {
	uc, _ := newUsecase(t)
	ctx := context.Background()
	user, _ := uc.RegisterUser(ctx, "alice", "a@x.com", "pw")
	pair, err := uc.LoginUser(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}

	if _, err := uc.Refresh(ctx, pair.Refresh); err != nil {
		t.Fatalf("Refresh before logout: %v", err)
	}
	if err := uc.Logout(ctx, user.ID, pair.Refresh); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := uc.Logout(ctx, user.ID, pair.Refresh); !errors.Is(err, customerrors.ErrInvalidToken) {
		t.Errorf("expected second logout to fail with ErrInvalidToken, got %v", err)
	}
	if _, err := uc.Refresh(ctx, pair.Refresh); !errors.Is(err, customerrors.ErrInvalidToken) {
		t.Errorf("expected refresh after logout to fail with ErrInvalidToken, got %v", err)
	}
	if _, err := uc.VerifyUser(ctx, pair.Access); !errors.Is(err, customerrors.ErrUnauthorized) {
		t.Errorf("expected access token of the blacklisted session to be rejected, got %v", err)
	}
}

func TestRefreshFallsBackToStore(t *testing.T) {
	uc, store := newUsecase(t)
	ctx := context.Background()
	_, _ = uc.RegisterUser(ctx, "alice", "a@x.com", "pw")
	pair, _ := uc.LoginUser(ctx, "alice", "pw")

	if err := uc.Logout(ctx, uuid.Nil, pair.Refresh); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	// Simulate a lost cache entry: the store record alone must still reject the token.
	store.ForgetBlacklist()
	if _, err := uc.Refresh(ctx, pair.Refresh); !errors.Is(err, customerrors.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAccessTokenRejectedAfterCacheLoss(t *testing.T) {
	uc, store := newUsecase(t)
	ctx := context.Background()
	user, _ := uc.RegisterUser(ctx, "alice", "a@x.com", "pw")
	pair, _ := uc.LoginUser(ctx, "alice", "pw")

	if err := uc.Logout(ctx, user.ID, pair.Refresh); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	store.ForgetBlacklist()
	if _, err := uc.VerifyUser(ctx, pair.Access); !errors.Is(err, customerrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	// The store lookup puts the entry back into the cache.
	cached, err := store.Contains(ctx, mustSessionID(t, pair.Access))
	if err != nil || !cached {
		t.Errorf("expected blacklist entry to be restored, got %v %v", cached, err)
	}
}

func TestAccessTokenWithUnknownSessionRejected(t *testing.T) {
	uc, _ := newUsecase(t)
	ctx := context.Background()
	user, _ := uc.RegisterUser(ctx, "alice", "a@x.com", "pw")

	manager := jwt.NewJWTManager("secret", "blog-test", 5*time.Minute, time.Hour)
	access, _, err := manager.NewAccessToken(user.ID, "alice", uuid.NewString())
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	if _, err := uc.VerifyUser(ctx, access); !errors.Is(err, customerrors.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for a session that was never issued, got %v", err)
	}
}

func mustSessionID(t *testing.T, access string) string {
	t.Helper()
	claims, err := jwt.NewJWTManager("secret", "blog-test", 5*time.Minute, time.Hour).VerifyAccessToken(access)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	return claims.SessionID
}

func TestRefreshIssuesUsableAccessToken(t *testing.T) {
	uc, _ := newUsecase(t)
	ctx := context.Background()
	user, _ := uc.RegisterUser(ctx, "alice", "a@x.com", "pw")
	pair, _ := uc.LoginUser(ctx, "alice", "pw")

	access, err := uc.Refresh(ctx, pair.Refresh)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	id, err := uc.VerifyUser(ctx, access)
	if err != nil {
		t.Fatalf("VerifyUser: %v", err)
	}
	if id.UserID != user.ID {
		t.Errorf("expected %s, got %s", user.ID, id.UserID)
	}
}

func TestLogoutRejectsBadTokens(t *testing.T) {
	uc, _ := newUsecase(t)
	ctx := context.Background()
	alice, _ := uc.RegisterUser(ctx, "alice", "a@x.com", "pw")
	bob, _ := uc.RegisterUser(ctx, "bob", "b@x.com", "pw")
	pair, _ := uc.LoginUser(ctx, "alice", "pw")

	cases := map[string]struct {
		caller uuid.UUID
		token  string
	}{
		"malformed":      {alice.ID, "garbage"},
		"empty":          {alice.ID, ""},
		"access token":   {alice.ID, pair.Access},
		"someone else's": {bob.ID, pair.Refresh},
	}
	for name, tc := range cases {
		if err := uc.Logout(ctx, tc.caller, tc.token); !errors.Is(err, customerrors.ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestVerifyUserRejectsRefreshToken(t *testing.T) {
	uc, _ := newUsecase(t)
	ctx := context.Background()
	_, _ = uc.RegisterUser(ctx, "alice", "a@x.com", "pw")
	pair, _ := uc.LoginUser(ctx, "alice", "pw")

	if _, err := uc.VerifyUser(ctx, pair.Refresh); !errors.Is(err, customerrors.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
