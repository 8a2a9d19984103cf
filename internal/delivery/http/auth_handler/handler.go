package authHandler

import (
	"context"
	"net/http"

	"blog/domain/entity"
	"blog/internal/delivery/http/requestctx"
	authUs "blog/internal/usecase/auth"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	AuthUsecase AuthUsecase
}

type AuthUsecase interface {

	//RegisterUser registers a new user.
	RegisterUser(ctx context.Context, username, email, password string) (entity.User, error)

	//LoginUser authenticates a user and returns an access/refresh token pair.
	LoginUser(ctx context.Context, username, password string) (authUs.TokenPair, error)

	//Logout blacklists the refresh token of the caller.
	Logout(ctx context.Context, caller uuid.UUID, refreshToken string) error

	//Refresh exchanges a refresh token for a new access token.
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

func NewAuthHandler(authUsecase AuthUsecase) *AuthHandler {
	return &AuthHandler{AuthUsecase: authUsecase}
}

// DTOs
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	user, err := h.AuthUsecase.RegisterUser(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, RegisterResponse{ID: user.ID, Username: user.Username, Email: user.Email})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	pair, err := h.AuthUsecase.LoginUser(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	err := h.AuthUsecase.Logout(c.Request().Context(), requestctx.UserID(c), req.Refresh)
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusResetContent)
}

func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	access, err := h.AuthUsecase.Refresh(c.Request().Context(), req.Refresh)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"access": access})
}
