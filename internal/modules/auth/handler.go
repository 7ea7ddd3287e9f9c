package auth

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskmanager/internal/domain"
	"taskmanager/internal/middleware"
	"taskmanager/internal/pkg/response"
	"taskmanager/internal/pkg/validator"
)

// Handler manages all HTTP interactions for authentication
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(api *gin.RouterGroup) {
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/refresh-token", h.RefreshToken)
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	protected.POST("/logout", h.Logout)
	protected.GET("/me", h.GetMe)
}

// Register creates an account and opens its first session.
// @Summary		Register a user
// @Tags		Auth
// @Param		request	body	RegisterRequest	true	"username, email, password"
// @Success		201	{object}	SessionResponse
// @Failure		400	{object}	map[string]interface{} "validation error"
// @Failure		409	{object}	map[string]interface{} "username or email taken"
// @Router		/register [POST]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Payload validation failed", errs)
		return
	}

	result, err := h.service.Register(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, sessionResponse(result))
}

// Login checks credentials and returns a session pair bound to the caller.
// @Summary		Log in
// @Tags		Auth
// @Param		request	body	LoginRequest	true	"email, password"
// @Success		200	{object}	SessionResponse
// @Failure		401	{object}	map[string]interface{} "email or password is incorrect"
// @Router		/login [POST]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Payload validation failed", errs)
		return
	}

	result, err := h.service.Login(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, sessionResponse(result))
}

// RefreshToken rotates a refresh token.
// @Summary		Rotate refresh token
// @Tags		Auth
// @Param		request	body	RefreshRequest	true	"refreshToken"
// @Success		200	{object}	TokenPairResponse
// @Failure		401	{object}	map[string]interface{} "missing, invalid or unknown refresh token"
// @Router		/refresh-token [POST]
func (h *Handler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	pair, err := h.service.Refresh(c.Request.Context(), req.Token(), c.ClientIP())
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	if err := h.service.Logout(c.Request.Context(), userID, req.Token(), c.ClientIP()); err != nil {
		h.writeError(c, err)
		return
	}

	response.Message(c, http.StatusOK, "User logged out successfully")
}

func (h *Handler) GetMe(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	user, err := h.service.GetCurrentUser(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user": UserProfileResponse{
			ID:         user.ID,
			Username:   user.Username,
			Email:      user.Email,
			IsLoggedIn: user.IsLoggedIn,
			CreatedAt:  user.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:  user.UpdatedAt.UTC().Format(time.RFC3339),
		},
	})
}

func sessionResponse(r *LoginResult) SessionResponse {
	return SessionResponse{
		User:         r.User.Summary(),
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
	}
}

// writeError maps auth errors onto responses. Messages stay generic; the
// cause goes to c.Errors for ErrorLogger.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Email or password is incorrect")
	case errors.Is(err, ErrUserAlreadyExists):
		response.Error(c, http.StatusConflict, "USER_EXISTS", "User with these details already exists")
	case errors.Is(err, ErrUserNotFound):
		response.Error(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, domain.ErrMissingToken):
		response.Error(c, http.StatusUnauthorized, "REFRESH_TOKEN_REQUIRED", "Refresh token is required")
	case errors.Is(err, domain.ErrInvalidToken):
		response.Error(c, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Invalid or expired refresh token")
	case errors.Is(err, domain.ErrTokenNotRecognized):
		response.Error(c, http.StatusUnauthorized, "REFRESH_TOKEN_NOT_FOUND", "Refresh token is invalid or not found")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
