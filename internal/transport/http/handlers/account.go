package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/ecotrack-accounts/internal/core/domain"
	"github.com/arklim/ecotrack-accounts/internal/usecase"
)

// AccountService is the account orchestrator as seen by the HTTP layer.
type AccountService interface {
	Register(ctx context.Context, in usecase.RegisterInput) (string, error)
	Login(ctx context.Context, identifier, password string) (*usecase.LoginResult, error)
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	UpdateProfileInfo(ctx context.Context, id string, update usecase.ProfileUpdate) error
	UpdateEmail(ctx context.Context, id, newEmail string) error
	UpdatePassword(ctx context.Context, id, oldPassword, newPassword string) error
	UpdatePreferences(ctx context.Context, id string, prefs domain.Preferences) error
	DeleteAccount(ctx context.Context, id string) error
}

// AccountHandler exposes the account lifecycle endpoints.
type AccountHandler struct {
	accounts AccountService
}

func NewAccountHandler(accounts AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Register godoc
// @Summary Register a new account
// @Description Creates the identity and the mirrored profile record.
// @Tags Accounts
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/users/register [post]
func (h *AccountHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	id, err := h.accounts.Register(c.Request.Context(), usecase.RegisterInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
	})
	if err != nil {
		respondAccountError(c, err, "registration failed")
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		Message: "User registered successfully!",
		UserID:  id,
	})
}

// Login godoc
// @Summary Authenticate with email or username
// @Tags Accounts
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Router /api/v1/users/login [post]
func (h *AccountHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.accounts.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		respondAccountError(c, err, "login failed")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Message:   "Login successful!",
		Token:     result.Token,
		TokenType: "Bearer",
		UserID:    result.UserID,
		Username:  result.Username,
		Email:     result.Email,
	})
}

// GetProfile godoc
// @Summary Fetch an account profile
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} domain.Profile
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/profile/{id} [get]
func (h *AccountHandler) GetProfile(c *gin.Context) {
	profile, err := h.accounts.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondAccountError(c, err, "failed to load profile")
		return
	}
	if profile == nil {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "User not found"))
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateProfile godoc
// @Summary Update name and location
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param request body ProfileUpdateRequest true "Profile fields"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/profile/{id} [put]
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid profile payload"))
		return
	}

	err := h.accounts.UpdateProfileInfo(c.Request.Context(), c.Param("id"), usecase.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Location:  req.Location,
	})
	if err != nil {
		respondAccountError(c, err, "failed to update profile")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Profile updated successfully"})
}

// UpdateEmail godoc
// @Summary Change the login email
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param request body EmailUpdateRequest true "New email"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/v1/users/email/{id} [put]
func (h *AccountHandler) UpdateEmail(c *gin.Context) {
	var req EmailUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid email payload"))
		return
	}

	if err := h.accounts.UpdateEmail(c.Request.Context(), c.Param("id"), req.Email); err != nil {
		respondAccountError(c, err, "failed to update email")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Email updated successfully"})
}

// UpdatePassword godoc
// @Summary Change the password
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param request body PasswordUpdateRequest true "Old and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/users/password/{id} [put]
func (h *AccountHandler) UpdatePassword(c *gin.Context) {
	var req PasswordUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid password payload"))
		return
	}

	if err := h.accounts.UpdatePassword(c.Request.Context(), c.Param("id"), req.OldPassword, req.NewPassword); err != nil {
		respondAccountError(c, err, "failed to update password")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Password updated successfully"})
}

// UpdatePreferences godoc
// @Summary Replace the preference set
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param request body PreferencesUpdateRequest true "Preferences"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/users/preferences/{id} [put]
func (h *AccountHandler) UpdatePreferences(c *gin.Context) {
	var req PreferencesUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid preferences payload"))
		return
	}

	if err := h.accounts.UpdatePreferences(c.Request.Context(), c.Param("id"), req.Preferences); err != nil {
		respondAccountError(c, err, "failed to update preferences")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Preferences updated successfully"})
}

// DeleteAccount godoc
// @Summary Delete the account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/{id} [delete]
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	if err := h.accounts.DeleteAccount(c.Request.Context(), c.Param("id")); err != nil {
		respondAccountError(c, err, "failed to delete account")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}
