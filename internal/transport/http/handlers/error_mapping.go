package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/ecotrack-accounts/internal/repository"
	"github.com/arklim/ecotrack-accounts/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

// accountErrorCases is ordered: an inconsistent-state error also matches the store
// error that caused it, and a duplicate email also matches ErrIdentityProvider.
var accountErrorCases = []ErrorCase{
	{Err: usecase.ErrInconsistentState, Status: http.StatusInternalServerError, Message: "internal server error"},
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "Invalid password"},
	{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "User not found"},
	{Err: repository.ErrAlreadyExists, Status: http.StatusConflict, Message: "email already registered"},
	{Err: usecase.ErrIdentityProvider, Status: http.StatusBadGateway, Message: "identity provider rejected the request"},
	{Err: usecase.ErrStoreRead, Status: http.StatusServiceUnavailable, Message: "account store unavailable"},
	{Err: usecase.ErrStoreWrite, Status: http.StatusInternalServerError, Message: "failed to save account"},
}

// respondAccountError writes the client-facing error for an account operation.
// Validation messages are returned verbatim. Server-side failures get a generic
// message and their cause is attached to the gin context for the access log.
func respondAccountError(c *gin.Context, err error, fallbackMessage string) {
	var vErr *usecase.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, vErr.Message))
		return
	}

	RespondWithMappedError(c, err, accountErrorCases, http.StatusInternalServerError, fallbackMessage)

	if c.Writer.Status() >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
}
