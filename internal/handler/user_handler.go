package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"userapi/internal/errors"
	"userapi/internal/middleware"
	"userapi/internal/service"
)

// UserHandler serves the caller's profile and the user directory.
type UserHandler struct {
	svc service.UserService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// GetProfile godoc
// @Summary Current user's profile
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.UserView
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/profile [get]
func (h *UserHandler) GetProfile(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return middleware.ToHTTPError(errors.ErrUnauthenticated)
	}
	view, err := h.svc.Profile(c.Request().Context(), claims.UserID)
	if err != nil {
		return middleware.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}

// UpdateProfile godoc
// @Summary Partially update the current user's profile
// @Tags profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ProfileUpdate true "Fields to change"
// @Success 200 {object} model.UserView
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/profile [patch]
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return middleware.ToHTTPError(errors.ErrUnauthenticated)
	}
	var update service.ProfileUpdate
	if err := bindAndValidate(c, &update); err != nil {
		return err
	}
	view, err := h.svc.UpdateProfile(c.Request().Context(), claims.UserID, update)
	if err != nil {
		return middleware.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}

// DeleteProfile godoc
// @Summary Delete the current user's account
// @Tags profile
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/profile [delete]
func (h *UserHandler) DeleteProfile(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return middleware.ToHTTPError(errors.ErrUnauthenticated)
	}
	if err := h.svc.DeleteAccount(c.Request().Context(), claims.UserID); err != nil {
		return middleware.ToHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetUser godoc
// @Summary Get user by id
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} model.UserView
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return middleware.ToHTTPError(errors.NewValidationError("id", "must be a valid UUID"))
	}
	view, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return middleware.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.UserView
// @Router /users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	users, err := h.svc.ListUsers(c.Request().Context())
	if err != nil {
		return middleware.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, users)
}
