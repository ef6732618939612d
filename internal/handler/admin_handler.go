package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"tasklist/internal/service"
)

// AdminHandler handles endpoints restricted to the admin role.
type AdminHandler struct {
	userService service.UserService
	todoService service.TodoService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(userService service.UserService, todoService service.TodoService) *AdminHandler {
	return &AdminHandler{userService: userService, todoService: todoService}
}

// ListUsers godoc
// @Summary List all users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.User
// @Failure 401 {object} apperrors.ErrorResponse
// @Failure 403 {object} apperrors.ErrorResponse
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c echo.Context) error {
	users, err := h.userService.ListUsers(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, users)
}

// DeleteUser godoc
// @Summary Delete a user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} map[string]string
// @Failure 401 {object} apperrors.ErrorResponse
// @Failure 403 {object} apperrors.ErrorResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.userService.DeleteUser(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "user deleted successfully",
	})
}

// ListTodos godoc
// @Summary List all todos across users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Todo
// @Failure 401 {object} apperrors.ErrorResponse
// @Failure 403 {object} apperrors.ErrorResponse
// @Router /admin/todos [get]
func (h *AdminHandler) ListTodos(c echo.Context) error {
	todos, err := h.todoService.ListAll(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, todos)
}

// DeleteTodo godoc
// @Summary Delete any todo
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Todo ID"
// @Success 200 {object} map[string]string
// @Failure 401 {object} apperrors.ErrorResponse
// @Failure 403 {object} apperrors.ErrorResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /admin/todos/{id} [delete]
func (h *AdminHandler) DeleteTodo(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.todoService.AdminDelete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "todo deleted successfully",
	})
}
