package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"tasklist/internal/auth"
	"tasklist/internal/handler"
	"tasklist/internal/middleware"
	"tasklist/internal/service"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	jwtService *auth.JWTService,
	userService service.UserService,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	todoHandler *handler.TodoHandler,
	adminHandler *handler.AdminHandler,
) {
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "task list API is running"})
	})
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Public routes
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	// Routes requiring a valid bearer token
	authed := e.Group("", middleware.Authenticated(jwtService, userService))

	authed.GET("/users/me", userHandler.Me)
	authed.PUT("/users/me", userHandler.UpdateMe)
	authed.POST("/users/me/change-password", userHandler.ChangePassword)

	authed.GET("/todos", todoHandler.List)
	authed.POST("/todos", todoHandler.Create)
	authed.PUT("/todos/:id", todoHandler.Update)
	authed.DELETE("/todos/:id", todoHandler.Delete)

	// Routes additionally requiring the admin role
	admin := authed.Group("/admin", middleware.RequireAdmin)
	admin.GET("/users", adminHandler.ListUsers)
	admin.DELETE("/users/:id", adminHandler.DeleteUser)
	admin.GET("/todos", adminHandler.ListTodos)
	admin.DELETE("/todos/:id", adminHandler.DeleteTodo)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
