package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tasklist/internal/apperrors"
	"tasklist/internal/auth"
	"tasklist/internal/cache"
	"tasklist/internal/middleware"
	"tasklist/internal/model"
	"tasklist/internal/service"
)

type testValidator struct {
	validator *validator.Validate
}

func (v *testValidator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}

// memoryUserRepo enforces the email unique index in memory so the full
// register/login/me flow can run without a database.
type memoryUserRepo struct {
	mu      sync.Mutex
	nextID  uint
	byEmail map[string]*model.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{byEmail: make(map[string]*model.User)}
}

func (r *memoryUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[user.Email]; exists {
		return apperrors.ErrEmailTaken
	}
	r.nextID++
	user.ID = r.nextID
	r.byEmail[user.Email] = user
	return nil
}

func (r *memoryUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.byEmail[email]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryUserRepo) FindByID(ctx context.Context, id uint) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.byEmail {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryUserRepo) Update(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byEmail[user.Email] = user
	return nil
}

func (r *memoryUserRepo) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for email, user := range r.byEmail {
		if user.ID == id {
			delete(r.byEmail, email)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *memoryUserRepo) List(ctx context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]model.User, 0, len(r.byEmail))
	for _, user := range r.byEmail {
		users = append(users, *user)
	}
	return users, nil
}

func newTestServer() *echo.Echo {
	repo := newMemoryUserRepo()
	jwtService := auth.NewJWTService("test-secret")
	hasher := auth.NewPasswordHasher()
	noCache := (*cache.Client)(nil)

	authService := service.NewAuthService(repo, hasher, jwtService, noCache)
	userService := service.NewUserService(repo, noCache)

	authHandler := NewAuthHandler(authService)
	userHandler := NewUserHandler(userService, authService)

	e := echo.New()
	e.Validator = &testValidator{validator: validator.New()}
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	authed := e.Group("", middleware.Authenticated(jwtService, userService))
	authed.GET("/users/me", userHandler.Me)
	authed.POST("/users/me/change-password", userHandler.ChangePassword)
	return e
}

func postJSON(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func postForm(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRegisterLoginMeScenario(t *testing.T) {
	e := newTestServer()

	// register Alice
	rec := postJSON(e, "/auth/register", `{"name":"Alice","email":"a@x.com","password":"pw123456"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":1`)
	assert.Contains(t, rec.Body.String(), `"role":"user"`)
	assert.NotContains(t, rec.Body.String(), "password")

	// login with the same credentials
	rec = postForm(e, "/auth/login", "username=a@x.com&password=pw123456")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token_type":"bearer"`)
	assert.Contains(t, rec.Body.String(), `"user_role":"user"`)

	var tokenResp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokenResp))
	require.NotEmpty(t, tokenResp.AccessToken)

	// the token resolves back to Alice
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tokenResp.AccessToken)
	me := httptest.NewRecorder()
	e.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"name":"Alice"`)
	assert.NotContains(t, me.Body.String(), "password")

	// a truncated token is rejected
	req = httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tokenResp.AccessToken[:len(tokenResp.AccessToken)-1])
	truncated := httptest.NewRecorder()
	e.ServeHTTP(truncated, req)
	assert.Equal(t, http.StatusUnauthorized, truncated.Code)
	assert.Equal(t, "Bearer", truncated.Header().Get(echo.HeaderWWWAuthenticate))
}

func TestRegisterValidationAndConflict(t *testing.T) {
	e := newTestServer()

	// field validation failure
	rec := postJSON(e, "/auth/register", `{"name":"Alice","email":"not-an-email","password":"pw123456"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// malformed body
	rec = postJSON(e, "/auth/register", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// duplicate email
	rec = postJSON(e, "/auth/register", `{"name":"Alice","email":"a@x.com","password":"pw123456"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = postJSON(e, "/auth/register", `{"name":"Other","email":"a@x.com","password":"pw123456"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "EMAIL_TAKEN")
}

func TestLoginFailuresAreUniform(t *testing.T) {
	e := newTestServer()

	rec := postJSON(e, "/auth/register", `{"name":"Alice","email":"a@x.com","password":"pw123456"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	wrongPassword := postForm(e, "/auth/login", "username=a@x.com&password=wrong")
	unknownEmail := postForm(e, "/auth/login", "username=ghost@x.com&password=pw123456")

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	// identical status and body: no user enumeration
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestChangePasswordFlow(t *testing.T) {
	e := newTestServer()

	rec := postJSON(e, "/auth/register", `{"name":"Alice","email":"a@x.com","password":"pw123456"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postForm(e, "/auth/login", "username=a@x.com&password=pw123456")
	require.Equal(t, http.StatusOK, rec.Code)
	var tokenResp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokenResp))

	change := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/users/me/change-password", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tokenResp.AccessToken)
		out := httptest.NewRecorder()
		e.ServeHTTP(out, req)
		return out
	}

	out := change(`{"current_password":"wrong","new_password":"pw654321"}`)
	assert.Equal(t, http.StatusBadRequest, out.Code)
	assert.Contains(t, out.Body.String(), "WRONG_PASSWORD")

	out = change(`{"current_password":"pw123456","new_password":"pw654321"}`)
	require.Equal(t, http.StatusOK, out.Code)

	// old password no longer works, new one does
	assert.Equal(t, http.StatusUnauthorized, postForm(e, "/auth/login", "username=a@x.com&password=pw123456").Code)
	assert.Equal(t, http.StatusOK, postForm(e, "/auth/login", "username=a@x.com&password=pw654321").Code)
}
