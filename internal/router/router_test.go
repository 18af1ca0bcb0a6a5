package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"userapi/internal/auth"
	"userapi/internal/cache"
	"userapi/internal/config"
	"userapi/internal/graph"
	"userapi/internal/handler"
	"userapi/internal/model"
	"userapi/internal/repository"
	"userapi/internal/service"
)

type testServer struct {
	e  *echo.Echo
	mr *miniredis.Miniredis
}

func newTestServer(t *testing.T, rpm int) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard, TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.User{}))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := repository.NewUserRepository(db, time.Second)
	userCache := cache.NewUserCache(cache.New(client, nil), time.Hour, nil)
	tokenStore := auth.NewTokenStore(client)
	authService := service.NewAuthService(repo, auth.NewJWTService("test-secret", 0, 0), tokenStore, userCache)
	userService := service.NewUserService(repo, userCache, tokenStore, nil)

	cfg := &config.Config{ServiceName: "userapi-test", CORSAllowedOrigins: []string{"*"}, RateLimitRPM: rpm}
	e := echo.New()
	Register(e, cfg, zap.NewNop(), authService, Handlers{
		Auth:    handler.NewAuthHandler(authService),
		User:    handler.NewUserHandler(userService),
		GraphQL: handler.NewGraphQLHandler(graph.NewSchema(), authService, userService),
	})
	return &testServer{e: e, mr: mr}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "a@x.com", "password": "p1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	registered := decode[handler.AuthResponse](t, rec)
	assert.Equal(t, "a@x.com", registered.User.Email)
	assert.NotEmpty(t, registered.Access)
	assert.NotEmpty(t, registered.Refresh)

	cached, err := s.mr.Get(cache.UserKey(registered.User.ID))
	require.NoError(t, err)
	var view model.UserView
	require.NoError(t, json.Unmarshal([]byte(cached), &view))
	assert.Equal(t, "a@x.com", view.Email)

	rec = s.do(t, http.MethodGet, "/api/auth/profile", registered.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@x.com", decode[model.UserView](t, rec).Email)

	s.mr.Del(cache.UserKey(registered.User.ID))
	rec = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode[map[string]interface{}](t, rec)["code"])
	assert.False(t, s.mr.Exists(cache.UserKey(registered.User.ID)))

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "A@X.com", "password": "p1"})
	require.Equal(t, http.StatusOK, rec.Code)
	loggedIn := decode[handler.AuthResponse](t, rec)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)
	assert.True(t, s.mr.Exists(cache.UserKey(registered.User.ID)))

	rec = s.do(t, http.MethodPatch, "/api/auth/profile", loggedIn.Access, map[string]string{"first_name": "Ann"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Ann", decode[model.UserView](t, rec).FirstName)

	cached, err = s.mr.Get(cache.UserKey(registered.User.ID))
	require.NoError(t, err)
	assert.Contains(t, cached, `"first_name":"Ann"`)

	rec = s.do(t, http.MethodPost, "/api/auth/token/refresh", "", map[string]string{"refresh": loggedIn.Refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	refreshed := decode[handler.RefreshResponse](t, rec)
	assert.NotEmpty(t, refreshed.Access)
	assert.Empty(t, refreshed.Refresh)

	rec = s.do(t, http.MethodPost, "/api/auth/logout", loggedIn.Access, map[string]string{"refresh": loggedIn.Refresh})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, s.mr.Exists(cache.UserKey(registered.User.ID)))

	rec = s.do(t, http.MethodPost, "/api/auth/token/refresh", "", map[string]string{"refresh": loggedIn.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", decode[map[string]interface{}](t, rec)["code"])

	rec = s.do(t, http.MethodGet, "/api/auth/profile", loggedIn.Access, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_Validation(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "bad", "password": "p1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Contains(t, body["fields"], "email")

	rec = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "a@x.com", "password": "p1"}).Code)
	rec = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "a@x.com", "password": "p1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutes(t *testing.T) {
	s := newTestServer(t, 0)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/auth/profile", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/users", "garbage", nil).Code)

	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "a@x.com", "password": "p1"})
	token := decode[handler.AuthResponse](t, rec).Access

	rec = s.do(t, http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.UserView](t, rec), 1)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/users/"+uuid.NewString(), token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/users/42", token, nil).Code)
}

func TestDeleteProfile(t *testing.T) {
	s := newTestServer(t, 0)
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "a@x.com", "password": "p1"})
	registered := decode[handler.AuthResponse](t, rec)

	rec = s.do(t, http.MethodDelete, "/api/auth/profile", registered.Access, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, s.mr.Exists(cache.UserKey(registered.User.ID)))

	rec = s.do(t, http.MethodPost, "/api/auth/token/refresh", "", map[string]string{"refresh": registered.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGraphQLEndpoint(t *testing.T) {
	s := newTestServer(t, 0)
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "a@x.com", "password": "p1", "first_name": "Ann"})
	token := decode[handler.AuthResponse](t, rec).Access

	rec = s.do(t, http.MethodPost, "/graphql", token, handler.GraphQLRequest{Query: `{ me { email first_name } }`})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"me":{"email":"a@x.com","first_name":"Ann"}}}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/graphql", "", handler.GraphQLRequest{Query: `{ me { email } }`})
	assert.JSONEq(t, `{"data":{"me":null}}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/graphql", "garbage", handler.GraphQLRequest{Query: `{ me { email } }`})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/graphql", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 1)

	first := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "p1"})
	assert.Equal(t, http.StatusUnauthorized, first.Code)
	second := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "p1"})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, 0)
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCustomValidator(t *testing.T) {
	v := &CustomValidator{}
	err := v.Validate(&handler.LoginRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
	assert.NoError(t, v.Validate(&handler.LoginRequest{Email: "a@x.com", Password: "p"}))
}
