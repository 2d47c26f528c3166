package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunirix/portal/internal/auth"
	_ "github.com/edunirix/portal/testing"
)

type recordingNotifier struct {
	users []auth.User
}

func (n *recordingNotifier) NotifyFirstLogin(ctx context.Context, user auth.User) error {
	n.users = append(n.users, user)
	return nil
}

type apiHarness struct {
	router   http.Handler
	tokens   *auth.Tokens
	notifier *recordingNotifier
}

func newAPI(t *testing.T, accounts ...*auth.Account) *apiHarness {
	t.Helper()
	tokens := auth.NewTokens("jwt-secret", time.Hour)
	notifier := &recordingNotifier{}
	handler := auth.NewHandler(nil, auth.NewService(newStubRepo(accounts...), tokens), auth.HandlerConfig{
		Notifier:   notifier,
		LoginLimit: 100,
	})
	r := chi.NewRouter()
	r.Route("/api/auth", handler.MountRoutes)
	return &apiHarness{router: r, tokens: tokens, notifier: notifier}
}

func (h *apiHarness) post(t *testing.T, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func TestAPILoginSuccess(t *testing.T) {
	h := newAPI(t, &auth.Account{
		ID: 1, Email: "ana@school.edu", Name: "Ana", PasswordHash: mustHash(t, "secret-pass"),
		IsActive: true, IsFirstLogin: true,
	})

	rec := h.post(t, "/api/auth/login", `{"email":"ana@school.edu","password":"secret-pass"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res auth.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.Token)
	assert.True(t, res.User.IsFirstLogin)
	assert.Contains(t, rec.Body.String(), `"isFirstLogin":true`)
	require.Len(t, h.notifier.users, 1)
	assert.Equal(t, int64(1), h.notifier.users[0].ID)
}

func TestAPIWelcomeSentOnlyOnFirstSignIn(t *testing.T) {
	h := newAPI(t, &auth.Account{
		ID: 1, Email: "ana@school.edu", Name: "Ana", PasswordHash: mustHash(t, "secret-pass"),
		IsActive: true, IsFirstLogin: true,
	})

	for range 2 {
		rec := h.post(t, "/api/auth/login", `{"email":"ana@school.edu","password":"secret-pass"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"isFirstLogin":true`)
	}
	assert.Len(t, h.notifier.users, 1)
}

func TestAPILoginThrottledPerEmail(t *testing.T) {
	tokens := auth.NewTokens("jwt-secret", time.Hour)
	repo := newStubRepo(
		&auth.Account{ID: 1, Email: "ana@school.edu", PasswordHash: mustHash(t, "secret-pass"), IsActive: true},
		&auth.Account{ID: 2, Email: "bo@school.edu", PasswordHash: mustHash(t, "secret-pass"), IsActive: true},
	)
	handler := auth.NewHandler(nil, auth.NewService(repo, tokens), auth.HandlerConfig{LoginLimit: 2})
	r := chi.NewRouter()
	r.Route("/api/auth", handler.MountRoutes)
	h := &apiHarness{router: r, tokens: tokens}

	for range 2 {
		rec := h.post(t, "/api/auth/login", `{"email":"ana@school.edu","password":"nope"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := h.post(t, "/api/auth/login", `{"email":"ANA@school.edu","password":"secret-pass"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many login attempts. Please wait a minute and try again.", message(t, rec))

	rec = h.post(t, "/api/auth/login", `{"email":"bo@school.edu","password":"secret-pass"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPILoginFailures(t *testing.T) {
	h := newAPI(t, &auth.Account{ID: 1, Email: "ana@school.edu", PasswordHash: mustHash(t, "secret-pass"), IsActive: true})

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"bad json", `{"email":`, http.StatusBadRequest, "Invalid request body"},
		{"missing password", `{"email":"ana@school.edu"}`, http.StatusBadRequest, "Password is required"},
		{"wrong password", `{"email":"ana@school.edu","password":"nope"}`, http.StatusUnauthorized, "Invalid credentials"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.post(t, "/api/auth/login", tc.body, "")
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.message, message(t, rec))
		})
	}
	assert.Empty(t, h.notifier.users)
}

func TestAPIChangePassword(t *testing.T) {
	h := newAPI(t, &auth.Account{
		ID: 2, Email: "bo@school.edu", Name: "Bo", PasswordHash: mustHash(t, "old-password"),
		IsActive: true, MustChangePassword: true,
	})
	token, err := h.tokens.Issue(2)
	require.NoError(t, err)

	rec := h.post(t, "/api/auth/change-password", `{"currentPassword":"old-password","newPassword":"old-password"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "NewPassword must differ from CurrentPassword", message(t, rec))

	rec = h.post(t, "/api/auth/change-password", `{"currentPassword":"wrong","newPassword":"brand-new-pass"}`, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Current password is incorrect", message(t, rec))

	rec = h.post(t, "/api/auth/change-password", `{"currentPassword":"old-password","newPassword":"brand-new-pass"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		User auth.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Bo", body.User.Name)
	assert.False(t, body.User.MustChangePassword)
}

func TestAPIChangePasswordRequiresToken(t *testing.T) {
	h := newAPI(t)

	rec := h.post(t, "/api/auth/change-password", `{}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.post(t, "/api/auth/change-password", `{}`, "forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
