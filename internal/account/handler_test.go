package account_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunirix/portal/internal/account"
	"github.com/edunirix/portal/internal/auth"
	"github.com/edunirix/portal/internal/authclient"
	"github.com/edunirix/portal/internal/navigation"
	"github.com/edunirix/portal/internal/session"
	"github.com/edunirix/portal/internal/shared"
	"github.com/edunirix/portal/internal/view"
	_ "github.com/edunirix/portal/testing"
)

type stubChanger struct {
	token  string
	change auth.PasswordChange
	user   *auth.User
	err    error
}

func (s *stubChanger) ChangePassword(ctx context.Context, token string, change auth.PasswordChange) (*auth.User, error) {
	s.token = token
	s.change = change
	return s.user, s.err
}

type harness struct {
	router   http.Handler
	sessions *session.Manager
	cookie   *http.Cookie
}

func newHarness(t *testing.T, changer account.PasswordChanger) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := session.NewManager(client, session.Options{CookieName: "test_session", Secret: "secret", TTL: time.Hour})
	templates, err := view.NewEngine()
	require.NoError(t, err)

	handler := account.NewHandler(account.HandlerParams{
		Client:    changer,
		Templates: templates,
		CSRF:      shared.NewCSRFManager("csrfsecret"),
		Routes:    navigation.DefaultRoutes(),
	})
	r := chi.NewRouter()
	r.Use(session.Middleware(sessions, nil))
	// Seeds the Store the way a successful login would.
	r.Post("/seed", func(w http.ResponseWriter, r *http.Request) {
		var user auth.User
		if err := json.Unmarshal([]byte(r.URL.Query().Get("user")), &user); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := session.StoreFromContext(r.Context()).Login(user, "tok-1"); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	handler.MountRoutes(r)
	return &harness{router: r, sessions: sessions}
}

func (h *harness) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == h.sessions.CookieName() {
			h.cookie = c
		}
	}
	return rec
}

func (h *harness) seed(t *testing.T, user auth.User) {
	t.Helper()
	raw, err := json.Marshal(user)
	require.NoError(t, err)
	rec := h.do(t, httptest.NewRequest(http.MethodPost, "/seed?user="+url.QueryEscape(string(raw)), nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func (h *harness) postForm(t *testing.T, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(t, req)
}

func passwordForm(current, next, confirm string) url.Values {
	return url.Values{"current_password": {current}, "new_password": {next}, "confirm_password": {confirm}}
}

func TestGuardRedirectsAnonymousToLogin(t *testing.T) {
	h := newHarness(t, &stubChanger{})

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/dashboard?tab=grades", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?next="+url.QueryEscape("/dashboard?tab=grades"), rec.Header().Get("Location"))

	rec = h.postForm(t, "/change-password", url.Values{})
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestDashboardGreetsUser(t *testing.T) {
	h := newHarness(t, &stubChanger{})
	h.seed(t, auth.User{ID: 1, Name: "Ana Lima", Email: "ana@school.edu"})

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hello, Ana")
	assert.Contains(t, rec.Body.String(), "Sign out")
}

func TestDashboardSendsFlaggedUsersToPasswordChange(t *testing.T) {
	h := newHarness(t, &stubChanger{})
	h.seed(t, auth.User{ID: 2, Name: "Bo", MustChangePassword: true})

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, navigation.DefaultPasswordChangePath, rec.Header().Get("Location"))

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/change-password", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Your account requires a new password")
}

func TestChangePasswordValidation(t *testing.T) {
	changer := &stubChanger{}
	h := newHarness(t, changer)
	h.seed(t, auth.User{ID: 3, Name: "Cy", IsFirstLogin: true})

	rec := h.postForm(t, "/change-password", passwordForm("old-password", "short", "short"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Use at least 8 characters")

	rec = h.postForm(t, "/change-password", passwordForm("old-password", "brand-new-pass", "brand-new-typo"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Passwords do not match")

	assert.Empty(t, changer.token, "invalid forms never reach the API")
}

func TestChangePasswordRejectedByAPI(t *testing.T) {
	changer := &stubChanger{err: &authclient.AuthenticationError{StatusCode: http.StatusUnauthorized, Message: "Current password is incorrect"}}
	h := newHarness(t, changer)
	h.seed(t, auth.User{ID: 4, Name: "Di", MustChangePassword: true})

	rec := h.postForm(t, "/change-password", passwordForm("wrong-password", "brand-new-pass", "brand-new-pass"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Current password is incorrect")
}

func TestChangePasswordSuccessUpdatesStore(t *testing.T) {
	changer := &stubChanger{user: &auth.User{ID: 5, Name: "Ed", Email: "ed@school.edu"}}
	h := newHarness(t, changer)
	h.seed(t, auth.User{ID: 5, Name: "Ed", Email: "ed@school.edu", IsFirstLogin: true})

	rec := h.postForm(t, "/change-password", passwordForm("old-password", "brand-new-pass", "brand-new-pass"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, navigation.DefaultDashboardPath, rec.Header().Get("Location"))
	assert.Equal(t, "tok-1", changer.token)
	assert.Equal(t, "brand-new-pass", changer.change.NewPassword)

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "cleared flags let the user through")
	assert.Contains(t, rec.Body.String(), "Your password has been updated.")
}
