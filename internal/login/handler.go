package login

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/edunirix/portal/internal/navigation"
	"github.com/edunirix/portal/internal/observability"
	"github.com/edunirix/portal/internal/session"
	"github.com/edunirix/portal/internal/shared"
	"github.com/edunirix/portal/internal/view"
)

// RequestedPathKey is the cookie session key holding the path captured when
// the login view was entered.
const RequestedPathKey = "requested_path"

// Handler serves the login view.
type Handler struct {
	logger    *slog.Logger
	client    Authenticator
	templates *view.Engine
	sessions  *session.Manager
	csrf      *shared.CSRFManager
	routes    navigation.Routes
	loginPath string
	metrics   *observability.Metrics
	validate  *validator.Validate
}

// HandlerParams groups Handler dependencies.
type HandlerParams struct {
	Logger    *slog.Logger
	Client    Authenticator
	Templates *view.Engine
	Sessions  *session.Manager
	CSRF      *shared.CSRFManager
	Routes    navigation.Routes
	LoginPath string
	Metrics   *observability.Metrics
}

// NewHandler constructs a Handler.
func NewHandler(p HandlerParams) *Handler {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loginPath := p.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}
	return &Handler{
		logger:    logger,
		client:    p.Client,
		templates: p.Templates,
		sessions:  p.Sessions,
		csrf:      p.CSRF,
		routes:    p.Routes,
		loginPath: loginPath,
		metrics:   p.Metrics,
		validate:  validator.New(),
	}
}

// MountRoutes registers the login and logout routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get(h.loginPath, h.showLogin)
	r.Post(h.loginPath, h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type pageData struct {
	Form *Form
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	store := session.StoreFromContext(r.Context())
	if sess == nil || store == nil {
		h.logger.Error("login view without session")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	requested := navigation.SanitizeRequestedPath(r.URL.Query().Get("next"), h.loginPath)
	if requested != "" {
		sess.Set(RequestedPathKey, requested)
	} else {
		sess.Delete(RequestedPathKey)
	}

	pending := &PendingNavigation{}
	effect := AttachRedirectEffect(store, h.routes, requested, pending)
	defer effect.Detach()

	if out := pending.Outcome(); out != nil {
		http.Redirect(w, r, out.Destination, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, NewForm(), nil)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := session.FromContext(r.Context())
	store := session.StoreFromContext(r.Context())
	if sess == nil || store == nil {
		h.logger.Error("login submit without session")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	requested := sess.Get(RequestedPathKey)

	pending := &PendingNavigation{}
	effect := AttachRedirectEffect(store, h.routes, requested, pending)
	defer effect.Detach()

	// Already signed in: the observer has decided, nothing to submit.
	if out := pending.Outcome(); out != nil {
		http.Redirect(w, r, out.Destination, http.StatusSeeOther)
		return
	}

	form := NewForm()
	form.SetField(FieldEmail, r.PostFormValue(FieldEmail))
	form.SetField(FieldPassword, r.PostFormValue(FieldPassword))

	v := NewView(form, ViewParams{
		Client:        h.client,
		Store:         store,
		Routes:        h.routes,
		RequestedPath: requested,
		Navigator:     pending,
		Validate:      h.validate,
	})
	result, err := v.Submit(r.Context())
	h.metrics.ObserveLogin(result.String())

	if result != ResultSuccess {
		if err != nil {
			h.logger.Warn("login failed", slog.String("result", result.String()), slog.Any("error", err))
		}
		form.Password = ""
		h.render(w, r, statusFor(result), form, nil)
		return
	}

	sess.Renew()
	sess.Delete(RequestedPathKey)
	user := store.User()
	h.logger.Info("login succeeded",
		slog.Int64("user_id", user.ID),
		slog.Bool("first_login", user.IsFirstLogin),
		slog.Bool("must_change_password", user.MustChangePassword),
	)

	out := pending.Outcome()
	if out == nil {
		http.Redirect(w, r, h.routes.Decide(user, requested, navigation.SourcePassive).Destination, http.StatusSeeOther)
		return
	}
	if out.Delay > 0 {
		// Keep the notice on screen; the browser follows the Refresh header.
		rf := &view.Refresh{Seconds: int(math.Ceil(out.Delay.Seconds())), URL: out.Destination}
		w.Header().Set("Refresh", fmt.Sprintf("%d; url=%s", rf.Seconds, rf.URL))
		h.render(w, r, http.StatusOK, form, rf)
		return
	}
	if info := form.Info(); info != "" {
		sess.AddFlash(session.Flash{Kind: "info", Message: info})
	}
	http.Redirect(w, r, out.Destination, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if store := session.StoreFromContext(r.Context()); store != nil {
		store.Logout()
	}
	if sess != nil {
		h.sessions.Destroy(sess)
	}
	http.Redirect(w, r, h.loginPath, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, form *Form, rf *view.Refresh) {
	sess := session.FromContext(r.Context())
	csrfToken, err := h.csrf.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("csrf token", slog.Any("error", err))
	}
	data := view.TemplateData{
		Title:       "Sign in",
		CSRFToken:   csrfToken,
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Refresh:     rf,
		Data:        pageData{Form: form},
	}
	if err := h.templates.RenderStatus(w, status, "pages/login.html", data); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

func statusFor(result Result) int {
	switch result {
	case ResultInvalid:
		return http.StatusBadRequest
	case ResultRejected:
		return http.StatusUnauthorized
	case ResultUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
