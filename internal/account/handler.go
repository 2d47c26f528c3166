package account

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/edunirix/portal/internal/auth"
	"github.com/edunirix/portal/internal/authclient"
	"github.com/edunirix/portal/internal/navigation"
	"github.com/edunirix/portal/internal/session"
	"github.com/edunirix/portal/internal/shared"
	"github.com/edunirix/portal/internal/view"
)

const (
	msgPasswordChanged = "Your password has been updated."
	msgChangeFailed    = "Password could not be changed. Please try again."
	msgNetwork         = "Network error. Please check your connection and try again."
)

// PasswordChanger updates the password of the account behind token.
type PasswordChanger interface {
	ChangePassword(ctx context.Context, token string, change auth.PasswordChange) (*auth.User, error)
}

// Handler serves the dashboard and the password-change page.
type Handler struct {
	logger    *slog.Logger
	client    PasswordChanger
	templates *view.Engine
	csrf      *shared.CSRFManager
	routes    navigation.Routes
	loginPath string
	validate  *validator.Validate
}

// HandlerParams groups Handler dependencies.
type HandlerParams struct {
	Logger    *slog.Logger
	Client    PasswordChanger
	Templates *view.Engine
	CSRF      *shared.CSRFManager
	Routes    navigation.Routes
	LoginPath string
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
		csrf:      p.CSRF,
		routes:    p.Routes.WithDefaults(),
		loginPath: loginPath,
		validate:  validator.New(),
	}
}

// MountRoutes registers the guarded account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireUser(h.loginPath))
		r.Get(h.routes.Dashboard, h.showDashboard)
		r.Get(h.routes.PasswordChange, h.showChangePassword)
		r.Post(h.routes.PasswordChange, h.handleChangePassword)
	})
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	store := session.StoreFromContext(r.Context())
	user := store.User()
	if out := h.routes.Decide(user, h.routes.Dashboard, navigation.SourcePassive); out.Destination != h.routes.Dashboard {
		http.Redirect(w, r, out.Destination, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "pages/dashboard.html", "Dashboard", nil)
}

type passwordForm struct {
	Current string `validate:"required"`
	New     string `validate:"required,min=8,nefield=Current"`
	Confirm string `validate:"required,eqfield=New"`
}

var fieldKeys = map[string]string{
	"Current": "current_password",
	"New":     "new_password",
	"Confirm": "confirm_password",
}

type changePasswordData struct {
	Forced bool
	Errors map[string]string
}

func (h *Handler) showChangePassword(w http.ResponseWriter, r *http.Request) {
	user := session.StoreFromContext(r.Context()).User()
	h.render(w, r, http.StatusOK, "pages/change_password.html", "Change password", changePasswordData{
		Forced: user.RequiresPasswordChange(),
		Errors: map[string]string{},
	})
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	store := session.StoreFromContext(r.Context())
	user := store.User()
	data := changePasswordData{Forced: user.RequiresPasswordChange(), Errors: map[string]string{}}

	form := passwordForm{
		Current: r.PostFormValue("current_password"),
		New:     r.PostFormValue("new_password"),
		Confirm: r.PostFormValue("confirm_password"),
	}
	if err := h.validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				data.Errors[fieldKeys[fe.Field()]] = fieldMessage(fe)
			}
		}
		h.render(w, r, http.StatusBadRequest, "pages/change_password.html", "Change password", data)
		return
	}

	token := store.Token()
	updated, err := h.client.ChangePassword(r.Context(), token, auth.PasswordChange{
		CurrentPassword: form.Current,
		NewPassword:     form.New,
	})
	if err != nil {
		status := http.StatusBadGateway
		data.Errors["general"] = msgNetwork
		if authErr, ok := authclient.IsAuthentication(err); ok {
			status = http.StatusBadRequest
			data.Errors["general"] = authErr.Message
			if strings.TrimSpace(authErr.Message) == "" {
				data.Errors["general"] = msgChangeFailed
			}
		}
		h.logger.Warn("change password", slog.Int64("user_id", user.ID), slog.Any("error", err))
		h.render(w, r, status, "pages/change_password.html", "Change password", data)
		return
	}

	if err := store.Login(*updated, token); err != nil {
		h.logger.Error("store updated user", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if sess := session.FromContext(r.Context()); sess != nil {
		sess.AddFlash(session.Flash{Kind: "success", Message: msgPasswordChanged})
	}
	h.logger.Info("password changed", slog.Int64("user_id", updated.ID))
	http.Redirect(w, r, h.routes.Dashboard, http.StatusSeeOther)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Use at least " + fe.Param() + " characters"
	case "nefield":
		return "The new password must differ from the current one"
	case "eqfield":
		return "Passwords do not match"
	default:
		return "Invalid value"
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	sess := session.FromContext(r.Context())
	csrfToken, err := h.csrf.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("csrf token", slog.Any("error", err))
	}
	td := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		User:        session.StoreFromContext(r.Context()).User(),
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, page, td); err != nil {
		h.logger.Error("render "+page, slog.Any("error", err))
	}
}
