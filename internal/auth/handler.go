package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/edunirix/portal/internal/platform/httpx"
	"github.com/edunirix/portal/internal/shared"
)

const msgTooManyAttempts = "Too many login attempts. Please wait a minute and try again."

// Notifier is told about accounts signing in for the first time.
type Notifier interface {
	NotifyFirstLogin(ctx context.Context, user User) error
}

// Handler serves the JSON authentication API.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	notifier   Notifier
	validator *validator.Validate
	limiter   *httprate.RateLimiter
}

// HandlerConfig groups optional Handler settings.
type HandlerConfig struct {
	Notifier Notifier
	// LoginLimit is the number of login attempts allowed per email address and minute.
	LoginLimit int
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.LoginLimit
	if limit <= 0 {
		limit = 10
	}
	return &Handler{
		logger:    logger,
		service:   service,
		notifier:  cfg.Notifier,
		validator: validator.New(),
		limiter: httprate.NewRateLimiter(limit, time.Minute,
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Message(w, http.StatusTooManyRequests, msgTooManyAttempts)
			}),
		),
	}
}

// MountRoutes registers the API routes on r, typically mounted at /api/auth.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/change-password", h.changePassword)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := httpx.DecodeJSON(r, &creds); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(creds); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if h.limiter.RespondOnLimit(w, r, "login:"+NormalizeEmail(creds.Email)) {
		h.logger.Info("api login throttled")
		return
	}

	result, err := h.service.Login(r.Context(), creds)
	if err != nil {
		h.logFailure("api login", err)
		httpx.RespondError(w, err)
		return
	}

	if result.firstSignIn && h.notifier != nil {
		if err := h.notifier.NotifyFirstLogin(r.Context(), result.User); err != nil {
			h.logger.Warn("notify first login", slog.Int64("user_id", result.User.ID), slog.Any("error", err))
		}
	}
	h.logger.Info("api login", slog.Int64("user_id", result.User.ID))
	httpx.JSON(w, http.StatusOK, result)
}

type changePasswordResponse struct {
	User User `json:"user"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		httpx.RespondError(w, shared.ErrInvalidToken)
		return
	}
	account, err := h.service.Authorize(r.Context(), token)
	if err != nil {
		h.logFailure("authorize", err)
		httpx.RespondError(w, err)
		return
	}

	var change PasswordChange
	if err := httpx.DecodeJSON(r, &change); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(change); err != nil {
		httpx.RespondError(w, err)
		return
	}

	user, err := h.service.ChangePassword(r.Context(), account, change)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Message(w, http.StatusUnauthorized, "Current password is incorrect")
			return
		}
		h.logFailure("change password", err)
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("password changed", slog.Int64("user_id", user.ID))
	httpx.JSON(w, http.StatusOK, changePasswordResponse{User: *user})
}

func (h *Handler) logFailure(op string, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials),
		errors.Is(err, shared.ErrInvalidToken),
		errors.Is(err, shared.ErrInactiveAccount):
		h.logger.Info(op+" rejected", slog.Any("error", err))
	default:
		h.logger.Error(op, slog.Any("error", err))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}
