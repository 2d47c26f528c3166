package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/edunirix/portal/internal/account"
	"github.com/edunirix/portal/internal/auth"
	"github.com/edunirix/portal/internal/login"
	"github.com/edunirix/portal/internal/navigation"
	"github.com/edunirix/portal/internal/observability"
	"github.com/edunirix/portal/internal/session"
	"github.com/edunirix/portal/internal/shared"
	"github.com/edunirix/portal/jobs"
	"github.com/edunirix/portal/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Sessions       *session.Manager
	CSRF           *shared.CSRFManager
	Routes         navigation.Routes
	LoginHandler   *login.Handler
	AccountHandler *account.Handler
	AuthAPIHandler *auth.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	mwCfg := MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Sessions: params.Sessions,
		CSRF:     params.CSRF,
		Metrics:  params.Metrics,
	}

	r := chi.NewRouter()
	for _, mw := range BaseStack(mwCfg) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.AuthAPIHandler != nil {
		r.Route("/api/auth", params.AuthAPIHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		for _, mw := range PortalStack(mwCfg) {
			r.Use(mw)
		}
		r.Get("/", landing(params.Routes))
		params.LoginHandler.MountRoutes(r)
		params.AccountHandler.MountRoutes(r)
	})

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// landing sends visitors wherever the session would land them after login.
func landing(routes navigation.Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := session.StoreFromContext(r.Context())
		if store == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		out := routes.Decide(store.User(), "", navigation.SourcePassive)
		if out == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, out.Destination, http.StatusSeeOther)
	}
}

// staticCacheHandler caches static assets in the browser for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
