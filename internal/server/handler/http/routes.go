// Package http provides the HTTP handlers of the companion backend and
// their routing.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atinyakov/GuardPine/internal/middleware"
	"github.com/atinyakov/GuardPine/internal/models"
)

// Mounter registers a resource's verbs under a path.
type Mounter interface {
	Mount(r chi.Router, path string)
}

// Handlers groups the handlers served by the router.
type Handlers struct {
	Users       *UserHandler
	Permissions *PermissionHandler
	Pairing     *PairingHandler
	WeChat      *WeChatHandler
	Info        *InfoHandler
	Home        *HomeHandler
	// Resources maps a path ("/reminder") to its owned resource handler.
	Resources map[string]Mounter
}

// RouterConfig holds the cross-cutting dependencies of the router.
type RouterConfig struct {
	Auth        middleware.Authenticator
	Observer    middleware.RequestObserver
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
}

// NewRouter constructs and returns an HTTP handler that serves the API.
//
// Middleware chain (applied in order):
//  1. RequestID and Recoverer
//  2. WithRequestLogging(logger) and WithMetrics
//  3. CORS for the configured origins
//  4. AllowContentType for JSON and form bodies
//
// Account, profile, resource, permission and pairing routes that act as a
// user sit behind BearerAuth; lookups, login and the directory are public.
func NewRouter(h Handlers, cfg RouterConfig, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))
	if cfg.Observer != nil {
		r.Use(middleware.WithMetrics(cfg.Observer))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chiMiddleware.AllowContentType("application/json", "application/x-www-form-urlencoded", "multipart/form-data"))

	// Public endpoints
	r.Get("/", h.Home.Root)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/home/{n}", h.Home.Cards)
	r.Get(homeImagePath, h.Home.Image)

	r.Get("/user", h.Users.Exists)
	r.Put("/user", h.Users.Register)
	r.Post("/user", h.Users.Login)
	r.Get("/profile/{id}", h.Users.Profile)
	r.Get("/avatar/{id}", h.Users.GetMeta(models.MetaAvatar))
	r.Get("/name/{id}", h.Users.GetMeta(models.MetaName))

	r.Get("/openid", h.WeChat.OpenID)
	r.Get("/wechat/user", h.WeChat.Profile)
	r.Put("/wechat/user", h.WeChat.Register)
	r.Post("/wechat/user", h.WeChat.Login)

	r.Get("/articles", h.Info.Articles)
	r.Get("/article/{articleId}", h.Info.Article)
	r.Get("/resthomes", h.Info.Resthomes)
	r.Get("/resthome/{resthomeId}", h.Info.Resthome)
	r.Get("/cities", h.Info.Cities)
	r.Get("/search", h.Info.Search)
	r.Get("/parse", h.Info.Parse)
	r.Get("/proxy", h.Info.Proxy)

	// Protected group: requires a valid bearer token
	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.Auth))

		r.Patch("/user", h.Users.ResetPassword)
		r.Delete("/user", h.Users.Erase)
		r.Put("/avatar", h.Users.SetMeta(models.MetaAvatar, "url"))
		r.Put("/name", h.Users.SetMeta(models.MetaName, "name"))
		r.Post("/bio", h.Users.SetMeta(models.MetaBio, "bio"))
		r.Get("/geo", h.Users.Location)
		r.Put("/geo", h.Users.SetLocation)

		r.Get("/permission", h.Permissions.List)
		r.Get("/permission/granted", h.Permissions.Granted)
		r.Put("/permission", h.Permissions.Grant)
		r.Delete("/permission", h.Permissions.Revoke)

		r.Post("/pairing", h.Pairing.Issue)
		r.Put("/pairing", h.Pairing.Consume)

		for path, m := range h.Resources {
			m.Mount(r, path)
		}
	})

	return r
}
