// Package gateway serves the dashboard route surface: the login flow, the
// authentication and role guards, and the proxied API traffic.
package gateway

import (
	_ "embed"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/go-chi/chi/v5"
	openapimw "github.com/go-openapi/runtime/middleware"

	"github.com/ogabek/istudy-gate/authstate"
	"github.com/ogabek/istudy-gate/session"
)

//go:embed openapi.yaml
var openapiSpec []byte

// ActivityTracker receives a Touch for every authenticated request; the
// session watchdog uses it to push back the inactivity deadline.
type ActivityTracker interface {
	Touch()
}

// Gateway holds the dependencies needed by the route handlers.
type Gateway struct {
	machine    *authstate.Machine
	controller *session.Controller
	activity   ActivityTracker
	proxy      http.Handler
	logger     *slog.Logger
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithLogger sets the structured logger. Defaults to a JSON logger on
// stderr.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// WithActivity wires the inactivity tracker.
func WithActivity(tracker ActivityTracker) Option {
	return func(g *Gateway) { g.activity = tracker }
}

// WithUpstream mounts the API reverse proxy against the given upstream,
// using transport for token attachment and expiry handling.
func WithUpstream(upstream *url.URL, transport http.RoundTripper) Option {
	return func(g *Gateway) { g.proxy = newProxy(upstream, transport) }
}

// New creates a Gateway.
func New(machine *authstate.Machine, controller *session.Controller, opts ...Option) *Gateway {
	g := &Gateway{
		machine:    machine,
		controller: controller,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return g
}

func (g *Gateway) touch() {
	if g.activity != nil {
		g.activity.Touch()
	}
}

// Router returns a chi.Router with the full route surface mounted.
func (g *Gateway) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})
	r.Handle("/docs*", openapimw.SwaggerUI(openapimw.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))
	r.Handle("/redoc*", openapimw.Redoc(openapimw.RedocOpts{
		SpecURL: "/openapi.yaml",
		Path:    "redoc",
	}, nil))

	r.Get("/login", g.LoginPage)
	r.Post("/login", g.LoginSubmit)
	r.Post("/logout", g.LogoutSubmit)

	if g.proxy != nil {
		r.Handle("/api/*", http.StripPrefix("/api", g.proxy))
	}

	admin := g.RequireRoles(authstate.RoleAdmin)
	reporting := g.RequireRoles(authstate.RoleAdmin, authstate.RoleSuperAdmin)
	super := g.RequireRoles(authstate.RoleSuperAdmin)

	r.Group(func(r chi.Router) {
		r.Use(g.RequireAuth)

		r.Get("/", g.rootRedirect)

		r.With(admin).Get("/dashboard", g.section("Dashboard", "dashboard"))
		r.With(admin).Get("/students", g.section("O'quvchilar", "students"))
		r.With(admin).Get("/students/{id}", g.section("O'quvchi", "student-details"))
		r.With(admin).Get("/teachers", g.section("O'qituvchilar", "teachers"))
		r.With(admin).Get("/teachers/{id}", g.section("O'qituvchi", "teacher-details"))
		r.With(admin).Get("/groups", g.section("Guruhlar", "groups"))
		r.With(admin).Get("/groups/{id}", g.section("Guruh", "group-details"))
		r.With(admin).Get("/payments", g.section("To'lovlar", "payments"))
		r.With(admin).Get("/expenses", g.section("Xarajatlar", "expenses"))
		r.With(admin).Get("/salary", g.section("Oyliklar", "salary"))
		r.With(admin).Get("/product-sales", g.section("Mahsulot savdosi", "product-sales"))

		r.With(reporting).Get("/reports", g.section("Hisobotlar", "reports"))

		r.With(super).Get("/users", g.section("Foydalanuvchilar", "users"))
		r.With(super).Get("/users/{id}", g.section("Foydalanuvchi", "user-details"))
		r.With(super).Get("/branches", g.section("Filiallar", "branches"))

		r.NotFound(g.notFound)
	})

	return r
}
