package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/shopsync/pkg/health"
	"github.com/utafrali/shopsync/pkg/middleware"
	"github.com/utafrali/shopsync/services/storefront/internal/service"
	"github.com/utafrali/shopsync/services/storefront/internal/session"
)

const serviceName = "storefront"

// RouterDeps are the collaborators the router wires into handlers.
type RouterDeps struct {
	Wishlist *service.WishlistService
	Cart     *service.CartService
	Session  *session.Provider
	Health   *health.Handler
	Logger   *slog.Logger

	CORS       middleware.CORSConfig
	PprofCIDRs []string // nil disables pprof
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.CORS(d.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(d.Logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(d.Logger, func(r *http.Request) string {
		return d.Session.Current(r.Context()).UserID
	}))

	// Health check endpoints
	r.Get("/health/live", d.Health.LivenessHandler())
	r.Get("/health/ready", d.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if d.PprofCIDRs != nil {
		middleware.RegisterPprof(r, d.PprofCIDRs, d.Logger)
	}

	wishlistHandler := NewWishlistHandler(d.Wishlist, d.Logger)
	cartHandler := NewCartHandler(d.Cart, d.Logger)
	sessionHandler := NewSessionHandler(d.Session, d.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", wishlistHandler.List)
			// Actions live under "-" so they never shadow a product id.
			r.Post("/-/refresh", wishlistHandler.Refresh)
			r.Post("/-/reconcile", wishlistHandler.Reconcile)
			r.Get("/{productId}", wishlistHandler.Has)
			r.Post("/{productId}", wishlistHandler.Add)
			r.Delete("/{productId}", wishlistHandler.Remove)
			r.Post("/{productId}/toggle", wishlistHandler.Toggle)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/select-all", cartHandler.SelectAll)
			r.Delete("/selected", cartHandler.RemoveSelected)

			r.Post("/items", cartHandler.AddItem)
			r.Route("/items/{productId}", func(r chi.Router) {
				r.Delete("/", cartHandler.RemoveItem)
				r.Put("/quantity", cartHandler.UpdateQuantity)
				r.Put("/variant", cartHandler.ChangeVariant)
				r.Put("/customization", cartHandler.SetCustomization)
				r.Delete("/customization", cartHandler.ClearCustomization)
				r.Post("/select", cartHandler.ToggleSelected)
			})
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessionHandler.Get)
			r.Post("/login", sessionHandler.Login)
			r.Post("/logout", sessionHandler.Logout)
		})
	})

	return r
}
