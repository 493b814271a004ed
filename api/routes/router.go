package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	analyticscontrollers "github.com/angelmondragon/storefront-backend/api/controllers/analytics"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/internal/search"
	"github.com/angelmondragon/storefront-backend/internal/uploads"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Store is the Redis surface the HTTP middleware needs: counters for rate
// limits and key/value for idempotent replays.
type Store interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Deps carries everything NewRouter wires into handlers. A nil service makes
// its handlers answer 500 instead of panicking.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Store       Store
	Sessions    session.AccessSessionChecker
	Readiness   map[string]controllers.Pinger
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics

	Auth      auth.Service
	Users     users.Service
	Catalog   catalog.Service
	Cart      cart.Service
	Reviews   reviews.Service
	Orders    orders.Service
	Checkout  checkout.Service
	Payments  payments.Processor
	Search    search.Service
	Uploads   uploads.Service
	Analytics analyticscontrollers.ReportService
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.HTTPMetrics),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	loginPolicy := middleware.LoginPolicy(cfg.AuthRateLimit)
	registerPolicy := middleware.RegisterPolicy(cfg.AuthRateLimit)

	// Idempotency runs per route so it sees the full chi pattern.
	idem := middleware.Idempotency(d.Store, middleware.DefaultIdempotencyTTL, logg)
	moneyIdem := middleware.Idempotency(d.Store, middleware.MoneyIdempotencyTTL, logg)
	can := func(capability middleware.Capability) func(http.Handler) http.Handler {
		return middleware.RequireCapability(capability, logg)
	}
	maxUpload := cfg.Uploads.MaxBytes

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Readiness))
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	}

	// public
	r.Group(func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, d.Store, logg)).Post("/api/v1/auth/register", controllers.AuthRegister(d.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, d.Store, logg)).Post("/api/v1/auth/login", controllers.AuthLogin(d.Auth, logg))
		r.Post("/api/v1/auth/verify-email", controllers.AuthVerifyEmail(d.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, d.Store, logg)).Post("/api/v1/auth/reset-password", controllers.AuthResetPassword(d.Auth, logg))
		r.Post("/api/v1/auth/update-password", controllers.AuthUpdatePassword(d.Auth, logg))
		r.Post("/api/v1/auth/refresh", controllers.AuthRefresh(d.Auth, logg))

		r.Get("/api/v1/categories", controllers.CategoryList(d.Catalog, logg))
		r.Get("/api/v1/categories/{categoryId}", controllers.CategoryGet(d.Catalog, logg))
		r.Get("/api/v1/products", controllers.ProductList(d.Catalog, logg))
		r.Get("/api/v1/products/{productId}", controllers.ProductGet(d.Catalog, logg))
		r.Get("/api/v1/products/category/{categoryId}", controllers.ProductListByCategory(d.Catalog, logg))

		r.Get("/api/v1/reviews/product/{productId}", controllers.ReviewListByProduct(d.Reviews, logg))
		r.Get("/api/v1/reviews/rating/{productId}", controllers.ReviewRating(d.Reviews, logg))
		r.Get("/api/v1/reviews/{reviewId}", controllers.ReviewGet(d.Reviews, logg))

		r.Get("/api/v1/search", controllers.Search(d.Search, logg))
	})

	// authenticated
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
		r.Use(middleware.RateLimit(cfg.APIRateLimit, d.Store, logg))

		r.Post("/api/v1/auth/logout", controllers.AuthLogout(d.Auth, logg))
		r.Get("/api/v1/auth/profile", controllers.ProfileGet(d.Users, logg))
		r.Patch("/api/v1/auth/profile", controllers.ProfileUpdate(d.Users, logg))

		r.With(moneyIdem).Post("/api/v1/payments/process", controllers.PaymentProcess(d.Payments, logg))
		r.With(moneyIdem).Post("/api/v1/payments/refund", controllers.PaymentRefund(d.Payments, d.Orders, logg))
		r.Post("/api/v1/payments/verify", controllers.PaymentVerify(d.Payments, logg))

		r.With(moneyIdem).Post("/api/v1/orders", controllers.OrderCreate(d.Checkout, logg))
		r.Get("/api/v1/orders", controllers.OrderList(d.Orders, logg))
		r.Get("/api/v1/orders/{orderId}", controllers.OrderDetail(d.Orders, logg))
		r.With(moneyIdem).Delete("/api/v1/orders/{orderId}/cancel", controllers.OrderCancel(d.Orders, logg))
		r.Post("/api/v1/orders/{orderId}/archive", controllers.OrderArchive(d.Orders, logg))

		r.With(idem).Post("/api/v1/products/cart", controllers.CartAdd(d.Cart, logg))
		r.Get("/api/v1/products/cart/my", controllers.CartMine(d.Cart, logg))
		r.Put("/api/v1/products/cart/{productId}", controllers.CartUpdate(d.Cart, logg))
		r.Delete("/api/v1/products/cart/{productId}", controllers.CartRemove(d.Cart, logg))
		r.Delete("/api/v1/products/cart", controllers.CartClear(d.Cart, logg))

		r.Post("/api/v1/products/like/{productId}", controllers.ProductLike(d.Catalog, logg))
		r.Delete("/api/v1/products/like/{productId}", controllers.ProductUnlike(d.Catalog, logg))
		r.Get("/api/v1/products/likes/my", controllers.ProductLikesMine(d.Catalog, logg))

		r.With(idem).Post("/api/v1/reviews/product/{productId}", controllers.ReviewCreate(d.Reviews, logg))
		r.Get("/api/v1/reviews/user/my", controllers.ReviewListMine(d.Reviews, logg))
		r.Put("/api/v1/reviews/{reviewId}", controllers.ReviewUpdate(d.Reviews, logg))
		r.Delete("/api/v1/reviews/{reviewId}", controllers.ReviewDelete(d.Reviews, logg))

		r.Post("/api/v1/upload/profile-image", controllers.ProfileImageUpload(d.Uploads, d.Users, maxUpload, logg))

		// admin
		r.Group(func(r chi.Router) {
			r.Use(can(middleware.CapCatalogWrite))
			r.Post("/api/v1/categories", controllers.CategoryCreate(d.Catalog, logg))
			r.Put("/api/v1/categories/{categoryId}", controllers.CategoryUpdate(d.Catalog, logg))
			r.Delete("/api/v1/categories/{categoryId}", controllers.CategoryDelete(d.Catalog, logg))
			r.Post("/api/v1/products", controllers.ProductCreate(d.Catalog, logg))
			r.Put("/api/v1/products/{productId}", controllers.ProductUpdate(d.Catalog, logg))
			r.Delete("/api/v1/products/{productId}", controllers.ProductDelete(d.Catalog, logg))
			r.Post("/api/v1/products/{productId}/images", controllers.ProductAddImages(d.Catalog, logg))
			r.Delete("/api/v1/products/{productId}/images", controllers.ProductRemoveImage(d.Catalog, logg))
			r.Put("/api/v1/products/{productId}/main-image", controllers.ProductSetMainImage(d.Catalog, logg))
		})
		r.With(can(middleware.CapReviewsModerate)).Delete("/api/v1/reviews/admin/{reviewId}", controllers.ReviewAdminDelete(d.Reviews, logg))
		r.With(can(middleware.CapUploadsProduct)).Post("/api/v1/upload/product-image", controllers.ProductImageUpload(d.Uploads, maxUpload, logg))
		r.With(can(middleware.CapUsersRead)).Get("/api/v1/admin/users", controllers.AdminUsersList(d.Users, logg))
		r.With(can(middleware.CapOrdersManage)).Get("/api/v1/admin/orders", controllers.AdminOrderList(d.Orders, logg))
		r.With(can(middleware.CapOrdersManage), idem).Patch("/api/v1/admin/orders/{orderId}/status", controllers.AdminOrderUpdateStatus(d.Orders, logg))
		r.With(can(middleware.CapAnalyticsRead)).Get("/api/v1/admin/analytics/orders", analyticscontrollers.OrdersReport(d.Analytics, logg))
	})

	return r
}
