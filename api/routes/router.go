package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/counterline/poscore/api/controllers"
	"github.com/counterline/poscore/api/middleware"
	cartsvc "github.com/counterline/poscore/internal/cart"
	sessionsvc "github.com/counterline/poscore/internal/cashsession"
	catalogsvc "github.com/counterline/poscore/internal/catalog"
	"github.com/counterline/poscore/internal/finalizer"
	heldsvc "github.com/counterline/poscore/internal/heldorders"
	paysvc "github.com/counterline/poscore/internal/payments"
	syncsvc "github.com/counterline/poscore/internal/syncengine"
	"github.com/counterline/poscore/pkg/config"
	"github.com/counterline/poscore/pkg/db"
	"github.com/counterline/poscore/pkg/logger"
	"github.com/counterline/poscore/pkg/redis"
)

// NewRouter assembles the terminal's local HTTP surface. Everything except
// health is behind device auth: the register UI holds a token bound to this
// terminal.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	cartService cartsvc.Service,
	catalogService catalogsvc.Service,
	heldService heldsvc.Service,
	sessionService sessionsvc.Service,
	paymentService paysvc.Service,
	finalizerService finalizer.Service,
	syncService syncsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.DeviceAuth(cfg.Auth, cfg.App.TerminalID, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(cartService, logg))
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(cartService, logg))
			r.Post("/discount", controllers.CartApplyDiscount(cartService, logg))
			r.Delete("/discount", controllers.CartRemoveDiscount(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products/{productId}", controllers.ProductGet(catalogService, logg))
			r.Get("/products/barcode/{barcode}", controllers.ProductByBarcode(catalogService, logg))
			r.Get("/customers/{customerId}", controllers.CustomerGet(catalogService, logg))
			r.Get("/customers", controllers.CustomerSearch(catalogService, logg))
		})

		r.Route("/held-orders", func(r chi.Router) {
			r.Post("/", controllers.HoldOrder(heldService, logg))
			r.Get("/", controllers.ListHeldOrders(heldService, logg))
			r.Post("/{orderId}/resume", controllers.ResumeOrder(heldService, logg))
			r.Post("/{orderId}/discard", controllers.DiscardOrder(heldService, logg))
		})

		r.Route("/cash-session", func(r chi.Router) {
			r.Post("/open", controllers.SessionOpen(sessionService, logg))
			r.Post("/movements", controllers.SessionMovement(sessionService, logg))
			r.Post("/close", controllers.SessionClose(sessionService, logg))
			r.Get("/", controllers.SessionCurrent(sessionService, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.PaymentStart(paymentService, logg))
			r.Get("/current", controllers.PaymentCurrent(paymentService, logg))
			r.Post("/current/cash", controllers.PaymentTenderCash(paymentService, logg))
			r.Post("/current/await", controllers.PaymentAwait(paymentService, logg))
			r.Post("/current/verify", controllers.PaymentVerify(paymentService, logg))
			r.Post("/current/cancel", controllers.PaymentCancel(paymentService, logg))
		})

		r.Post("/sales/commit", controllers.SaleCommit(finalizerService, logg))

		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", controllers.SyncStatus(syncService, logg))
			r.Post("/drain", controllers.SyncDrain(syncService, logg))
		})
	})

	return r
}
