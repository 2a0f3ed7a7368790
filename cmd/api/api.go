package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"shamba/internal/auth"
	"shamba/internal/compliance"
	"shamba/internal/events"
	"shamba/internal/ledger"
	"shamba/internal/mailer"
	"shamba/internal/notifications"
	"shamba/internal/ratelimiter"
	"shamba/internal/refcode"
	"shamba/internal/store"
)

type application struct {
	config        config
	store         store.Storage
	logger        *zap.SugaredLogger
	cld           *cloudinary.Cloudinary
	mailer        mailer.Client
	authenticator auth.Authenticator
	resolver      *auth.Resolver
	broker        *events.Broker
	push          notifications.PushSender
	anchorer      *ledger.Anchorer
	compliance    *compliance.Dispatcher
	refcodes      *refcode.Generator
	rateLimiter   ratelimiter.Limiter
}

type config struct {
	addr        string
	db          dbConfig
	env         string
	apiURL      string
	mail        mailConfig
	frontendURL string
	auth        authConfig
	ledger      ledgerConfig
	stream      streamConfig
	rateLimiter ratelimiter.Config
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	refreshSecret   string
	secret          string
	accessTokenExp  time.Duration
	refreshTokenExp time.Duration
	iss             string
}

type basicConfig struct {
	user string
	pass string
}

type mailConfig struct {
	exp       time.Duration
	fromEmail string
	smtp      smtpConfig
}

type smtpConfig struct {
	host     string
	port     int
	username string
	password string
}

type dbConfig struct {
	addr        string
	maxConns    int32
	maxIdleTime string
}

type ledgerConfig struct {
	endpoint          string
	topicID           string
	anchorWorkers     int
	anchorQueue       int
	complianceWorkers int
	complianceQueue   int
}

type streamConfig struct {
	heartbeat   time.Duration
	idleTimeout time.Duration
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(app.RateLimiterMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Every route sees the token filter. It never rejects on its own: a bad
	// or missing token just leaves the request anonymous and the guards
	// below return 401/403.
	r.Use(app.ContextAuthMiddleware)

	// The event stream is long-lived, so it is mounted outside the request
	// timeout group. Its lifetime is governed by the broker's idle timeout
	// and client disconnects instead.
	r.Get("/v1/requests/{requestID}/events", app.requestEventsHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Mount("/v1", app.apiRoutes())
	})
	return r
}

func (app *application) apiRoutes() http.Handler {
	r := chi.NewRouter()

	r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
	r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

	// Public routes
	r.Route("/authentication", func(r chi.Router) {
		r.Post("/user", app.registerUserHandler)
		r.Post("/token", app.createTokenHandler)
		r.Post("/refresh", app.refreshTokenHandler)
	})
	r.Put("/users/activate/{token}", app.activateUserHandler)

	r.Route("/users", func(r chi.Router) {
		r.Use(app.requireAuthenticated)
		r.Post("/logout", app.logoutHandler)
		r.Post("/push-token", app.registerPushTokenHandler)
		r.Delete("/push-token", app.deletePushTokenHandler)
		r.Delete("/", app.deactivateUserHandler)
		r.With(app.requireRole(store.RoleAdmin)).Post("/{userID}/roles", app.grantRoleHandler)
	})

	r.Route("/requests", func(r chi.Router) {
		r.Get("/", app.listRequestsHandler)
		r.With(app.requireRole(store.RoleBuyer)).Post("/", app.createRequestHandler)
		r.With(app.requireRole(store.RoleBuyer)).Get("/mine", app.listBuyerRequestsHandler)

		r.Route("/{requestID}", func(r chi.Router) {
			r.Get("/", app.getRequestHandler)
			r.Get("/orders", app.listRequestOrdersHandler)
			r.With(app.requireRole(store.RoleBuyer)).Post("/cancel", app.cancelRequestHandler)
			r.With(app.requireRole(store.RoleBuyer)).Post("/close", app.closeRequestHandler)
			r.With(app.requireRole(store.RoleFarmer)).Post("/orders", app.createOrderHandler)
		})
	})

	r.Route("/orders/{orderID}", func(r chi.Router) {
		r.Use(app.requireAuthenticated)
		r.Get("/", app.getOrderHandler)
		r.Get("/ledger", app.listOrderLedgerHandler)
		r.With(app.requireRole(store.RoleBuyer)).Post("/accept", app.acceptOrderHandler)
		r.With(app.requireRole(store.RoleFarmer)).Post("/confirm-supply", app.confirmSupplyHandler)
		r.With(app.requireRole(store.RoleBuyer)).Post("/confirm-payment", app.confirmPaymentHandler)
		r.Post("/cancel", app.cancelOrderHandler)
	})

	r.Route("/listings", func(r chi.Router) {
		r.Get("/", app.listListingsHandler)
		r.Get("/{listingID}", app.getListingHandler)

		r.Group(func(r chi.Router) {
			r.Use(app.requireRole(store.RoleFarmer))
			r.Post("/", app.createListingHandler)
			r.Post("/{listingID}/close", app.closeListingHandler)
			r.Post("/{listingID}/photos", app.uploadListingPhotoHandler)
			r.Delete("/{listingID}/photos", app.deleteListingPhotoHandler)
		})
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		// Stop taking requests, then drain the event streams and the
		// ledger/compliance queues.
		err := srv.Shutdown(ctx)
		app.broker.Close()
		app.anchorer.Stop()
		app.compliance.Stop()

		shutdown <- err
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}

func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	data := map[string]string{
		"status":  "ok",
		"env":     app.config.env,
		"version": version,
	}
	if err := app.jsonResponse(w, http.StatusOK, data); err != nil {
		app.internalServerError(w, r, err)
	}
}
