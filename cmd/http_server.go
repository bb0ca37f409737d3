package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/pix-deposit/internal"
	"github.com/frahmantamala/pix-deposit/internal/checkout"
	"github.com/frahmantamala/pix-deposit/internal/identity"
	paymentpkg "github.com/frahmantamala/pix-deposit/internal/payment"
	"github.com/frahmantamala/pix-deposit/internal/receipt"
	"github.com/frahmantamala/pix-deposit/internal/session"
	"github.com/frahmantamala/pix-deposit/internal/transport"
	"github.com/frahmantamala/pix-deposit/internal/transport/rest"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sql.DB
	Router *chi.Mux
	Core   *paymentCore
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		// event streams stay open for minutes; a write timeout would cut them
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		// closing the hub ends every event stream, so Shutdown does not wait on them
		deps.Core.Close(ctx)
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, log, err := setup()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, sqlDB, _, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	core, err := newPaymentCore(config, db, log)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize payments: %w", err)
	}

	store, err := session.NewStore(config.Session.RedisURL, config.Session.TTL, log)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	cookies := session.NewManager(config.Security.SessionSecret, config.Session.CookieName, config.Security.CookieSecure, log)
	receipts := receipt.NewIssuer(config.Security.ReceiptSecret, config.Security.ReceiptTTL)

	identityClient := identity.NewClient(identity.Config{
		BaseURL: config.Identity.BaseURL,
		Token:   config.Identity.Token,
		Package: config.Identity.Package,
		Timeout: config.Identity.Timeout,
	}, log)

	checkoutService := checkout.NewService(identityClient, core.Gateway, core.Repo, core.Bus, checkoutConfig(config.Payment), log)
	paymentService := paymentpkg.NewService(store, receipts, core.Gateway, core.Hub, log)

	base := transport.NewBaseHandler(log)
	router := chi.NewRouter()
	err = rest.RegisterAllRoutes(router, rest.Routes{
		Health: rest.NewHealthHandler(map[string]rest.Checker{
			"database": sqlDB.PingContext,
		}),
		Checkout:       checkout.NewHandler(base, checkoutService, store, cookies, receipts),
		Payment:        paymentpkg.NewHandler(base, paymentService),
		Cookies:        cookies,
		AllowedOrigins: splitOrigins(config.Server.AllowedOrigins),
	}, log)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to register routes: %w", err)
	}

	return &Dependencies{
		Config: config,
		Logger: log,
		DB:     sqlDB,
		Router: router,
		Core:   core,
	}, nil
}

func checkoutConfig(cfg internal.PaymentConfig) checkout.Config {
	return checkout.Config{
		CustomerEmail: cfg.CustomerEmail,
		CustomerPhone: cfg.CustomerPhone,
		ItemTitle:     cfg.ItemTitle,
		MaxAmount:     cfg.MaxAmount,
	}
}

func splitOrigins(s string) []string {
	var origins []string
	for _, origin := range strings.Split(s, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
