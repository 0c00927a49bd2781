package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"repairchat/internal/auth"
	"repairchat/internal/capabilities"
	"repairchat/internal/config"
	"repairchat/internal/domain/models/ratelimit"
	"repairchat/internal/handler"
	"repairchat/internal/middleware"
	"repairchat/internal/repository"
	serviceAuth "repairchat/internal/service/auth"
	serviceLLM "repairchat/internal/service/llm"
	serviceRatelimit "repairchat/internal/service/ratelimit"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup structured logging
	logger, logCloser, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to setup logging: %v", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"guest_rate_limit", cfg.GuestRateLimit,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// JWT verification is optional: without it every caller is a guest
	var jwtVerifier auth.JWTVerifier
	if cfg.AuthJWKSURL != "" {
		jwtVerifier, err = auth.NewJWTVerifier(cfg.AuthJWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer jwtVerifier.Close()
	} else {
		logger.Warn("AUTH_JWKS_URL not set, all requests are treated as guests")
	}

	// Repositories
	backend, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer backend.Close()

	authorizer := serviceAuth.NewOwnerBasedAuthorizer(backend.Chats)

	// Completion provider, resolved against the model catalogue
	capabilityRegistry, err := capabilities.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to initialize capability registry: %v", err)
	}
	provider, model, err := serviceLLM.SetupProvider(cfg, capabilityRegistry, logger)
	if err != nil {
		log.Fatalf("Failed to setup completion provider: %v", err)
	}

	llmServices := serviceLLM.SetupServices(
		backend.Chats,
		backend.Turns,
		backend.Topics,
		backend.TxManager,
		authorizer,
		provider,
		model,
		cfg,
		logger,
	)

	// Guest rate limiting
	limiter := serviceRatelimit.NewLimiter(backend.Counters, backend.TxManager, logger)
	guestLimiter := middleware.NewGuestLimiter(limiter, ratelimit.Policy{
		Limit:  cfg.GuestRateLimit,
		Window: config.GuestRateWindow,
	})

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()
	routes := &handler.Routes{
		Chat:   handler.NewChatHandler(llmServices.Chat, llmServices.Conversation, logger),
		Health: handler.NewHealthHandler(backend.Pinger()),
		Models: handler.NewModelsHandler(model.Provider, model.Model, logger, capabilityRegistry),
		Guests: guestLimiter,
	}
	routes.Register(mux)

	// Build middleware chain
	// Order: CORS → RequestID → Recovery → Auth → Routes
	proxies, err := middleware.NewProxyPolicy(cfg)
	if err != nil {
		log.Fatalf("Invalid proxy configuration: %v", err)
	}
	var h http.Handler = mux
	h = middleware.Authenticate(jwtVerifier, proxies, logger)(h)
	h = middleware.Recovery(logger)(h)
	h = middleware.RequestID(h)

	// CORS - Must be outermost to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.CompletionTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.GuestCounterTTL > 0 {
		sweeper := serviceRatelimit.NewSweeper(backend.Counters, cfg.GuestCounterTTL, logger)
		g.Go(func() error {
			logger.Info("guest counter sweeper started",
				"ttl", cfg.GuestCounterTTL.String(),
				"interval", cfg.GuestCounterSweepEvery.String(),
			)
			return serviceRatelimit.Run(gctx, sweeper, cfg.GuestCounterSweepEvery, logger)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
