package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/cxbootcamp/premiers/internal/accounts"
	"github.com/cxbootcamp/premiers/internal/config"
	"github.com/cxbootcamp/premiers/internal/http_server/handlers/activate"
	"github.com/cxbootcamp/premiers/internal/http_server/handlers/add_comment"
	"github.com/cxbootcamp/premiers/internal/http_server/handlers/change_email"
	"github.com/cxbootcamp/premiers/internal/http_server/handlers/change_password"
	"github.com/cxbootcamp/premiers/internal/http_server/handlers/deactivate"
	"github.com/cxbootcamp/premiers/internal/http_server/handlers/login"
	"github.com/cxbootcamp/premiers/internal/http_server/handlers/premiers_create"
	"github.com/cxbootcamp/premiers/internal/http_server/handlers/premiers_list"
	"github.com/cxbootcamp/premiers/internal/http_server/handlers/profile"
	"github.com/cxbootcamp/premiers/internal/http_server/handlers/refresh"
	"github.com/cxbootcamp/premiers/internal/http_server/handlers/reset"
	"github.com/cxbootcamp/premiers/internal/http_server/handlers/restore"
	"github.com/cxbootcamp/premiers/internal/http_server/handlers/signup"
	"github.com/cxbootcamp/premiers/internal/http_server/handlers/upload_image"
	"github.com/cxbootcamp/premiers/internal/http_server/handlers/verify"
	"github.com/cxbootcamp/premiers/internal/http_server/handlers/vote"
	"github.com/cxbootcamp/premiers/internal/http_server/metrics"
	"github.com/cxbootcamp/premiers/internal/http_server/middleware/authn"
	"github.com/cxbootcamp/premiers/internal/http_server/middleware/ratelimit"
	"github.com/cxbootcamp/premiers/internal/imagestore"
	"github.com/cxbootcamp/premiers/internal/lib/accesstoken"
	"github.com/cxbootcamp/premiers/internal/lib/api/validation"
	"github.com/cxbootcamp/premiers/internal/lib/logger"
	"github.com/cxbootcamp/premiers/internal/premiers"
	"github.com/cxbootcamp/premiers/internal/rabbitmq"
	"github.com/cxbootcamp/premiers/internal/storage/postgres"
	"github.com/cxbootcamp/premiers/internal/storage/redis"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := logger.Setup(cfg.Env)

	log.Info("starting premiers api", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	tokenGuard, err := redis.New(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("failed to connect redis", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer tokenGuard.Close()

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer msgBroker.Close()

	images, err := imagestore.New(ctx, cfg.S3)
	if err != nil {
		log.Error("failed to init image storage", slog.String("err", err.Error()))
		os.Exit(1)
	}

	accountTokens := accesstoken.New(cfg.Tokens.AccountSecret, cfg.Tokens.AccountTokenTTL)

	accountsService := accounts.New(
		log, storage, storage, accountTokens, tokenGuard, msgBroker,
		accounts.Config{
			JWTSecret:       cfg.Tokens.JWTSecret,
			AccessTokenTTL:  cfg.Tokens.AccessTokenTTL,
			RefreshTokenTTL: cfg.Tokens.RefreshTokenTTL,
			UsedTokenRetain: cfg.Tokens.UsedTokenRetain,
			FESiteURL:       cfg.FESiteURL,
		},
	)

	premiersService := premiers.New(log, storage, cfg.Pagination.PageSize, cfg.Pagination.MaxPageSize)

	router := setupRouter(log, validation.New(), cfg, accountsService, premiersService, images)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", slog.String("err", err.Error()))
	} else {
		log.Info("server stopped gracefully")
	}
}

func setupRouter(
	log *slog.Logger,
	validate *validator.Validate,
	cfg *config.Config,
	accountsService *accounts.Accounts,
	premiersService *premiers.Premiers,
	images *imagestore.ImageStore,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(metrics.Middleware)

	requireAuth := authn.New(cfg.Tokens.JWTSecret)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(ratelimit.Login()).Post("/", login.New(log, validate, accountsService))
			r.With(ratelimit.Token()).Post("/verify", verify.New(log, validate, cfg.Tokens.JWTSecret))
			r.With(ratelimit.Refresh()).Post("/refresh", refresh.New(log, validate, accountsService))
			r.With(ratelimit.SignUp()).Post("/sign-up", signup.New(log, validate, accountsService))
			r.With(ratelimit.Token()).Post("/activate", activate.New(log, validate, accountsService))
			r.With(ratelimit.Reset()).Post("/reset", reset.New(log, validate, accountsService))
			r.With(ratelimit.Token()).Post("/restore", restore.New(log, validate, accountsService))
		})

		r.Route("/profile", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", profile.New(log, accountsService))
			r.Post("/password/change", change_password.New(log, validate, accountsService))
			r.Patch("/email", change_email.New(log, validate, accountsService))
			r.Post("/deactivate", deactivate.New(log, accountsService))
		})

		r.Route("/premiers", func(r chi.Router) {
			r.Get("/", premiers_list.New(log, premiersService))

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", premiers_create.New(log, validate, premiersService))
				r.Post("/{id}/comments", add_comment.New(log, validate, premiersService))
				r.Post("/votes", vote.New(log, validate, premiersService))
			})
		})

		r.Route("/static", func(r chi.Router) {
			r.Use(requireAuth)
			r.With(ratelimit.Upload()).Post("/image", upload_image.New(log, images, cfg.Uploads.MaxImageBytes))
		})
	})

	r.Handle("/metrics", metrics.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
