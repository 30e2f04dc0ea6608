package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/jmbcrafts/storefront/internal/cart"
	"github.com/jmbcrafts/storefront/internal/catalog"
	"github.com/jmbcrafts/storefront/internal/checkout"
	"github.com/jmbcrafts/storefront/internal/config"
	"github.com/jmbcrafts/storefront/internal/dispatch"
	"github.com/jmbcrafts/storefront/internal/httpapi"
	"github.com/jmbcrafts/storefront/internal/inventory"
	"github.com/jmbcrafts/storefront/internal/payment"
	"github.com/jmbcrafts/storefront/internal/pricing"
	"github.com/jmbcrafts/storefront/internal/relay"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.With().Str("app", cfg.AppName).Logger()

	rules, err := pricingRules(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid pricing configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.New(ctx, catalog.NewLoader(cfg.CatalogSource))
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.CatalogSource).Msg("failed to load catalog")
	}
	log.Info().Int("products", len(cat.Current().Products())).Msg("catalog loaded")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
	}

	carts := cart.NewService(cart.NewRedisStore(redisClient), cat, nil)

	repo, err := dispatch.NewRepository(cfg.DispatchDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open dispatch database")
	}
	defer repo.Close()
	if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run dispatch migrations")
	}

	notifier := relay.NewNotifier(cfg.OrderFormURL)
	mailingList := relay.NewMailingList("", cfg.MailerLiteAPIToken, cfg.MailerLiteGroup)

	reconciler, err := buildReconciler(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build inventory reconciler")
	}

	poller := dispatch.NewPoller(repo)
	poller.SetTick(cfg.DispatchInterval)
	poller.Register(checkout.TaskKindOrderNotification, func(ctx context.Context, payload json.RawMessage) error {
		var order relay.Order
		if err := json.Unmarshal(payload, &order); err != nil {
			return fmt.Errorf("decode notification payload: %w", err)
		}
		return notifier.Send(ctx, &order)
	})
	poller.Register(checkout.TaskKindInventoryUpdate, func(ctx context.Context, payload json.RawMessage) error {
		var p checkout.InventoryPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode inventory payload: %w", err)
		}
		return reconciler.Reconcile(ctx, p.Items)
	})
	go poller.Run(ctx)

	gateway := payment.NewClientReportedGateway()
	orchestrator := checkout.NewOrchestrator(carts, gateway, repo, rules, cfg.DispatchMaxAttempts)

	router := httpapi.NewRouter(httpapi.RouterDeps{
		Catalog:   httpapi.NewCatalogHandler(cat),
		Cart:      httpapi.NewCartHandler(carts, rules),
		Checkout:  httpapi.NewCheckoutHandler(orchestrator, gateway),
		Order:     httpapi.NewOrderHandler(notifier, cfg.RelayTimeout),
		Inventory: httpapi.NewInventoryHandler(reconciler, cfg.RelayTimeout),
		Subscribe: httpapi.NewSubscribeHandler(mailingList, cfg.RelayTimeout),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("storefront API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}
	log.Info().Msg("server exited")
}

func pricingRules(cfg config.Config) (pricing.Rules, error) {
	flatRate, err := decimal.NewFromString(cfg.ShippingFlatRate)
	if err != nil {
		return pricing.Rules{}, fmt.Errorf("parse SHIPPING_FLAT_RATE: %w", err)
	}
	threshold, err := decimal.NewFromString(cfg.FreeShippingThreshold)
	if err != nil {
		return pricing.Rules{}, fmt.Errorf("parse FREE_SHIPPING_THRESHOLD: %w", err)
	}
	return pricing.Rules{FlatRate: flatRate, FreeShippingThreshold: threshold}, nil
}

func buildReconciler(cfg config.Config) (*inventory.Reconciler, error) {
	store, err := inventory.NewGitHubStore(cfg.GitHubToken, cfg.GitHubRepo, cfg.GitHubProductsPath)
	if err != nil {
		return nil, err
	}
	return inventory.NewReconciler(store, inventory.DefaultMaxAttempts), nil
}
