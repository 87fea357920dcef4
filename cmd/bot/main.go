package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/frantsuz-club/ticket-bot/internal/adapters/crdb"
	mongoadapter "github.com/frantsuz-club/ticket-bot/internal/adapters/mongo"
	"github.com/frantsuz-club/ticket-bot/internal/adapters/paykeeper"
	redisadapter "github.com/frantsuz-club/ticket-bot/internal/adapters/redis"
	"github.com/frantsuz-club/ticket-bot/internal/bot"
	"github.com/frantsuz-club/ticket-bot/internal/checkout"
	"github.com/frantsuz-club/ticket-bot/internal/config"
	"github.com/frantsuz-club/ticket-bot/internal/observability"
	"github.com/frantsuz-club/ticket-bot/internal/order"
	"github.com/frantsuz-club/ticket-bot/internal/reservation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint, "ticket-bot")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	sessions := redisadapter.NewSessionStore(redisClient, cfg.SessionTTL)
	limiter := redisadapter.NewRateLimiter(redisClient, logger)

	var audit checkout.Audit = checkout.NopAudit{}
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		audit = mongoadapter.NewAuditTrail(mongoClient.Database("frantsuz"), logger)
	}

	gateway := paykeeper.NewClient(cfg.PayKeeperServer, cfg.PayKeeperUser, cfg.PayKeeperPassword, logger)
	if err := gateway.Ping(context.Background()); err != nil {
		logger.WithError(err).Warn("payment gateway unreachable at startup")
	}

	reservations := reservation.NewManager(repo, logger)
	orders := order.NewAggregator(repo)
	flow := checkout.NewOrchestrator(sessions, reservations, orders, gateway, repo, audit, cfg.HoldTTL, logger)

	transport := bot.NewWebhookTransport(cfg.BotSendURL, cfg.BotToken, logger)
	router := bot.NewRouter(transport, flow, repo, limiter, cfg.SupportPhone, logger)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: bot.NewWebhookServer(router, logger).Handler(),
	}
	adminSrv := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: bot.AdminRouter(pool),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("admin listen: %s\n", err)
		}
	}()
	logger.WithField("addr", cfg.ListenAddr).Info("bot server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	adminSrv.Shutdown(ctx)
	logger.Info("Server exiting")
}
