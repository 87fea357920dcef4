package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"

	"github.com/frantsuz-club/ticket-bot/internal/adapters/rabbit"
	redisadapter "github.com/frantsuz-club/ticket-bot/internal/adapters/redis"
	"github.com/frantsuz-club/ticket-bot/internal/bot"
	"github.com/frantsuz-club/ticket-bot/internal/config"
	"github.com/frantsuz-club/ticket-bot/internal/domain"
	"github.com/frantsuz-club/ticket-bot/internal/notify"
	"github.com/frantsuz-club/ticket-bot/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint, "notifier")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	consumer, err := rabbit.NewConsumer(conn, "notifier.order-paid", "order.paid")
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	guard := redisadapter.NewNotifyGuard(redisClient, 7*24*time.Hour)

	mailer := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom)
	messenger := bot.NewWebhookTransport(cfg.BotSendURL, cfg.BotToken, logger)

	dispatcher := notify.NewDispatcher(mailer, messenger, guard, cfg.AdminEmail, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	go func() {
		for d := range deliveries {
			handle(ctx, dispatcher, d, logger)
		}
	}()
	logger.Info("Notifier started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown notifier")
}

func handle(ctx context.Context, dispatcher *notify.Dispatcher, d amqp.Delivery, logger observability.Logger) {
	var notice domain.OrderPaidNotice
	if err := json.Unmarshal(d.Body, &notice); err != nil {
		// A malformed notice will never parse; dead-letter it.
		logger.WithError(err).WithField("message_id", d.MessageId).Error("malformed order.paid notice")
		d.Nack(false, false)
		return
	}

	if err := dispatcher.OrderPaid(ctx, notice); err != nil {
		logger.WithError(err).WithField("order_id", notice.OrderID).Error("failed to dispatch notice")
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}
