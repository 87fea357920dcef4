package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresDSN string
	MongoURI    string
	RedisAddr   string
	RabbitURL   string

	PayKeeperServer   string
	PayKeeperUser     string
	PayKeeperPassword string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string
	AdminEmail   string

	BotSendURL string
	BotToken   string

	SupportPhone string
	ListenAddr   string
	AdminAddr    string

	HoldTTL    time.Duration
	SessionTTL time.Duration

	OTLPEndpoint string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	holdTTL, _ := time.ParseDuration(os.Getenv("HOLD_TTL"))
	if holdTTL == 0 {
		holdTTL = 5 * time.Minute
	}
	sessionTTL, _ := time.ParseDuration(os.Getenv("SESSION_TTL"))
	if sessionTTL == 0 {
		sessionTTL = 24 * time.Hour
	}

	smtpPort := 465
	if v, err := strconv.Atoi(os.Getenv("SMTP_PORT")); err == nil && v > 0 {
		smtpPort = v
	}

	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8080"
	}
	adminAddr := os.Getenv("ADMIN_ADDR")
	if adminAddr == "" {
		adminAddr = ":9090"
	}

	return &Config{
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		MongoURI:          os.Getenv("MONGO_URI"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RabbitURL:         os.Getenv("RABBIT_URL"),
		PayKeeperServer:   os.Getenv("PAYKEEPER_SERVER"),
		PayKeeperUser:     os.Getenv("PAYKEEPER_USER"),
		PayKeeperPassword: os.Getenv("PAYKEEPER_PASSWORD"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          smtpPort,
		SMTPUser:          os.Getenv("SMTP_USER"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		EmailFrom:         os.Getenv("EMAIL_FROM"),
		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		BotSendURL:        os.Getenv("BOT_SEND_URL"),
		BotToken:          os.Getenv("BOT_TOKEN"),
		SupportPhone:      os.Getenv("SUPPORT_PHONE"),
		ListenAddr:        listenAddr,
		AdminAddr:         adminAddr,
		HoldTTL:           holdTTL,
		SessionTTL:        sessionTTL,
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}
