package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr         string
	PostgresDSN      string
	RedisAddr        string
	KafkaBrokers     []string
	JWTSecret        string
	AdRewardCoins    decimal.Decimal
	HistoryPageLimit int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using default values", "error", err)
	}

	cfg := &Config{
		HTTPAddr:         os.Getenv("HTTP_ADDR"),
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		KafkaBrokers:     []string{os.Getenv("KAFKA_BROKER")},
		JWTSecret:        os.Getenv("JWT_SECRET"),
		AdRewardCoins:    decimal.NewFromInt(5),
		HistoryPageLimit: 20,
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.PostgresDSN == "" {
		cfg.PostgresDSN = "host=localhost user=postgres password=postgres dbname=coinledger sslmode=disable"
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if len(cfg.KafkaBrokers) == 1 && cfg.KafkaBrokers[0] == "" {
		cfg.KafkaBrokers = []string{"localhost:9092"}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "supersecret"
	}
	if v := os.Getenv("AD_REWARD_COINS"); v != "" {
		if reward, err := decimal.NewFromString(v); err == nil && reward.IsPositive() {
			cfg.AdRewardCoins = reward
		} else {
			slog.Warn("invalid AD_REWARD_COINS, keeping default", "value", v)
		}
	}
	if v := os.Getenv("HISTORY_PAGE_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			cfg.HistoryPageLimit = limit
		} else {
			slog.Warn("invalid HISTORY_PAGE_LIMIT, keeping default", "value", v)
		}
	}

	slog.Info("config loaded",
		"http_addr", cfg.HTTPAddr,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"ad_reward_coins", cfg.AdRewardCoins,
		"history_page_limit", cfg.HistoryPageLimit)
	return cfg
}
