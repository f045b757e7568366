package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/studyhive/coin-ledger/internal/api"
	"github.com/studyhive/coin-ledger/internal/config"
	"github.com/studyhive/coin-ledger/internal/handler"
	"github.com/studyhive/coin-ledger/internal/infrastructure/kafka"
	"github.com/studyhive/coin-ledger/internal/infrastructure/redis"
	"github.com/studyhive/coin-ledger/internal/observability"
	core "github.com/studyhive/coin-ledger/internal/repository/postgres"
	service "github.com/studyhive/coin-ledger/internal/services"
)

func main() {
	shutdown, _ := observability.Setup("coin-ledger")
	defer shutdown(context.Background())

	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()

	ledgerRepo := core.NewPostgresLedgerRepository(db)
	walletRepo := core.NewPostgresWalletRepository(db)
	transactionRepo := core.NewPostgresTransactionRepository(db)
	donationRepo := core.NewPostgresDonationRepository(db)
	planRepo := core.NewPostgresPlanRepository(db)
	profileRepo := core.NewPostgresProfileRepository(db)

	redisClient := redis.NewClient(cfg.RedisAddr)
	defer redisClient.Close()

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	ledgerSvc := service.NewLedgerService(
		ledgerRepo, walletRepo, transactionRepo, donationRepo, planRepo,
		redisClient, producer, cfg.AdRewardCoins, cfg.HistoryPageLimit,
	)
	authSvc := service.NewAuthService(profileRepo, redisClient, cfg.JWTSecret)

	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, "ledger.transactions", "coin-ledger-cache", redisClient)
	go consumer.Consume(consumerCtx)
	defer consumer.Close()
	defer cancelConsumer()

	h := handler.NewHandler(ledgerSvc, authSvc)
	router := api.SetupRouter(h, redisClient, cfg.JWTSecret)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	go func() {
		log.Printf("Starting server on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
