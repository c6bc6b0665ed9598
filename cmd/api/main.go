package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/shopspring/decimal"

	"github.com/Rafal-wq/banking-app/internal/adapter/cache"
	"github.com/Rafal-wq/banking-app/internal/adapter/handler"
	"github.com/Rafal-wq/banking-app/internal/adapter/middleware"
	"github.com/Rafal-wq/banking-app/internal/adapter/storage"
	"github.com/Rafal-wq/banking-app/internal/core/config"
	"github.com/Rafal-wq/banking-app/internal/core/exchange"
	"github.com/Rafal-wq/banking-app/internal/core/ledger"
	"github.com/Rafal-wq/banking-app/internal/core/transfer"
	"github.com/Rafal-wq/banking-app/internal/core/worker"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	dbPool, err := storage.Connect(cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	store := storage.NewStore(dbPool)
	if err := store.Migrate(context.Background()); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	welcomeBonus, err := decimal.NewFromString(cfg.WelcomeBonus)
	if err != nil {
		slog.Warn("invalid WELCOME_BONUS, bonus disabled", "value", cfg.WelcomeBonus)
		welcomeBonus = decimal.Zero
	}

	rates := exchange.NewStatic()
	accounts := ledger.New(store)
	notifier := worker.NewMailNotifier(store, store)
	engine := transfer.NewEngine(store, rates, notifier)
	viewCache := cache.New(5 * time.Minute)

	userHandler := &handler.UserHandler{Store: store}
	accountHandler := &handler.AccountHandler{
		Ledger:       accounts,
		Cache:        viewCache,
		WelcomeBonus: welcomeBonus,
	}
	transactionHandler := &handler.TransactionHandler{
		Engine: engine,
		Ledger: accounts,
		Store:  store,
		Cache:  viewCache,
	}
	ratesHandler := &handler.RatesHandler{Rates: rates}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/v1")

	// Public
	api.Post("/users", userHandler.CreateUser)
	api.Post("/users/:id/keys", userHandler.GenerateKey)

	// Protected
	private := api.Group("", middleware.Protected(store))
	private.Post("/accounts", accountHandler.CreateAccount)
	private.Get("/accounts", accountHandler.ListAccounts)
	private.Get("/accounts/:id", accountHandler.GetAccount)
	private.Patch("/accounts/:id", accountHandler.UpdateAccount)
	private.Delete("/accounts/:id", accountHandler.CloseAccount)
	private.Post("/accounts/:id/deposit", accountHandler.Deposit)
	private.Post("/accounts/:id/withdraw", accountHandler.Withdraw)
	private.Get("/accounts/:id/transactions", transactionHandler.AccountHistory)
	private.Post("/transfers", middleware.Idempotency(dbPool), transactionHandler.Transfer)
	private.Get("/transactions", transactionHandler.ListTransactions)
	private.Get("/transactions/:id", transactionHandler.GetTransaction)
	private.Get("/rates", ratesHandler.ListRates)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	if cfg.MailGatewayURL != "" {
		worker.StartNotificationWorker(workerCtx, dbPool, cfg.MailGatewayURL)
	} else {
		slog.Warn("MAIL_GATEWAY_URL not set, transfer notices will stay queued")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "env", cfg.Env, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server stopped", "error", err)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	stopWorker()
	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	dbPool.Close()
	slog.Info("database connection closed")
	slog.Info("server exited")
}
