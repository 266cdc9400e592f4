package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"duebot/internal/bot"
	"duebot/internal/config"
	"duebot/internal/database"
	"duebot/internal/oracle"
	"duebot/internal/store"
	"duebot/internal/twilio"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg := config.Load()

	zapConfig := zap.NewProductionConfig()
	if cfg.Debug {
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zapConfig.Build()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.New(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	entityStore := store.New(db)
	intentOracle := oracle.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LocalTimezone)
	twilioClient := twilio.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber)

	deadlineBot := bot.New(cfg, entityStore, intentOracle, twilioClient, logger)
	if err := deadlineBot.StartScheduler(); err != nil {
		logger.Fatal("scheduler start failed", zap.Error(err))
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Post("/twilio/webhook", deadlineBot.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	waitForShutdown(server, deadlineBot, logger)
}

func waitForShutdown(server *http.Server, deadlineBot *bot.Bot, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	deadlineBot.StopScheduler()
}
