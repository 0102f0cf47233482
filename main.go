package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"keyshop/internal/account"
	"keyshop/internal/broadcast"
	"keyshop/internal/catalog"
	"keyshop/internal/config"
	"keyshop/internal/handlers"
	"keyshop/internal/logger"
	"keyshop/internal/messages"
	"keyshop/internal/middleware"
	"keyshop/internal/purchase"
	"keyshop/store"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	rdb, err := store.NewRedisClient(cfg.RedisAddr(), cfg.RedisPassword, cfg.RedisDB, "keyshop")
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	states := store.NewRedisStateStore(rdb, 24)

	pgStore, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()

	// The root admin always exists; restarts are idempotent.
	if err := pgStore.AddAdmin(ctx, cfg.RootAdminID, "", true); err != nil {
		log.Fatalf("Failed to ensure root admin: %v", err)
	}

	accountSvc := account.New(pgStore, rdb)
	catalogSvc := catalog.New(pgStore, rdb, cfg.CacheTTLSecs)
	purchaseSvc := purchase.New(pgStore, pgStore, pgStore, rdb)
	broadcaster := broadcast.New(pgStore, cfg.BroadcastWorkers)

	middlewares := middleware.NewAccountResolver(accountSvc, pgStore, rdb, cfg.RootAdminID)

	h := handlers.NewHandlers(
		catalogSvc,
		accountSvc,
		purchaseSvc,
		pgStore,
		pgStore,
		pgStore,
		states,
		broadcaster,
		rdb,
		cfg.AdminUsername,
		cfg.RootAdminID,
	)

	httpClient := &http.Client{
		Timeout: 2 * time.Minute,
	}
	pollTimeout := 50 * time.Second

	b, err := bot.New(
		cfg.BotToken,
		bot.WithHTTPClient(pollTimeout, httpClient),
	)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	handlerChain := middlewares.ResolveAccount(h.MainHandler)

	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil
	}, handlerChain)

	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, handlerChain)

	// Daily summary to the root admin.
	c := cron.New()
	_, err = c.AddFunc("0 9 * * *", func() {
		statsCtx, statsCancel := context.WithTimeout(ctx, 30*time.Second)
		defer statsCancel()
		st, err := pgStore.Stats(statsCtx)
		if err != nil {
			logger.Error("daily stats", zap.Error(err))
			return
		}
		_, _ = b.SendMessage(statsCtx, &bot.SendMessageParams{
			ChatID:    cfg.RootAdminID,
			Text:      messages.AdminStats(st),
			ParseMode: messages.ParseModeHTML,
		})
	})
	if err != nil {
		log.Fatalf("Failed to schedule daily stats: %v", err)
	}
	c.Start()
	defer c.Stop()

	log.Println("Bot started. Press Ctrl+C to stop.")
	b.Start(ctx)
}
