package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/sdiouf/wabot"
	"github.com/sdiouf/wabot/internal/config"
	"github.com/sdiouf/wabot/internal/scheduler"
	"github.com/sdiouf/wabot/internal/server/handlers"
	"github.com/sdiouf/wabot/internal/server/router"
	"github.com/sdiouf/wabot/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	bot, err := wabot.New(wabot.Config{
		NumberID:   cfg.WhatsApp.NumberID,
		Token:      cfg.WhatsApp.Token,
		MarkAsRead: cfg.WhatsApp.MarkAsRead,
		BaseURL:    cfg.WhatsApp.BaseURL,
		APIVersion: cfg.WhatsApp.APIVersion,
		Logger:     baseLogger.Named("wabot"),
	})
	if err != nil {
		baseLogger.Fatal("failed to build bot client", zap.Error(err))
	}

	registerHandlers(bot, baseLogger.Named("handlers"))

	webhookHandler := handlers.NewWebhookHandler(bot, cfg.WhatsApp.VerifyToken, baseLogger.Named("handlers.webhook"))
	engine := router.New(webhookHandler, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(cfg.Broadcast, bot, baseLogger.Named("scheduler"))
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// registerHandlers wires the demo conversation: a menu of buttons, a
// guided name-collection flow using next-step overrides, and echoes for
// media and locations.
func registerHandlers(bot *wabot.Client, log *zap.Logger) {
	// Always-on help, regardless of any flow in progress.
	bot.OnMessage(func(ctx context.Context, upd *wabot.Update) error {
		return upd.Reply(ctx, "Commands: menu, register. Send 'cancel' to leave a flow.")
	}, wabot.WithRegex(regexp.MustCompile(`(?i)^help$`)), wabot.Persistent())

	bot.OnMessage(func(ctx context.Context, upd *wabot.Update) error {
		markup, err := wabot.NewButtons(
			wabot.Button{ID: "opt_hours", Title: "Opening hours"},
			wabot.Button{ID: "opt_location", Title: "Where are we"},
		)
		if err != nil {
			return err
		}
		return upd.ReplyMarkup(ctx, "What would you like to know?", markup)
	}, wabot.WithRegex(regexp.MustCompile(`(?i)^menu$`)))

	bot.OnInteractiveMessage(func(ctx context.Context, upd *wabot.Update) error {
		switch upd.MessageText {
		case "opt_hours":
			return upd.Reply(ctx, "We are open 9:00-18:00, Monday to Saturday.")
		case "opt_location":
			return upd.ReplyLocation(ctx, 14.6937, -17.4441, "Head office", "Dakar, Senegal")
		default:
			return upd.Reply(ctx, "Unknown option.")
		}
	})

	// Two-step registration flow backed by the conversation context.
	bot.OnMessage(func(ctx context.Context, upd *wabot.Update) error {
		if err := upd.Reply(ctx, "What is your name?"); err != nil {
			return err
		}
		bot.SetNextStep(upd, wabot.NewTextHandler(askCity(bot), wabot.WithUserContext()),
			wabot.WithFallback(cancelFlow))
		return nil
	}, wabot.WithRegex(regexp.MustCompile(`(?i)^register$`)))

	bot.OnImageMessage(func(ctx context.Context, upd *wabot.Update) error {
		log.Info("image received", zap.String("media_id", upd.MediaID), zap.String("mime", upd.MimeType))
		return upd.Reply(ctx, "Nice picture!")
	})

	bot.OnLocationMessage(func(ctx context.Context, upd *wabot.Update) error {
		return upd.Reply(ctx, "Thanks, noted: "+upd.MessageText)
	})
}

func askCity(bot *wabot.Client) wabot.HandlerFunc {
	return func(ctx context.Context, upd *wabot.Update) error {
		upd.Conv.Set("name", upd.MessageText)
		if err := upd.Reply(ctx, "And which city are you in?"); err != nil {
			return err
		}
		bot.SetNextStep(upd, wabot.NewTextHandler(finishRegistration, wabot.WithUserContext()),
			wabot.WithFallback(cancelFlow))
		return nil
	}
}

func finishRegistration(ctx context.Context, upd *wabot.Update) error {
	name := upd.Conv.GetDefault("name", "friend")
	city := upd.MessageText
	upd.Conv.Clear()
	return upd.Reply(ctx, fmt.Sprintf("Welcome %v from %s, you are registered!", name, city))
}

func cancelFlow(ctx context.Context, upd *wabot.Update) error {
	if upd.Conv != nil {
		upd.Conv.Clear()
	}
	return upd.Reply(ctx, "Flow cancelled.")
}
