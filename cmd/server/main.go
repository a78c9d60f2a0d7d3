package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/adapters/http"
	signaladapter "github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/adapters/signal"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/app"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/auth"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/config"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/core"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/mq"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Secret == "" {
		log.Fatal().Msg("secret must be configured")
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	tokens := auth.NewTokenService(cfg.Secret, cfg.TokenTTL)

	var mailer auth.Mailer = auth.LogMailer{}
	if cfg.SMTP.Host != "" {
		smtp, err := auth.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to set up SMTP mailer")
		}
		mailer = smtp
	}

	var events core.EventSink
	if cfg.AMQPURL != "" {
		pub, err := mq.Dial(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Error().Err(err).Msg("presence publisher unavailable, continuing without")
		} else {
			defer pub.Close()
			events = pub
		}
	}

	registry := app.NewRegistry()
	calls := app.NewCallState()
	ctl := signaladapter.NewController(registry, calls, db, events, cfg.ReadLimit, cfg.PingPeriod)

	api := &router.API{
		Users:    db,
		Tokens:   tokens,
		Mailer:   mailer,
		Presence: ctl,
	}

	r := router.SetupRouter(ctx, cfg, api, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Phone server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
