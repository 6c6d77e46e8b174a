package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/estate-chat/internal/config"
	"github.com/suPer8Hu/estate-chat/internal/conversation"
	"github.com/suPer8Hu/estate-chat/internal/db"
	"github.com/suPer8Hu/estate-chat/internal/httpapi"
	"github.com/suPer8Hu/estate-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/estate-chat/internal/logger"
	"github.com/suPer8Hu/estate-chat/internal/notify"
	"github.com/suPer8Hu/estate-chat/internal/store/rabbitmq"
	"github.com/suPer8Hu/estate-chat/internal/store/redisstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(cfg)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	gdb, err := db.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := notify.NewHub(log)

	var notifier conversation.Notifier = hub
	if cfg.NotifyBackend != config.NotifyLocal {
		// both remote backends end up on redis; every instance relays it into its hub
		rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisChannelPrefix)
		defer rds.Close()
		if err := rds.Ping(ctx); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping")
		}

		relay := notify.NewRedisRelay(rds, hub, log)
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error().Err(err).Msg("redis relay stopped")
			}
		}()
		notifier = relay

		if cfg.NotifyBackend == config.NotifyRabbit {
			pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
			if err != nil {
				log.Fatal().Err(err).Msg("rabbit publisher")
			}
			defer pub.Close()
			notifier = notify.NewRabbitSink(pub)
		}
	}

	svc := conversation.NewService(conversation.NewRepo(gdb), notifier, cfg.NotifyTimeout, log)
	h := handlers.NewHandler(gdb, cfg, svc, hub, log)
	r := httpapi.NewRouter(h, cfg, log)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		log.Info().
			Str("addr", cfg.HTTPAddr).
			Str("notify_backend", cfg.NotifyBackend).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := svc.Drain(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("notifications still in flight at exit")
	}
}
