package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/estate-chat/internal/config"
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
	log := logger.New(cfg).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisChannelPrefix)
	defer rds.Close()
	if err := rds.Ping(ctx); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping")
	}
	// the worker only publishes; the API instances own the hubs
	relay := notify.NewRedisRelay(rds, nil, log)

	// retries are re-published through the same topology the API declares
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit publisher")
	}
	defer pub.Close()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit dial")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit channel")
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatal().Err(err).Msg("queue declare")
	}

	//  strict concurrency control
	concurrency := cfg.WorkerConcurrency

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal().Err(err).Msg("qos")
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("consume")
	}

	log.Info().Str("queue", cfg.RabbitQueue).Int("concurrency", concurrency).Msg("worker started")

	r := &relayer{relay: relay, retry: pub, log: log}

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			// in-flight deliveries finish after shutdown starts; relayTimeout bounds them
			hctx := context.WithoutCancel(ctx)
			for d := range jobs {
				r.handle(hctx, workerID, d)
			}
		}(i)
	}

	err = dispatch(ctx, msgs, jobs)
	close(jobs)
	wg.Wait()
	if err != nil {
		// the supervisor restarts the process with a fresh connection
		log.Fatal().Err(err).Msg("worker stopped")
	}
	log.Info().Msg("worker shut down")
}
