package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cxbootcamp/premiers/internal/config"
	"github.com/cxbootcamp/premiers/internal/lib/logger"
	"github.com/cxbootcamp/premiers/internal/mailer"
	"github.com/cxbootcamp/premiers/internal/models"
	"github.com/cxbootcamp/premiers/internal/rabbitmq"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := logger.Setup(cfg.Env)

	log.Info("starting mailer", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutdown signal received")
		cancel()
	}()

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", logger.Err(err))
		os.Exit(1)
	}
	defer msgBroker.Close()

	sender := mailer.New(log, cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)

	err = msgBroker.StartReading(ctx, func(body []byte) {
		var msg models.EmailMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			log.Error("failed to decode queued message", logger.Err(err))
			return
		}

		// Deliver retries with a fixed delay, so each message gets its own
		// goroutine to keep the queue draining.
		go sender.Deliver(msg)
	})
	if err != nil {
		log.Error("consumer stopped", logger.Err(err))
		os.Exit(1)
	}

	log.Info("mailer stopped")
}
