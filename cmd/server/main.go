package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brightsend/campaigner/internal/api"
	"github.com/brightsend/campaigner/internal/config"
	"github.com/brightsend/campaigner/internal/events"
	"github.com/brightsend/campaigner/internal/sender"
	"github.com/brightsend/campaigner/internal/store"
	"github.com/brightsend/campaigner/internal/transport"
	"github.com/brightsend/campaigner/internal/validator"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := store.Open(cfg.Database.URL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	st := store.New(db)

	var mailer transport.Mailer
	if cfg.Provider.APIKey != "" {
		mailer = transport.NewZeptoClient(cfg.Provider.BaseURL, cfg.Provider.APIKey)
		log.Println("using provider HTTP transport")
	} else {
		mailer = transport.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
		log.Println("no provider API key set, using SMTP fallback transport")
	}

	var sink events.Sink = events.NopSink{}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		sink = events.NewRedisSink(client, cfg.Redis.Channel)
		log.Printf("publishing engagement events on %q", cfg.Redis.Channel)
	}

	svc := sender.New(st, validator.New(), mailer, cfg.Tracking.BaseURL, transport.EmailAddress{
		Address: cfg.Provider.FromEmail,
		Name:    cfg.Provider.FromName,
	})

	server := api.NewServer(st, svc, sink, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("campaigner listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
