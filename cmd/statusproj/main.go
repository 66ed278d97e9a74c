package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ariefcatur/go-plants-commerce.git/internal/config"
	kafkax "github.com/ariefcatur/go-plants-commerce.git/internal/kafka"
	"github.com/ariefcatur/go-plants-commerce.git/internal/orders"
	"github.com/ariefcatur/go-plants-commerce.git/internal/redisx"
	"github.com/ariefcatur/go-plants-commerce.git/internal/statuscache"
	"github.com/joho/godotenv"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Service
	svc := &statuscache.Service{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-statusproj",
	}

	// Consumer
	group := getenv("STATUSPROJ_GROUP", "statusproj-svc")
	workers := mustAtoi(os.Getenv("STATUSPROJ_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderFinalized, workers)

	go func() {
		log.Printf("statusproj consumer started: group=%s topic=%s workers=%d", group, orders.TopicOrderFinalized, workers)
		if err := cons.Start(ctx, svc.HandleOrderFinalized); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
