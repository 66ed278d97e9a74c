package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-plants-commerce.git/internal/checkout"
	"github.com/ariefcatur/go-plants-commerce.git/internal/config"
	"github.com/ariefcatur/go-plants-commerce.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-plants-commerce.git/internal/kafka"
	"github.com/ariefcatur/go-plants-commerce.git/internal/midtrans"
	"github.com/ariefcatur/go-plants-commerce.git/internal/orders"
	"github.com/ariefcatur/go-plants-commerce.git/internal/postgres"
	"github.com/ariefcatur/go-plants-commerce.git/internal/reconcile"
	"github.com/ariefcatur/go-plants-commerce.git/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pCreated.Start(ctx)
	pFinalized := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderFinalized, 1024)
	pFinalized.Start(ctx)

	// Gateway client (credentials injected, no ambient globals)
	gateway := midtrans.NewClient(midtrans.Config{
		SnapURL:   cfg.MidtransSnapURL,
		CoreURL:   cfg.MidtransCoreURL,
		ServerKey: cfg.MidtransServerKey,
		FinishURL: cfg.MidtransFinishURL,
		Timeout:   cfg.GatewayTimeout,
	})

	// Services & handler
	repo := &orders.Repo{DB: db}
	co := &checkout.Service{
		Gateway:           gateway,
		Store:             repo,
		Redis:             rdb,
		ProducerCreated:   pCreated,
		ProducerFinalized: pFinalized,
		ServiceName:       cfg.ServiceName,
	}
	engine := &reconcile.Service{
		Store:       &orders.ReconcileRepo{DB: db},
		Redis:       rdb,
		Producer:    pFinalized,
		ServiceName: cfg.ServiceName,
	}
	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Checkout:  co,
		Engine:    engine,
		Repo:      repo,
		ServerKey: cfg.MidtransServerKey,
	}
	oh.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pCreated.Close()
	pFinalized.Close()
	cancel()
	pCreated.WaitClosed()
	pFinalized.WaitClosed()
}
