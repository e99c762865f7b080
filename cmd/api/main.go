package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"arcade/internal/config"
	"arcade/internal/server"
)

func gracefulShutdown(srv *server.FiberServer, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Println("[MAIN] Shutting down gracefully, press Ctrl+C again to force")
	stop()

	finished := make(chan struct{})
	go func() {
		srv.Shutdown()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		log.Println("[MAIN] Server forced to shutdown with timeout")
	}

	log.Println("[MAIN] Server exiting")
	done <- true
}

func main() {
	cfg := config.Load()

	srv := server.New(cfg)
	srv.RegisterFiberRoutes()

	done := make(chan bool, 1)
	go gracefulShutdown(srv, done)

	log.Printf("[MAIN] Listening on :%s (ledger: %s)", cfg.Port, cfg.LedgerDriver)
	if err := srv.Listen(fmt.Sprintf(":%s", cfg.Port)); err != nil {
		log.Printf("[MAIN] HTTP server error: %v", err)
		os.Exit(1)
	}

	<-done
	log.Println("[MAIN] Graceful shutdown complete")
}
