package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	cfg := LoadConfig()

	store, err := OpenStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	var notifier Notifier = LogNotifier{}
	if cfg.NATSURL != "" {
		nn, err := NewNatsNotifier(cfg.NATSURL)
		if err != nil {
			log.Fatalf("notifier: %v", err)
		}
		defer nn.Close()
		notifier = nn
	}

	registry := NewRegistry()
	limiter := NewActionLimiter(cfg.ActionPolicies())
	registry.SetEvictHook(limiter.Clear)

	guard := NewAccessGuard(store, registry)
	broadcaster := NewBroadcaster(registry)
	queue := NewPersistQueue(store, cfg.PersistQueueSize)
	dispatcher := NewDispatcher(registry, limiter, guard, broadcaster, store, notifier, queue)
	monitor := NewLivenessMonitor(registry, cfg.PingInterval, cfg.IdleThreshold)
	verifier := NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	srv := NewServer(cfg, registry, dispatcher, verifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	persistDone := make(chan struct{})
	go func() {
		queue.Run(ctx)
		close(persistDone)
	}()
	go monitor.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Println("shutting down...")
		srv.Shutdown()
	}()

	log.Printf("chat session server starting on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}

	// Let the queue drain whatever is still buffered before exiting.
	cancel()
	<-persistDone
	log.Println("persist queue drained")
}
