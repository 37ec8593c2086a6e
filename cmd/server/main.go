package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mathquest/backend/internal/achievement"
	"github.com/mathquest/backend/internal/config"
	"github.com/mathquest/backend/internal/mastery"
	"github.com/mathquest/backend/internal/mock"
	"github.com/mathquest/backend/internal/profile"
	"github.com/mathquest/backend/internal/tracker"
	"github.com/mathquest/backend/internal/ws"
)

func main() {
	mockMode := flag.Bool("mock", false, "Drive simulated players through the curriculum")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	worldsPath := flag.String("worlds", "", "Override content.worlds_file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *worldsPath != "" {
		cfg.Content.WorldsFile = *worldsPath
	}

	worlds := mastery.MustRegistry(mastery.DefaultWorlds())
	if cfg.Content.WorldsFile != "" {
		worlds, err = config.LoadWorlds(cfg.Content.WorldsFile)
		if err != nil {
			log.Fatalf("Failed to load worlds: %v", err)
		}
		log.Printf("Loaded %d worlds from %s", len(worlds.Worlds()), cfg.Content.WorldsFile)
	}

	badges := achievement.MustEngine(achievement.DefaultCatalogue())
	store := profile.NewStore(cfg.Storage.Dir)
	log.Printf("Player profiles stored under %s", store.Dir())

	tr, err := tracker.New(store, worlds, badges, tracker.Options{
		SaveInterval: cfg.Storage.SaveInterval,
		IdleTTL:      cfg.Storage.IdleTTL,
		StarterBiome: cfg.Content.StarterBiome,
	})
	if err != nil {
		log.Fatalf("Failed to start tracker: %v", err)
	}

	broadcaster := ws.NewBroadcaster(badges, cfg.Server.MaxConnections)
	tr.OnOutcome(broadcaster.PublishOutcome)

	limiter, stopLimiter := ws.NewRateLimiter(cfg.RateLimit.RefillPerSecond, cfg.RateLimit.Burst)
	defer stopLimiter()

	server := ws.NewServer(cfg.Server, tr, broadcaster, limiter)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	trackerDone := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(trackerDone)
	}()

	if *mockMode {
		log.Println("Starting in mock mode")
		skills := make([]string, 0, len(worlds.Worlds()))
		for _, w := range worlds.Worlds() {
			skills = append(skills, w.Skill)
		}
		if err := mock.NewGenerator(tr, skills).Start(ctx); err != nil {
			log.Fatalf("Failed to start mock players: %v", err)
		}
	}

	mux := http.NewServeMux()
	server.SetupRoutes(mux)
	httpServer := ws.NewHTTPServer(cfg.Server.Host, cfg.Server.Port, mux)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server error: %v", err)
		}
		cancel()
	case <-ctx.Done():
		log.Println("Shutting down...")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}

	// Run flushes every dirty profile before returning.
	<-trackerDone
	log.Println("Profiles saved, bye")
}
