package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duara-social/matchengine/internal/config"
	"github.com/duara-social/matchengine/internal/engine"
	"github.com/duara-social/matchengine/internal/server"
	"github.com/duara-social/matchengine/internal/storage"
	"github.com/duara-social/matchengine/internal/storage/postgres"
	"github.com/duara-social/matchengine/internal/storage/sqlite"
)

func main() {
	warm := flag.Bool("warm", true, "train the latent factor model on startup")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize storage
	store, err := sqlite.NewProfileStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to initialize profile store: %v", err)
	}
	defer store.Close()

	// Latent factor persistence is optional; without Postgres the model
	// lives in memory only and is rebuilt on restart.
	var factorStore storage.FactorStore
	if cfg.Storage.PostgresDSN != "" {
		pg, err := postgres.NewFactorStore(cfg.Storage.PostgresDSN)
		if err != nil {
			log.Printf("WARNING: factor store unavailable, continuing without persistence: %v", err)
		} else {
			factorStore = pg
			defer pg.Close()
		}
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Compatibility tables (built-in defaults, optional YAML override)
	tables, err := engine.LoadCompatTables(cfg.Engine.CompatTablesPath)
	if err != nil {
		log.Fatalf("Failed to load compatibility tables: %v", err)
	}

	// Wire the scoring pipeline
	modelCfg := engine.DefaultLatentFactorConfig()
	modelCfg.Factors = cfg.Engine.LatentFactors
	modelCfg.Seed = cfg.Engine.TrainSeed
	rng := rand.New(rand.NewSource(cfg.Engine.TrainSeed))
	model := engine.NewModelHandle(modelCfg, store, factorStore, rng)

	ranker := engine.NewHybridRanker(
		engine.NewContentScorer(tables),
		model,
		engine.NewContextScorer(store),
	)
	injector := engine.NewDiversityInjector(tables, cfg.Engine.DiversityFraction)

	orch, err := engine.NewOrchestrator(store, nil, ranker, injector, engine.OrchestratorConfig{
		PipelineBudget:    cfg.Engine.PipelineBudget,
		ScoreWorkers:      cfg.Engine.ScoreWorkers,
		DiversityFraction: cfg.Engine.DiversityFraction,
	})
	if err != nil {
		log.Fatalf("Failed to build orchestrator: %v", err)
	}

	// Start server
	addr, wsHub, err := server.Start(ctx, cfg, orch, model)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	model.SetOnStateChange(wsHub.BroadcastModelState)
	log.Printf("Matching engine running at http://%s", addr)

	// Train in the background so the first ranking request doesn't pay the
	// full SGD cost.
	if *warm {
		go model.Warm(ctx)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}
