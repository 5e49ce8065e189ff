// Command petmind runs the virtual pet behavior service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/petmind/internal/api"
	"github.com/talgya/petmind/internal/config"
	"github.com/talgya/petmind/internal/llm"
	"github.com/talgya/petmind/internal/persistence"
	"github.com/talgya/petmind/internal/pipeline"
	"github.com/talgya/petmind/internal/traits"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "", "path to YAML config file")
	dbPath := flag.String("db", "data/petmind.db", "path to SQLite database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("petmind starting", "profile", cfg.Profile.Name)

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(*dbPath), 0755)
	db, err := persistence.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", *dbPath)

	// ── Generation backend ────────────────────────────────────────────
	var backend llm.Completer
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		backend = llm.NewClient(key)
		slog.Info("generation backend enabled (Haiku)")
	} else if project := os.Getenv("GOOGLE_CLOUD_PROJECT"); project != "" {
		backend = llm.NewGemini(context.Background(), project,
			os.Getenv("GOOGLE_CLOUD_LOCATION"), "gemini-2.0-flash")
		slog.Info("generation backend enabled (Gemini)")
	} else {
		slog.Warn("no generation backend configured — all reactions will use fallbacks")
	}

	gateway := llm.NewGateway(backend, cfg.Generator)

	// The gateway's request budget resets on a caller-owned schedule.
	budgetTicker := time.NewTicker(cfg.Generator.BudgetWindow)
	defer budgetTicker.Stop()
	go func() {
		for range budgetTicker.C {
			gateway.ResetBudget()
		}
	}()

	// ── Pipeline ──────────────────────────────────────────────────────
	pipe := pipeline.New(gateway, cfg)
	orch := pipeline.NewOrchestrator(db, pipe, cfg)
	engine := traits.NewEngine(gateway, cfg)

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("PETMIND_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("PETMIND_ADMIN_KEY not set — admin endpoints will be disabled")
	}

	var limiter *api.RateLimiter
	if cfg.API.RequestsPerMinute > 0 {
		limiter = api.NewRateLimiter(cfg.API.RequestsPerMinute, time.Minute)
	}

	apiServer := &api.Server{
		Orch:     orch,
		Engine:   engine,
		Repo:     db,
		Limiter:  limiter,
		Port:     cfg.API.Port,
		AdminKey: adminKey,
	}
	apiServer.Start()

	fmt.Printf("petmind is alive. API: http://localhost:%d/api/v1/health\n", cfg.API.Port)
	fmt.Println("Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
}
