// Command schedulerd runs the household scheduling orchestrator: a
// conversational loop on stdin plus a Prometheus metrics endpoint.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hearthlabs/scheduler/internal/availability"
	"github.com/hearthlabs/scheduler/internal/calendar"
	"github.com/hearthlabs/scheduler/internal/checkpoint"
	"github.com/hearthlabs/scheduler/internal/config"
	"github.com/hearthlabs/scheduler/internal/family"
	"github.com/hearthlabs/scheduler/internal/health"
	"github.com/hearthlabs/scheduler/internal/llm"
	"github.com/hearthlabs/scheduler/internal/nodes"
	"github.com/hearthlabs/scheduler/internal/resolution"
	"github.com/hearthlabs/scheduler/internal/workflow"
)

func main() {
	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics and health endpoints share one listener.
	checks := health.NewManager(logger)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", health.LivenessHandler())
	mux.Handle("/readyz", health.ReadinessHandler(checks))
	metricsSrv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Service.MetricsPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Metrics server listening", zap.Int("port", cfg.Service.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// Conversation checkpoint store: Redis when configured, otherwise
	// process memory.
	var store checkpoint.Store
	if cfg.Redis.Addr != "" {
		rs, err := checkpoint.DialRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Checkpoint.TTL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		store = rs
		checks.Register(health.NewPingChecker("redis", true, rs.Ping))
		logger.Info("Using Redis checkpoint store", zap.String("addr", cfg.Redis.Addr))
	} else {
		store = checkpoint.NewMemoryStore(cfg.Checkpoint.TTL, cfg.Checkpoint.MaxEntries)
		logger.Info("Using in-memory checkpoint store")
	}

	// Family directory: Postgres when configured, otherwise the YAML file.
	var directory family.Directory
	if cfg.Database.DSN != "" {
		pg, err := family.NewPostgresDirectory(cfg.Database.DSN, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Postgres", zap.Error(err))
		}
		defer pg.Close()
		directory = pg
		checks.Register(health.NewPingChecker("postgres", true, pg.Ping))
		logger.Info("Using Postgres family directory")
	} else {
		fd, err := family.NewFileDirectory(cfg.Family.ConfigPath, logger)
		if err != nil {
			logger.Fatal("Failed to load family config",
				zap.String("path", cfg.Family.ConfigPath), zap.Error(err))
		}
		if cfg.Family.Watch {
			if err := fd.Watch(); err != nil {
				logger.Warn("Family config watch unavailable", zap.Error(err))
			}
			defer fd.Close()
		}
		directory = fd
		logger.Info("Using file family directory", zap.String("path", cfg.Family.ConfigPath))
	}

	checks.Register(health.NewDirectoryChecker(directory))

	llmClient, err := buildLLMClient(cfg.LLM)
	if err != nil {
		logger.Fatal("Failed to configure reasoning client", zap.Error(err))
	}

	cal := calendar.NewMemoryService("family")

	engine := &workflow.Engine{
		Nodes: &nodes.Nodes{
			LLM:              llmClient,
			Calendar:         cal,
			Family:           directory,
			Resolver:         resolution.NewProposer(llmClient, logger),
			Logger:           logger,
			SearchWindowDays: cfg.Scheduling.SearchWindowDays,
			Slots: availability.Options{
				WorkingHoursStart: cfg.Scheduling.WorkingHoursStart,
				WorkingHoursEnd:   cfg.Scheduling.WorkingHoursEnd,
				TopK:              cfg.Scheduling.MaxSlots,
			},
		},
		Store:  store,
		Logger: logger,
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Service.GracefulTimeout)
		defer shutdownCancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}()

	runConversation(ctx, engine, logger)
}

// runConversation reads one request per line from stdin and prints the
// assistant reply. The conversation id carries across lines so follow-up
// turns resume the same workflow state.
func runConversation(ctx context.Context, engine *workflow.Engine, logger *zap.Logger) {
	userID := os.Getenv("SCHEDULER_USER_ID")
	if userID == "" {
		userID = "local"
	}

	fmt.Println("Household scheduler ready. Type a request, or \"quit\" to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	conversationID := ""
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}

		res, err := engine.Execute(ctx, workflow.Input{
			ConversationID: conversationID,
			UserID:         userID,
			RawInput:       line,
		})
		if err != nil {
			logger.Error("Turn failed", zap.Error(err))
			fmt.Println("Something went wrong; please try again.")
			continue
		}
		conversationID = res.State.ConversationID

		if res.Message != "" {
			fmt.Println(res.Message)
		} else {
			fmt.Printf("[%s] %s\n", res.Outcome, res.Summary)
		}
		if res.State.Status.Terminal() && res.Outcome != workflow.OutcomeAwaitingClarification &&
			res.Outcome != workflow.OutcomeAwaitingResolution {
			// A settled request starts the next turn fresh.
			conversationID = ""
		}
	}
}

func buildLogger(c config.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func buildLLMClient(c config.LLMConfig) (llm.Client, error) {
	baseURL := os.Getenv("SCHEDULER_LLM_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("SCHEDULER_LLM_URL is not set")
	}
	inner := llm.NewHTTPClient(baseURL, os.Getenv("SCHEDULER_LLM_API_KEY"), os.Getenv("SCHEDULER_LLM_MODEL"))
	return llm.NewRateLimited(inner, c.RequestsPerMinute), nil
}
