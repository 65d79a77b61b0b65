package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/daddyholnes/podplay-claude-sub001/internal/agents"
	"github.com/daddyholnes/podplay-claude-sub001/internal/api"
	"github.com/daddyholnes/podplay-claude-sub001/internal/database"
	"github.com/daddyholnes/podplay-claude-sub001/internal/events"
	"github.com/daddyholnes/podplay-claude-sub001/internal/keymanager"
	"github.com/daddyholnes/podplay-claude-sub001/internal/memory"
	"github.com/daddyholnes/podplay-claude-sub001/internal/metrics"
	"github.com/daddyholnes/podplay-claude-sub001/internal/model"
	"github.com/daddyholnes/podplay-claude-sub001/internal/orchestrator"
	"github.com/daddyholnes/podplay-claude-sub001/internal/sandbox"
	"github.com/daddyholnes/podplay-claude-sub001/internal/telemetry"
	"github.com/daddyholnes/podplay-claude-sub001/pkg/config"
	"github.com/daddyholnes/podplay-claude-sub001/pkg/models"
)

const version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help message")
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}

	if *showVersion {
		fmt.Printf("Podplay v%s\n", version)
		return
	}

	cfg, err := config.LoadConfigFromFile(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("failed to load config from %s: %v", *configPath, err)
		}
		log.Printf("No config at %s, using defaults", *configPath)
		cfg = config.DefaultConfig()
	}

	// Override with environment variables if set
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		cfg.Events.URL = natsURL
		cfg.Events.Enabled = true
		log.Printf("Using NATS URL from environment: %s", natsURL)
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Memory.RedisURL = redisURL
		log.Printf("Using Redis URL from environment")
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Database.DSN = dsn
		cfg.Database.Enabled = true
		log.Printf("Using database DSN from environment")
	}

	// Unlock the credential store before building clients so provider keys can
	// come from it instead of the environment.
	km := keymanager.New(cfg.Security.KeyStorePath)
	password := loadPassword()
	if password == "" {
		log.Printf("Warning: No password found. Using default password. Set PODPLAY_PASSWORD environment variable or create .env file")
		password = "podplay-default-password"
	}
	if err := km.Unlock(password); err != nil {
		log.Printf("Password unlock failed: %v. Trying default password...", err)
		if err := km.Unlock("podplay-default-password"); err != nil {
			log.Fatalf("Failed to unlock key manager with both passwords: %v", err)
		}
	}

	if cfg.Models.APIKey == "" {
		cfg.Models.APIKey = km.GetOrEnv(keymanager.KeyAnthropic, "ANTHROPIC_API_KEY")
	}
	if cfg.Sandbox.APIKey == "" {
		cfg.Sandbox.APIKey = km.GetOrEnv(keymanager.KeyScrapybara, "SCRAPYBARA_API_KEY")
	}
	if cfg.Memory.APIKey == "" {
		cfg.Memory.APIKey = km.GetOrEnv(keymanager.KeyMemoryAPI, "MEM0_API_KEY")
	}

	// Initialize OpenTelemetry
	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTelemetry(context.Background(), "podplay", cfg.Telemetry.Endpoint)
		if err != nil {
			log.Printf("Warning: Failed to initialize telemetry: %v", err)
		} else {
			defer func() {
				if err := shutdownTelemetry(context.Background()); err != nil {
					log.Printf("Error shutting down telemetry: %v", err)
				}
			}()
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics()

	// Event bus: NATS when configured, in-process otherwise.
	var bus events.Bus
	if cfg.Events.Enabled {
		natsBus, err := events.NewNatsBus(cfg.Events)
		if err != nil {
			log.Fatalf("failed to connect event bus: %v", err)
		}
		bus = natsBus
	} else {
		bus = events.NewLocalBus()
	}
	defer bus.Close()

	registry, err := agents.NewRegistry(cfg.Agents.PersonaPath)
	if err != nil {
		log.Fatalf("failed to load agent personas: %v", err)
	}
	if cfg.Agents.WatchPersonas {
		watcher, err := agents.NewWatcher(registry)
		if err != nil {
			log.Printf("Warning: persona watcher disabled: %v", err)
		} else if watcher != nil {
			defer watcher.Close()
		}
	}

	inferencer, err := model.NewManager(cfg.Models)
	if err != nil {
		log.Fatalf("failed to create model manager: %v", err)
	}

	var memCache *memory.Cache
	if cfg.Memory.RedisURL != "" {
		memCache, err = memory.NewCache(cfg.Memory)
		if err != nil {
			log.Printf("Warning: Redis context cache unavailable: %v", err)
			memCache = nil
		} else {
			defer memCache.Close()
		}
	}
	memClient := memory.NewClient(cfg.Memory, memCache)
	memClient.SetMetrics(m)

	sandboxManager := sandbox.NewManager(sandbox.NewClient(cfg.Sandbox), cfg.Sandbox, bus)
	sandboxManager.SetMetrics(m)
	go sandboxManager.StartReaper(runCtx)

	// Optional Postgres activity log.
	var db *database.Database
	var activity orchestrator.ActivityLog
	if cfg.Database.Enabled {
		db, err = database.New(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("failed to connect database: %v", err)
		}
		defer db.Close()
		activity = db
	}

	orc, err := orchestrator.New(orchestrator.Options{
		Registry:       registry,
		Inferencer:     inferencer,
		Memory:         memClient,
		Sandbox:        sandboxManager,
		Publisher:      bus,
		Metrics:        m,
		Activity:       activity,
		DefaultVariant: models.VariantID(cfg.Agents.DefaultVariant),
	})
	if err != nil {
		log.Fatalf("failed to create orchestrator: %v", err)
	}

	apiServer := api.NewServer(orc, bus, m, cfg)
	if db != nil {
		apiServer.SetDatabase(db)
	}
	if natsBus, ok := bus.(*events.NatsBus); ok {
		apiServer.SetBusChecker(natsBus)
	}
	go apiServer.Hub().Run(runCtx)

	handler := apiServer.SetupRoutes()

	// Wrap handler with OpenTelemetry instrumentation
	if cfg.Telemetry.Enabled {
		handler = otelhttp.NewHandler(handler, "podplay-http-server")
	}

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Podplay API listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = httpSrv.Shutdown(shutdownCtx)
}

func loadPassword() string {
	// First, check environment variable
	if pwd := os.Getenv("PODPLAY_PASSWORD"); pwd != "" {
		return pwd
	}

	// Second, try to load from .env file
	if envData, err := os.ReadFile(".env"); err == nil {
		lines := strings.Split(string(envData), "\n")
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if strings.HasPrefix(line, "PODPLAY_PASSWORD=") {
				pwd := strings.TrimPrefix(line, "PODPLAY_PASSWORD=")
				pwd = strings.Trim(pwd, "\"'")
				return pwd
			}
		}
	}

	return ""
}

func printHelp() {
	fmt.Println("Usage: podplay [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -config   Path to configuration file (default: config.yaml)")
	fmt.Println("  -version  Show version information")
	fmt.Println("  -help     Show help message")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  PODPLAY_PASSWORD    Master password for the credential store")
	fmt.Println("  ANTHROPIC_API_KEY   Model provider API key")
	fmt.Println("  SCRAPYBARA_API_KEY  Sandbox provider API key")
	fmt.Println("  MEM0_API_KEY        Memory provider API key")
	fmt.Println("  NATS_URL            Enable the NATS event bus")
	fmt.Println("  REDIS_URL           Enable the Redis context cache")
	fmt.Println("  DATABASE_URL        Enable the Postgres activity log")
	fmt.Println()
	fmt.Println("See podplayctl for the command-line client.")
}
