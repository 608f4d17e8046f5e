// Entry point for the silabo HTTP service: extraction pipeline, session
// curation, template catalog and instance content, with optional MCP stdio.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/eduforma/silabo/content"
	"github.com/eduforma/silabo/dbopen"
	"github.com/eduforma/silabo/lookup"
	"github.com/eduforma/silabo/score"
	"github.com/eduforma/silabo/service"
	"github.com/eduforma/silabo/session"
	"github.com/eduforma/silabo/template"
)

type config struct {
	Port           string       `yaml:"port"`
	DBPath         string       `yaml:"db_path"`
	LogLevel       string       `yaml:"log_level"`
	MaxUploadBytes int64        `yaml:"max_upload_bytes"`
	MCPTransport   string       `yaml:"mcp_transport"`
	Score          score.Config `yaml:"score"`
}

// loadConfig reads the yaml file (if any), then applies env overrides.
// Precedence: env > file > defaults.
func loadConfig() (config, error) {
	cfg := config{
		Port:           "8086",
		DBPath:         "db/silabo.db",
		LogLevel:       "info",
		MaxUploadBytes: 20 << 20,
	}

	path := flag.String("config", os.Getenv("SILABO_CONFIG"), "path to yaml config")
	flag.Parse()

	if *path != "" {
		data, err := os.ReadFile(*path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.MaxUploadBytes = n
	}
	if v := os.Getenv("MCP_TRANSPORT"); v != "" {
		cfg.MCPTransport = v
	}
	return cfg, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(cfg.DBPath,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(session.Schema),
		dbopen.WithSchema(template.Schema),
		dbopen.WithSchema(content.Schema),
		dbopen.WithSchema(lookup.Schema))
	if err != nil {
		slog.Error("open db", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := lookup.NewStore(db).Seed(ctx); err != nil {
		slog.Error("seed lookups", "error", err)
		os.Exit(1)
	}

	svc := service.New(db, service.Config{
		MaxUploadBytes: cfg.MaxUploadBytes,
		Score:          cfg.Score,
		Logger:         logger,
	})

	if cfg.MCPTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "silabo",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		go func() {
			slog.Info("MCP stdio starting")
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", err)
			}
		}()
	}

	r := chi.NewRouter()
	svc.RegisterHTTP(r)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP starting", "addr", httpSrv.Addr, "db", cfg.DBPath)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
}
