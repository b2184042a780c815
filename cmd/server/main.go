package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brokerage-mcp/internal/app"
	"brokerage-mcp/internal/logger"
	"brokerage-mcp/internal/mcpserver"
	"brokerage-mcp/internal/store"
	"brokerage-mcp/internal/trace"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	transport := flag.String("transport", "", "stdio or http (overrides server.transport)")
	addr := flag.String("addr", "", "listen address for the http transport (overrides server.addr)")
	flag.Parse()

	if err := app.InitializeSystem(version); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := run(*configPath, *transport, *addr); err != nil {
		logger.ErrorWithErr(context.Background(), "Server stopped with error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(configPath, transport, addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(shutdownCtx)
	}()

	cfg, err := app.LoadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	if transport != "" {
		cfg.Server.Transport = transport
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	sessions, closeSessions, err := app.InitializeSessions(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	brk := app.InitializeBroker(ctx, cfg, sessions)
	srv := mcpserver.New(brk, mcpserver.Options{
		Version: version,
		Mode:    cfg.Mode,
		Journal: app.InitializeJournal(ctx, cfg),
	})

	logger.Info(ctx, "Brokerage MCP server starting",
		"version", version,
		"mode", cfg.Mode,
		"exchange", cfg.Exchange,
		"transport", cfg.Server.Transport,
	)

	switch cfg.Server.Transport {
	case "http":
		return serveHTTP(ctx, cfg, srv)
	case "stdio":
		if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info(ctx, "Client disconnected, shutting down")
		return nil
	default:
		return fmt.Errorf("unknown transport %q", cfg.Server.Transport)
	}
}

func serveHTTP(ctx context.Context, cfg *store.Config, srv *mcpserver.Server) error {
	gin.SetMode(gin.ReleaseMode)
	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(ctx, "Listening", "addr", cfg.Server.Addr, "endpoint", "/mcp")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
