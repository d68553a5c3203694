package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haasonsaas/buildli/internal/provider"
	"github.com/haasonsaas/buildli/internal/server"
	"github.com/haasonsaas/buildli/pkg/core/health"
	"github.com/haasonsaas/buildli/pkg/core/version"
	"github.com/spf13/cobra"
)

var (
	servePort  int
	serveHost  string
	serveToken string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and gRPC API server",
	Long: `Runs the buildli API server. HTTP listens on --port, gRPC on
port+1.

Endpoints:
  GET  /health            health report
  POST /v1/query          ask a question (complete answer)
  GET  /v1/query/ws       ask a question (streamed over WebSocket)
  GET  /v1/index/status   index statistics

With --token the /v1 endpoints require "Authorization: Bearer <token>".`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP port (default from config, 9090)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "bearer token for the /v1 endpoints")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if serveToken != "" {
		cfg.Server.Token = serveToken
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	mgr, err := provider.NewManager(cfg)
	if err != nil {
		return err
	}

	ix := newIndexer(cfg, mgr, store)
	eng := newEngine(cfg, mgr, store)

	reg := health.NewRegistry("buildli", version.Version)
	reg.RegisterFunc("vector_store", func(ctx context.Context) health.CheckResult {
		if _, err := store.Count(ctx, cfg.Vector.Collection); err != nil {
			return health.CheckResult{Status: health.StatusUnhealthy, Message: err.Error()}
		}
		return health.CheckResult{Status: health.StatusHealthy}
	})
	reg.RegisterFunc("llm", func(ctx context.Context) health.CheckResult {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := mgr.LLM().HealthCheck(ctx); err != nil {
			return health.CheckResult{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.CheckResult{Status: health.StatusHealthy}
	})

	srv := server.New(server.Options{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Token:   cfg.Server.Token,
		Engine:  eng,
		Indexer: ix,
		Health:  reg,
	})

	fmt.Printf("%s HTTP listening on %s\n", okMark, srv.HTTPAddress())
	fmt.Printf("%s gRPC listening on %s\n", okMark, srv.GRPCAddress())
	if cfg.Server.Token != "" {
		fmt.Printf("%s bearer token auth enabled\n", infoMark)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return srv.Run(ctx)
}
