// Package server runs the buildli HTTP API and its gRPC twin. HTTP listens
// on the configured port, gRPC on port+1.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/haasonsaas/buildli/api/rpc"
	"github.com/haasonsaas/buildli/internal/indexer"
	"github.com/haasonsaas/buildli/internal/query"
	coregrpc "github.com/haasonsaas/buildli/pkg/core/grpc"
	"github.com/haasonsaas/buildli/pkg/core/health"
	"github.com/haasonsaas/buildli/pkg/core/logging"
	"github.com/haasonsaas/buildli/pkg/core/version"
)

const shutdownTimeout = 5 * time.Second

// Options configures the server
type Options struct {
	Host  string
	Port  int
	Token string

	Engine  *query.Engine
	Indexer *indexer.Indexer
	Health  *health.Registry
}

// Server bundles the HTTP and gRPC servers
type Server struct {
	opts    Options
	httpSrv *http.Server
	grpcSrv *coregrpc.Server
	log     *logging.Logger
}

// New creates a server. The health registry gets a default registry when
// nil.
func New(opts Options) *Server {
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.Port == 0 {
		opts.Port = 9090
	}
	if opts.Health == nil {
		opts.Health = health.NewRegistry("buildli", version.Version)
	}

	s := &Server{
		opts: opts,
		log:  logging.New("server"),
	}

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.grpcSrv = coregrpc.NewServer(coregrpc.ServerConfig{
		Host:              opts.Host,
		Port:              opts.Port + 1,
		MaxRecvMsgSize:    16 * 1024 * 1024,
		MaxSendMsgSize:    16 * 1024 * 1024,
		KeepaliveInterval: 30 * time.Second,
		KeepaliveTimeout:  10 * time.Second,
	})
	rpc.RegisterBuildliServiceServer(s.grpcSrv.GRPCServer(), &buildliService{
		engine:  opts.Engine,
		indexer: opts.Indexer,
	})

	return s
}

// GRPCAddress returns the gRPC listen address
func (s *Server) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port+1)
}

// HTTPAddress returns the HTTP listen address
func (s *Server) HTTPAddress() string {
	return s.httpSrv.Addr
}

// Run starts both servers and blocks until the context is canceled or a
// server fails. Shutdown is graceful with a bounded timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	if err := s.grpcSrv.StartAsync(); err != nil {
		return err
	}
	s.grpcSrv.SetServing(true)
	s.log.Info("gRPC server listening", "address", s.grpcSrv.Address())

	go func() {
		s.log.Info("HTTP server listening", "address", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down")
	case err := <-errCh:
		s.log.Error("server failed", "error", err)
		s.shutdown()
		return err
	}

	s.shutdown()
	return nil
}

func (s *Server) shutdown() {
	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpSrv.Shutdown(shCtx); err != nil {
		s.log.Warn("HTTP shutdown error", "error", err)
	}
	s.grpcSrv.StopWithTimeout(shCtx)
}
