package bridge

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/dmitrijs2005/almacen/internal/logging"
	"github.com/dmitrijs2005/almacen/internal/repositories/repomanager"
	"google.golang.org/grpc"
)

// Server serves a RepositoryManager over gRPC.
type Server struct {
	address string
	manager repomanager.RepositoryManager
	logger  logging.Logger
	secret  []byte

	maxTokenLifetime time.Duration
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMaxTokenLifetime rejects access tokens issued for longer than d.
func WithMaxTokenLifetime(d time.Duration) ServerOption {
	return func(s *Server) { s.maxTokenLifetime = d }
}

// NewServer returns a server that will listen on address.
func NewServer(address string, l logging.Logger, m repomanager.RepositoryManager, secret string, opts ...ServerOption) *Server {
	s := &Server{
		address: address,
		manager: m,
		logger:  l.With("module", "bridge_server"),
		secret:  []byte(secret),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GRPCServer builds a grpc.Server with the bridge registered on it.
func (s *Server) GRPCServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	srv.RegisterService(s.serviceDesc(), s)
	return srv
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.GRPCServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping bridge...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting bridge", "address", lis.Addr().String(), "backend", s.manager.Name())
	if err := srv.Serve(lis); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.address, err)
	}
	return s.Serve(ctx, lis)
}
