/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package lifecycle runs a service next to its gRPC health server and stops
// both on a signal, a service error or context cancellation.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/mfreeman451/opsdeck/pkg/grpc"
)

const (
	MaxRecvSize     = 4 * 1024 * 1024 // 4MB
	MaxSendSize     = 4 * 1024 * 1024 // 4MB
	ShutdownTimeout = 10 * time.Second
)

// Service defines the interface that all services must implement.
type Service interface {
	Start(context.Context) error
	Stop(context.Context) error
}

// GRPCServiceRegistrar is a function type for registering gRPC services.
type GRPCServiceRegistrar func(*grpc.Server) error

// ServerOptions holds configuration for creating a server.
type ServerOptions struct {
	// ListenAddr is the gRPC address; empty disables the gRPC server.
	ListenAddr           string
	ServiceName          string
	Service              Service
	RegisterGRPCServices []GRPCServiceRegistrar
	// HealthServer is shared with the service so it can publish per-source
	// statuses. A new one is created when nil.
	HealthServer *health.Server
	Logger       *zap.Logger
	// Signals overrides the OS signal channel, for tests.
	Signals <-chan os.Signal
}

// RunServer starts a service with the provided options and handles lifecycle.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("Starting service", zap.String("service", opts.ServiceName))

	var grpcServer *grpc.Server

	if opts.ListenAddr != "" {
		grpcServer = setupGRPCServer(opts, logger)
	}

	// Create error channel for service errors
	errChan := make(chan error, 2)

	go func() {
		if err := opts.Service.Start(ctx); err != nil {
			errChan <- fmt.Errorf("service: %w", err)
		}
	}()

	if grpcServer != nil {
		go func() {
			logger.Info("Starting gRPC server", zap.String("addr", opts.ListenAddr))

			if err := grpcServer.Start(); err != nil {
				errChan <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	signals := opts.Signals
	if signals == nil {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		signals = sigChan
	}

	return handleShutdown(ctx, cancel, grpcServer, opts.Service, errChan, signals, logger)
}

func setupGRPCServer(opts *ServerOptions, logger *zap.Logger) *grpc.Server {
	hs := opts.HealthServer
	if hs == nil {
		hs = health.NewServer()
	}

	grpcServer := grpc.NewServer(opts.ListenAddr,
		grpc.WithMaxRecvSize(MaxRecvSize),
		grpc.WithMaxSendSize(MaxSendSize),
		grpc.WithHealthServer(hs),
		grpc.WithLogger(logger.Named("grpc")),
	)

	hs.SetServingStatus(opts.ServiceName, healthpb.HealthCheckResponse_SERVING)

	if err := grpcServer.RegisterHealthServer(); err != nil {
		logger.Warn("Failed to register health server", zap.Error(err))
	}

	for _, register := range opts.RegisterGRPCServices {
		if err := register(grpcServer); err != nil {
			logger.Error("Failed to register gRPC service", zap.Error(err))
		}
	}

	return grpcServer
}

func handleShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	grpcServer *grpc.Server,
	svc Service,
	errChan <-chan error,
	signals <-chan os.Signal,
	logger *zap.Logger,
) error {
	var runErr error

	select {
	case sig := <-signals:
		logger.Info("Received signal, initiating shutdown", zap.Stringer("signal", sig))
	case err := <-errChan:
		logger.Error("Received error, initiating shutdown", zap.Error(err))
		runErr = err
	case <-ctx.Done():
		logger.Info("Context canceled, initiating shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	cancel()

	if grpcServer != nil {
		grpcServer.Stop(shutdownCtx)
	}

	if err := svc.Stop(shutdownCtx); err != nil {
		logger.Error("Error during service shutdown", zap.Error(err))

		return errors.Join(runErr, fmt.Errorf("shutdown error: %w", err))
	}

	return runErr
}
