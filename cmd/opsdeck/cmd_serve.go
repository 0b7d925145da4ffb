package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mfreeman451/opsdeck/pkg/core"
	"github.com/mfreeman451/opsdeck/pkg/lifecycle"
	"github.com/mfreeman451/opsdeck/pkg/logger"
)

const serviceName = "opsdeck"

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadOptionalConfig(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	server, err := core.NewServer(ctx, cfg, core.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("Configuration loaded",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("grpc_addr", cfg.GRPCAddr),
		zap.String("db_path", cfg.DBPath))

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ListenAddr:   cfg.GRPCAddr,
		ServiceName:  serviceName,
		Service:      server,
		HealthServer: server.HealthServer(),
		Logger:       log,
	})
}
