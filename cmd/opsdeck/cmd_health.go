package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfreeman451/opsdeck/pkg/config"
	"github.com/mfreeman451/opsdeck/pkg/grpc"
	"github.com/mfreeman451/opsdeck/pkg/logger"
)

const healthTimeout = 5 * time.Second

func runHealth(cmd *cobra.Command, _ []string) error {
	log, err := logger.New(config.LoggingConfig{Level: "warn", Development: true})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	client, err := grpc.NewClient(healthAddr, grpc.WithMaxRetries(3), grpc.WithClientLogger(log))
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	service := serviceName
	if sourceName != "" {
		service = grpc.SourceServicePrefix + sourceName
	}

	serving, err := client.CheckHealth(ctx, service)
	if err != nil {
		return fmt.Errorf("health check %s: %w", service, err)
	}

	status := "NOT_SERVING"
	if serving {
		status = "SERVING"
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", service, status)

	return err
}
