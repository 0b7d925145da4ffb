package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mfreeman451/opsdeck/pkg/config"
	"github.com/mfreeman451/opsdeck/pkg/core"
)

// newSnapshotService builds the service behind the snapshot command.
var newSnapshotService = func(ctx context.Context, cfg *config.Config) (core.CoreService, error) {
	server, err := core.NewServer(ctx, cfg, core.WithLogger(zap.NewNop()), core.WithoutRuntimeMetrics())
	if err != nil {
		return nil, err
	}

	return server, nil
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfg, err := loadOptionalConfig(configPath)
	if err != nil {
		return err
	}

	// a one-shot render keeps no audit history
	dir, err := os.MkdirTemp("", "opsdeck-snapshot")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	cfg.DBPath = filepath.Join(dir, "snapshot.db")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	server, err := newSnapshotService(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer func() { _ = server.Stop(context.Background()) }()

	page, err := server.Snapshot(ctx, pageName)
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), page)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
