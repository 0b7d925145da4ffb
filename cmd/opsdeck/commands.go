package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "/etc/opsdeck/opsdeck.yaml"

var (
	configPath string
	pageName   string
	edgesPath  string
	selectedID string
	healthAddr string
	sourceName string

	rootCmd = &cobra.Command{
		Use:           "opsdeck",
		Short:         "Status dashboard for a small compute cluster",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Poll every configured source and serve the dashboard API",
		RunE:  runServe, // cmd_serve.go
	}

	snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch every source once and print a rendered page as JSON",
		RunE:  runSnapshot, // cmd_snapshot.go
	}

	graphCmd = &cobra.Command{
		Use:   "graph",
		Short: "Print the laid out dependency graph as JSON",
		RunE:  runGraph, // cmd_graph.go
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Query a running dashboard's gRPC health service",
		RunE:  runHealth, // cmd_health.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the YAML or JSON config file")

	snapshotCmd.Flags().StringVarP(&pageName, "page", "p", "overview", "page to render")

	graphCmd.Flags().StringVar(&edgesPath, "edges", "", "edge list file, overrides graph.edges_file")
	graphCmd.Flags().StringVar(&selectedID, "select", "", "entity to highlight")

	healthCmd.Flags().StringVar(&healthAddr, "addr", "localhost:50090", "gRPC address of the dashboard")
	healthCmd.Flags().StringVar(&sourceName, "source", "", "report one source instead of the whole service")

	rootCmd.AddCommand(serveCmd, snapshotCmd, graphCmd, healthCmd)
}
