package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dot-do/gateway/internal/config"
	"github.com/dot-do/gateway/internal/mcp"
	"github.com/dot-do/gateway/internal/schema"
)

// newMCPCmd runs the MCP server over stdio for editor and agent clients that
// spawn the gateway as a subprocess instead of talking to /mcp over HTTP.
func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP protocol over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "gateway.yml", "path to the config file")
	return cmd
}

func runMCP(parent context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level)

	def, err := cfg.SchemaDefinition()
	if err != nil {
		return err
	}
	s, err := schema.Parse(def)
	if err != nil {
		return err
	}

	reg := mcp.NewRegistry()
	if err := mcp.RegisterModelTools(reg, s, cfg.MCP.Prefix); err != nil {
		return err
	}
	reg.RegisterResource(&mcp.SchemaResource{Schema: s})

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := mcp.NewServer(reg, mcp.ServerInfo{
		Name:    cfg.API.Name,
		Version: versionOr(cfg.API.Version),
	}, logger)
	return server.Run(ctx)
}
