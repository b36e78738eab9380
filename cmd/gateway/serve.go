package main

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dot-do/gateway/internal/config"
	"github.com/dot-do/gateway/internal/mcp"
	"github.com/dot-do/gateway/internal/registry"
	"github.com/dot-do/gateway/internal/rest"
	"github.com/dot-do/gateway/internal/schema"
	"github.com/dot-do/gateway/internal/store"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST and MCP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "gateway.yml", "path to the config file")
	return cmd
}

func runServe(parent context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level)

	// Schema parse errors are fatal at startup.
	gw, err := buildGateway(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           gw,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("gateway listening",
		"addr", cfg.Server.Listen,
		"version", Version,
		"mcp_enabled", cfg.MCP.Enabled,
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	logger.Info("gateway stopped")
	return nil
}

// buildGateway wires schema, stores, MCP and the REST router from config.
func buildGateway(cfg *config.Config, logger *slog.Logger) (http.Handler, error) {
	def, err := cfg.SchemaDefinition()
	if err != nil {
		return nil, err
	}
	s, err := schema.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}

	factory := store.NewMemoryFactory()
	if cfg.IDFormat == "sqid" {
		typeReg, err := registry.NewTypeRegistry(s, cfg.TypeNumbers)
		if err != nil {
			return nil, err
		}
		codec := registry.NewCodec(cfg.SqidSeed, cfg.SqidMinLen)
		factory.IDFunc = sqidIDFunc(s, typeReg, codec)
	}

	var mcpHandler http.Handler
	if cfg.MCP.Enabled {
		reg := mcp.NewRegistry()
		if err := mcp.RegisterModelTools(reg, s, cfg.MCP.Prefix); err != nil {
			return nil, err
		}
		reg.RegisterResource(&mcp.SchemaResource{Schema: s})
		server := mcp.NewServer(reg, mcp.ServerInfo{
			Name:    cfg.API.Name,
			Version: versionOr(cfg.API.Version),
		}, logger)
		mcpHandler = mcp.NewHTTPServer(server, cfg.Server.CORS, logger)
	}

	auth := rest.AuthOptions{
		Mode:            cfg.Auth.Mode,
		TrustSnippets:   cfg.Auth.TrustSnippets,
		TrustUnverified: cfg.Auth.TrustUnverified,
	}
	if cfg.Auth.JWTSecret != "" {
		auth.Verifier = rest.NewHMACVerifier(cfg.Auth.JWTSecret)
	}

	return rest.NewRouter(s, factory, rest.Options{
		BasePath:    cfg.REST.BasePath,
		PageSize:    cfg.REST.PageSize,
		MaxPageSize: cfg.REST.MaxPageSize,
		MetaPrefix:  cfg.MetaPrefix,
		BaseDomain:  cfg.Server.BaseDomain,
		API: rest.APIInfo{
			Name:        cfg.API.Name,
			Version:     versionOr(cfg.API.Version),
			Description: cfg.API.Description,
		},
		Auth: auth,
		MCP:  mcpHandler,
	}, logger), nil
}

// sqidIDFunc generates "{singular}_{sqid}" ids for new documents.
func sqidIDFunc(s *schema.Schema, typeReg *registry.TypeRegistry, codec *registry.Codec) store.IDFunc {
	return func(collection string) string {
		m, ok := s.ModelByPlural(collection)
		if !ok {
			return registry.NewCUID()
		}
		num, ok := typeReg.Number(m.Name)
		if !ok {
			return registry.NewCUID()
		}
		return m.Singular + "_" + codec.Encode(num, nil, time.Now().UnixMilli(), randUint64())
	}
}

func randUint64() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint64(b[:])
}

func versionOr(v string) string {
	if Version != "dev" {
		return Version
	}
	if v != "" {
		return v
	}
	return Version
}
