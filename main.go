// Command gobang-online starts the Gobang Online lobby server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing pages, REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Flags (or GOBANG_* environment variables, or a .env file) control the
// listener, the user directory backend, logging, and optional ngrok
// tunneling for easy external access during development.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/gobang-online/game/config"
	"github.com/wricardo/gobang-online/transport/mcp"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Gobang Online"
)

// main loads .env, parses flags and runs the selected mode.
func main() {
	// Load .env file if it exists (ignore error if not found)
	envErr := godotenv.Load()

	cfg := config.Default()
	cmd := newCommand(cfg)
	cmd.Before = func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		if envErr != nil && !os.IsNotExist(envErr) {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", envErr)
		}
		return ctx, nil
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// newCommand builds the root command. Flags write into cfg.
func newCommand(cfg *config.Config) *cli.Command {
	serve := func(ctx context.Context, cmd *cli.Command) error {
		return runHTTPServer(ctx, cfg)
	}

	return &cli.Command{
		Name:    "gobang-online",
		Usage:   AppName + " lobby and room server",
		Version: Version,
		Flags:   config.Flags(cfg),
		Action:  serve,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with pages, API, WebSocket, and MCP endpoint (default)",
				Action:  serve,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server, using a running API or an internal one",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Usage:   "API to proxy to; defaults to the --host/--port server",
						Sources: cli.EnvVars("GOBANG_API_URL"),
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					apiURL := cmd.String("api-url")
					if apiURL == "" {
						apiURL = loopbackURL(cfg)
					}
					return runStdioMCP(ctx, cfg, apiURL)
				},
			},
		},
	}
}

// runHTTPServer starts the HTTP server with pages, REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := cfg.NewLogger(os.Stderr)
	log.Info().Str("version", Version).Msgf("Starting %s", AppName)

	// Setup graceful shutdown context
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer app.Close()
	app.run(ctx)

	// Create MCP client for /mcp endpoint
	mcpClient := mcp.NewClient(loopbackURL(cfg))
	handler := app.handler(mcpClient.GetMCPServer())

	addr := cfg.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	httpServer := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Info().Str("addr", addr).Msg("HTTP server listening")
		log.Info().Msgf("Lobby: http://%s/lobby", addr)
		log.Info().Msgf("REST API: http://%s/api/rooms", addr)
		log.Info().Msgf("WebSocket: ws://%s/ws?room=<name>", addr)
		log.Info().Msgf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	if cfg.Ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg, handler, log)
		}()
	}

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Wait for all goroutines to finish
	wg.Wait()
	log.Info().Msg("Server stopped")
	return nil
}

// runNgrok serves handler through an ngrok tunnel until ctx is done.
func runNgrok(ctx context.Context, cfg *config.Config, handler http.Handler, log zerolog.Logger) {
	if cfg.NgrokAuth == "" {
		log.Warn().Msg("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Info().Msg("Starting ngrok tunnel...")

	// Configure ngrok endpoint
	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
		log.Info().Str("domain", cfg.NgrokDomain).Msg("Using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.NgrokAuth))
	if err != nil {
		log.Error().Err(err).Msg("Failed to start ngrok tunnel")
		return
	}

	ngrokURL := tun.URL()
	log.Info().Str("url", ngrokURL).Msg("Ngrok tunnel established")
	log.Info().Msgf("  Lobby (ngrok): %s/lobby", ngrokURL)
	log.Info().Msgf("  REST API (ngrok): %s/api/rooms", ngrokURL)
	log.Info().Msgf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	tunnelServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		tunnelServer.Close()
	}()

	// Serve HTTP through ngrok tunnel
	if err := tunnelServer.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Ngrok server error")
	}
	log.Info().Msg("Ngrok tunnel closed")
}

// runStdioMCP runs an MCP stdio server.
// It reuses the API at apiURL when it answers; otherwise it starts a minimal
// internal HTTP API bound to a random loopback port and targets that.
func runStdioMCP(ctx context.Context, cfg *config.Config, apiURL string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	// stdout carries the MCP protocol
	log := cfg.NewLogger(os.Stderr)

	baseURL := apiURL
	log.Info().Str("url", apiURL).Msg("Checking for external API server")

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(apiURL + "/healthz")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Info().Str("url", apiURL).Msg("External API server found, using it for MCP")
	} else {
		log.Info().Msg("No external API server found, starting internal HTTP server")

		app, err := newApplication(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer app.Close()
		app.run(ctx)

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		httpServer := &http.Server{Handler: app.handler(nil)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + listener.Addr().String()
		log.Info().Str("url", baseURL).Msg("Internal HTTP server started for MCP stdio")
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Info().Msg("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
