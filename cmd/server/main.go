// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/jukebox/internal/api/connect"
	"github.com/osa030/jukebox/internal/api/jukeboxv1/jukeboxv1connect"
	"github.com/osa030/jukebox/internal/app/credential"
	"github.com/osa030/jukebox/internal/app/library"
	"github.com/osa030/jukebox/internal/app/mediasession"
	"github.com/osa030/jukebox/internal/app/session"
	"github.com/osa030/jukebox/internal/infra/catalog"
	"github.com/osa030/jukebox/internal/infra/config"
	"github.com/osa030/jukebox/internal/infra/logger"
	"github.com/osa030/jukebox/internal/infra/mpris"
	"github.com/osa030/jukebox/internal/infra/spotify"
	"github.com/osa030/jukebox/internal/infra/tokenstore"
)

var (
	app        = kingpin.New("jukebox-server", "Jukebox playback server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	logFormat  = app.Flag("log-format", "Log format: console or json (default: console for stdout, json for files)").Enum("console", "json")

	// import command
	importCmd = app.Command("import", "Look tracks up on Spotify and store them in the catalog")
	importIDs = importCmd.Arg("ids", "Spotify track IDs, URIs or URLs").Required().Strings()
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
		Format: *logFormat,
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closeLog()

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == importCmd.FullCommand() {
		if err := runImport(cfg, *importIDs); err != nil {
			zlog.Error().Msgf("Import failed: %v", err)
			closeLog()
			os.Exit(1)
		}
		return
	}

	// Run server (defer ensures shutdown hook is called)
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		closeLog()
		os.Exit(1)
	}
}

// openLibrary opens the catalog and the Spotify lookup client.
func openLibrary(ctx context.Context, cfg *config.Config) (*library.Library, func(), error) {
	repo, err := catalog.Open(ctx, catalog.Config{
		Driver: cfg.Catalog.Driver,
		DSN:    cfg.Catalog.DSN,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	spotifyClient, err := spotify.New(ctx, spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		Market:       cfg.Spotify.Market,
	})
	if err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("failed to create Spotify client: %w", err)
	}

	closeFn := func() {
		if err := repo.Close(); err != nil {
			zlog.Warn().Err(err).Msg("Failed to close catalog")
		}
	}
	return library.New(repo, spotifyClient), closeFn, nil
}

// runImport stores tracks in the catalog and prints them.
func runImport(cfg *config.Config, ids []string) error {
	ctx := context.Background()
	lib, closeLib, err := openLibrary(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLib()

	tracks, err := lib.Import(ctx, ids)
	if err != nil {
		return err
	}
	for _, t := range tracks {
		fmt.Printf("%s\t%s\t%v\t%s\n", t.ID, t.Name, t.Artists, t.Duration())
	}
	zlog.Info().Msgf("Imported %d tracks", len(tracks))
	return nil
}

// openStore opens the credential store and seeds it with the configured refresh token.
func openStore(ctx context.Context, cfg *config.Config) (credential.Store, func() error, error) {
	store, closeStore, err := tokenstore.OpenFromConfig(cfg.Credentials)
	if err != nil {
		return nil, closeStore, fmt.Errorf("failed to open credential store: %w", err)
	}

	if cfg.Spotify.RefreshToken != "" {
		if _, ok := store.Get(ctx, credential.SpotifyRefreshToken); !ok {
			if err := store.Set(ctx, credential.SpotifyRefreshToken, cfg.Spotify.RefreshToken); err != nil {
				return nil, closeStore, fmt.Errorf("failed to seed refresh token: %w", err)
			}
			zlog.Info().Msg("Refresh token seeded from config")
		}
	}
	return store, closeStore, nil
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	defer func() {
		if err := closeStore(); err != nil {
			zlog.Warn().Err(err).Msg("Failed to close credential store")
		}
	}()
	if err != nil {
		return err
	}

	lib, closeLib, err := openLibrary(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLib()

	// Media keys
	var media mediasession.Session = mediasession.Noop{}
	var mediaSession *mpris.Session
	if cfg.Jukebox.MediaKeys {
		mediaSession = mpris.NewSession(cfg.Jukebox.Name)
		mediaServer, err := mpris.Serve(cfg.Player.DeviceName, mediaSession)
		if err != nil {
			zlog.Warn().Err(err).Msg("Media keys unavailable")
		} else {
			media = mediaSession
			defer mediaServer.Close()
		}
	}

	// Create session
	sess, err := session.New(cfg, session.Deps{
		Store: store,
		SDK: spotify.NewSDK(spotify.SDKConfig{
			ClientID:     cfg.Spotify.ClientID,
			PollInterval: cfg.Player.PollInterval(),
		}),
		Login: spotify.NewAuthenticator(spotify.AuthConfig{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
		}, store),
		Library: lib,
		Media:   media,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if mediaSession != nil {
		mediaSession.SetPositionFunc(func() time.Duration {
			return time.Duration(sess.Status().SeekMs) * time.Millisecond
		})
	}

	// Create HTTP mux
	mux := http.NewServeMux()
	path, handler := jukeboxv1connect.NewJukeboxServiceHandler(
		apiconnect.NewJukeboxService(sess),
		connect.WithInterceptors(apiconnect.NewTokenInterceptor(cfg.Server.APIToken)),
	)
	mux.Handle(path, handler)
	if cfg.Server.APIToken == "" {
		zlog.Warn().Msg("API token not configured, RPC is unauthenticated")
	}

	// Determine server address
	serverAddr := cfg.Server.Addr
	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:    serverAddr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	// Channel to capture server startup errors
	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	// Start session
	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	// Start server
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", serverAddr)
		// Signal that we're about to start listening
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// Wait for server to start listening
	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	// Execute startup hook if configured (after server is running)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	// Wait for shutdown signal, session end, or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case <-sess.Done():
		zlog.Info().Msg("Session ended, shutting down...")
	case err := <-serverErrCh:
		sess.Close()
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close session first to terminate active streams
	sess.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	// Execute shutdown hook if configured
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
