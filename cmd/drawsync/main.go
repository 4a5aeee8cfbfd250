package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Liyulingyue/DrawSomethingAIPlatform-sub000/internal/auth"
	"github.com/Liyulingyue/DrawSomethingAIPlatform-sub000/internal/config"
	"github.com/Liyulingyue/DrawSomethingAIPlatform-sub000/internal/database"
	"github.com/Liyulingyue/DrawSomethingAIPlatform-sub000/internal/devserver"
	"github.com/Liyulingyue/DrawSomethingAIPlatform-sub000/internal/gameapi"
	"github.com/Liyulingyue/DrawSomethingAIPlatform-sub000/internal/logging"
	"github.com/Liyulingyue/DrawSomethingAIPlatform-sub000/internal/roomsync"
	"github.com/Liyulingyue/DrawSomethingAIPlatform-sub000/internal/sketchcache"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "drawsync",
		Short: "DrawSomething AI platform sync client",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Join a room and keep its state synchronized",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context())
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the in-memory development backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	sketchCmd := &cobra.Command{
		Use:   "sketch [prompt]",
		Short: "Generate a sketch step sequence through the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSketch(cmd.Context(), args[0])
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(watchCmd, serveCmd, sketchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("server-url", defaults.GetString("server.url"), "Backend base URL")
	cmd.PersistentFlags().String("room", "", "Room identifier to join")
	cmd.PersistentFlags().String("username", "", "Preferred player name (empty for a guest handle)")
	cmd.PersistentFlags().String("cache-path", defaults.GetString("cache.path"), "SQLite cache path")
	cmd.PersistentFlags().Duration("poll-interval", defaults.GetDuration("poll.interval"), "Room poll interval")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "Dev server listen address")
	cmd.PersistentFlags().String("signing-secret", "", "Dev server session signing secret")

	bindFlag(cmd, "server.url", "server-url")
	bindFlag(cmd, "room.id", "room")
	bindFlag(cmd, "user.name", "username")
	bindFlag(cmd, "cache.path", "cache-path")
	bindFlag(cmd, "poll.interval", "poll-interval")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runWatch(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if appConfig.RoomID == "" {
		return fmt.Errorf("room.id is required for watch")
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.CachePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokens := auth.NewTokenHolder()
	client, err := gameapi.NewClient(gameapi.ClientConfig{
		BaseURL: appConfig.ServerURL,
		Token:   tokens.Provider(),
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	resolver, err := auth.NewResolver(auth.ResolverConfig{
		Client:    client,
		ServerURL: appConfig.ServerURL,
		Preferred: appConfig.Username,
		Database:  db,
		Tokens:    tokens,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	session, err := roomsync.NewSession(roomsync.SessionConfig{
		Client:       client,
		RoomID:       appConfig.RoomID,
		Resolver:     resolver,
		PollInterval: appConfig.PollInterval,
		Notifier:     roomsync.NewLogNotifier(logger),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	printJoinCode(appConfig.ServerURL, appConfig.RoomID, logger)

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := session.Start(signalCtx); err != nil {
		return err
	}
	defer session.Stop()

	<-signalCtx.Done()
	return nil
}

// printJoinCode renders the web join link as a terminal QR code so a phone
// can hop into the same room.
func printJoinCode(serverURL, roomID string, logger *zap.Logger) {
	joinURL := fmt.Sprintf("%s/room/%s", serverURL, roomID)
	code, err := qrcode.New(joinURL, qrcode.Medium)
	if err != nil {
		logger.Warn("failed to render join QR code", zap.Error(err))
		return
	}
	fmt.Println(code.ToSmallString(false))
	fmt.Println("join link:", joinURL)
}

func runServe(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if appConfig.SigningSecret == "" {
		return fmt.Errorf("session.signing_secret is required for serve")
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.SessionIssuer,
		Audience:      "drawsomething-api",
	})
	if err != nil {
		return err
	}

	handler, err := devserver.NewHTTPHandler(devserver.Dependencies{
		Tokens: issuer,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dev server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runSketch(ctx context.Context, prompt string) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.CachePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokens := auth.NewTokenHolder()
	client, err := gameapi.NewClient(gameapi.ClientConfig{
		BaseURL: appConfig.ServerURL,
		Token:   tokens.Provider(),
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	resolver, err := auth.NewResolver(auth.ResolverConfig{
		Client:    client,
		ServerURL: appConfig.ServerURL,
		Preferred: appConfig.Username,
		Database:  db,
		Tokens:    tokens,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	if _, err := resolver.Resolve(ctx); err != nil {
		return err
	}

	store, err := sketchcache.NewSQLiteStore(db)
	if err != nil {
		return err
	}
	cache, err := sketchcache.NewCache(sketchcache.CacheConfig{
		Store:     store,
		Generator: sketchGenerator(client),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	result, err := cache.Generate(ctx, prompt, sketchcache.Options{})
	if err != nil {
		return err
	}

	fmt.Printf("generated %d steps for %q\n", result.StepCount, prompt)
	for index, step := range result.Steps {
		fmt.Printf("  step %d: %s\n", index+1, step)
	}
	fmt.Println("final:", result.FinalImage)
	return nil
}

// sketchGenerator adapts the gameapi sketch call to the cache's generator
// shape.
func sketchGenerator(client *gameapi.Client) sketchcache.GenerateFunc {
	return func(ctx context.Context, prompt string, opts sketchcache.Options) (*sketchcache.Result, error) {
		response, err := client.GenerateSketch(ctx, gameapi.GenerateSketchRequest{
			Prompt:      prompt,
			MaxSteps:    opts.MaxSteps,
			SortMethod:  opts.SortMethod,
			ModelConfig: opts.ModelConfig,
		})
		if err != nil {
			return nil, err
		}
		return &sketchcache.Result{
			Steps:      response.Steps,
			FinalImage: response.FinalImage,
			StepCount:  response.StepCount,
			Metadata:   response.Metadata,
		}, nil
	}
}
