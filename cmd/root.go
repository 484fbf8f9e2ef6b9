package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/client/adapters/device"
	"github.com/satriahrh/arunika/client/internal/api"
	"github.com/satriahrh/arunika/client/internal/audio"
	"github.com/satriahrh/arunika/client/internal/config"
	"github.com/satriahrh/arunika/client/internal/metrics"
	"github.com/satriahrh/arunika/client/internal/websocket"
	"github.com/satriahrh/arunika/client/usecase"
)

var (
	cfgFile string
	wsURL   string
	micFile string
	sink    string
	port    int
)

var rootCmd = &cobra.Command{
	Use:   "arunika-client",
	Short: "Voice client for the arunika conversational agent",
	Long: `Voice client for the arunika conversational agent.

Connects to the agent over a WebSocket, sends text and microphone audio,
and plays the spoken replies. A local HTTP API controls the client and
streams its state to viewers at /ui.

Examples:
  arunika-client --ws-url ws://localhost:8000/ws --mic hello.wav
  arunika-client --config client.yaml --port 9090`,
	SilenceUsage: true,
	RunE:         run,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, default from CONFIG_FILE)")
	rootCmd.Flags().StringVar(&wsURL, "ws-url", "", "agent WebSocket URL (overrides ARUNIKA_WS_URL)")
	rootCmd.Flags().StringVar(&micFile, "mic", "", "WAV or raw PCM16 file used as the microphone")
	rootCmd.Flags().StringVar(&sink, "sink", "", "file receiving played audio as float32LE")
	rootCmd.Flags().IntVar(&port, "port", 0, "control API port (overrides PORT)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("ws-url") {
		cfg.Agent.URL = wsURL
	}
	if flags.Changed("mic") {
		cfg.Audio.MicSource = micFile
	}
	if flags.Changed("sink") {
		cfg.Audio.SpeakerSink = sink
	}
	if flags.Changed("port") {
		cfg.HTTP.Port = port
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if strings.EqualFold(cfg.Format, "console") {
		zapConfig = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, err
	}
	zapConfig.Level = level
	return zapConfig.Build()
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Initialize logger
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	// Initialize adapters
	transport := websocket.NewTransport(websocket.TransportConfig{
		URL:              cfg.Agent.URL,
		HandshakeTimeout: cfg.Agent.HandshakeTimeout(),
	}, m, logger.Named("transport"))
	microphone := device.NewFileMicrophone(cfg.Audio.MicSource, logger.Named("microphone"))
	speaker, err := device.NewSpeaker(cfg.Audio.SpeakerSink, logger.Named("speaker"))
	if err != nil {
		return err
	}

	manager := usecase.NewConnectionManager(transport, microphone, speaker, usecase.ManagerConfig{
		Capture: audio.CaptureConfig{
			ChunkInterval: cfg.Audio.ChunkInterval(),
			StopCooldown:  cfg.Audio.StopCooldown(),
		},
		SampleRate: cfg.Audio.PlaybackSampleRate,
	}, m, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize UI hub with the shared state
	hub := websocket.NewHub(manager.State(), logger.Named("hub"))
	go hub.Run(ctx)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("Request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status))
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	opts := api.Options{UI: hub.HandleUI}
	if cfg.Metrics.Enabled {
		opts.Metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}
	api.InitRoutes(e, manager, opts, logger.Named("api"))

	go func() {
		if err := manager.Start(ctx); err != nil {
			logger.Error("Failed to connect to agent", zap.String("url", cfg.Agent.URL), zap.Error(err))
		}
	}()

	// Graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		if err := e.Start(cfg.HTTP.ListenAddress()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("Client started",
		zap.String("agent", cfg.Agent.URL),
		zap.String("listen", cfg.HTTP.ListenAddress()))

	select {
	case <-ctx.Done():
	case err = <-serverErr:
		logger.Error("Control API failed", zap.Error(err))
	}

	logger.Info("Client is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("Control API forced to shutdown", zap.Error(shutdownErr))
	}
	if closeErr := manager.Close(); closeErr != nil {
		logger.Error("Failed to close connection manager", zap.Error(closeErr))
	}

	logger.Info("Client exited")
	return err
}
