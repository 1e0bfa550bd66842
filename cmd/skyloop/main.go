package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/skyloop/engine/internal/api"
	"github.com/skyloop/engine/internal/bytecache"
	"github.com/skyloop/engine/internal/config"
	"github.com/skyloop/engine/internal/database"
	"github.com/skyloop/engine/internal/dataclient"
	"github.com/skyloop/engine/internal/dispatcher"
	"github.com/skyloop/engine/internal/handlers"
	"github.com/skyloop/engine/internal/influx"
	"github.com/skyloop/engine/internal/logging"
	"github.com/skyloop/engine/internal/monitor"
	intOtel "github.com/skyloop/engine/internal/otel"
	"github.com/skyloop/engine/internal/preload"
	"github.com/skyloop/engine/internal/sequencer"
	"github.com/skyloop/engine/internal/session"
	"github.com/skyloop/engine/internal/store"
	"github.com/skyloop/engine/internal/util"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"

	ServiceName string = "skyloop"
)

// file paths
var (
	LogFilePath string
	LogFile     *os.File
)

// global state
var (
	SessionStartTime time.Time = time.Now()

	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// Services
	dbManager       *database.Manager
	backend         store.Backend
	influxManager   *influx.Manager
	telemetry       *influx.Telemetry
	byteStore       *bytecache.Store
	byteClient      *bytecache.Client
	experience      *handlers.Service
	gateway         *handlers.Gateway
	eventDispatcher *dispatcher.Dispatcher
	monitorService  *monitor.Service
)

func main() {
	configDir := flag.String("config", ".", "directory containing skyloop.cfg.json")
	flag.Parse()

	// Console logging until the session log file is open.
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()
	Logger.Info("Starting", "service", ServiceName, "version", Version, "buildDate", BuildDate)

	if err := config.Load(*configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	logsDir := config.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.MkdirAll(logsDir, 0755)
	}

	LogFilePath = logging.LogFilePath(logsDir, ServiceName, SessionStartTime)
	if _, err := os.Stat(LogFilePath); err == nil {
		os.Rename(LogFilePath, LogFilePath+".old")
	}
	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
	}

	// OTel provider (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    LogFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	if config.GetBool("graylog.enabled") {
		gelfHandler, gerr := logging.NewGelfHandler(
			config.GetString("graylog.address"),
			config.GetString("logLevel"),
		)
		if gerr != nil {
			Logger.Error("Failed to connect GELF output", "error", gerr)
		} else {
			SlogManager.AddHandler(gelfHandler)
			defer gelfHandler.Close()
		}
	}

	// Re-setup logging with file output and optional OTel
	SlogManager.Setup(LogFile, config.GetString("logLevel"), otelLogProvider)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)

	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// database + store
	dbManager = database.NewManager(zlog)
	if err := dbManager.Connect(); err != nil {
		fatal("Failed to connect to database", err)
	}
	if err := dbManager.Setup(); err != nil {
		fatal("Failed to migrate database", err)
	}
	defer dbManager.Close()

	backend, err = store.NewBackend(config.GetString("store.type"), dbManager, Logger)
	if err != nil {
		fatal("Failed to create storage backend", err)
	}

	// telemetry
	if config.GetBool("influx.enabled") {
		influxManager = influx.NewManager(zlog, filepath.Join(logsDir, "influx_backup.gz"))
		if err := influxManager.Connect(); err != nil {
			Logger.Error("Failed to connect to InfluxDB, telemetry disabled", "error", err)
			influxManager = nil
		} else {
			influxManager.CreateWriters()
			telemetry = influx.NewTelemetry(influxManager)
		}
	}

	// HTTP API
	srvCfg := config.GetServerConfig()
	apiServer := api.NewServer(api.Dependencies{
		Store:          backend,
		Logger:         Logger,
		AssetDir:       srvCfg.AssetDir,
		MaxUploadBytes: srvCfg.MaxUploadBytes,
	})

	// byte cache service on its own listener, proxying misses to the API
	var byteServer *http.Server
	bcCfg := config.GetBytecacheConfig()
	if bcCfg.Enabled {
		byteStore = bytecache.NewStore(bcCfg.Version,
			bytecache.WithMaxBytes(bcCfg.MaxBytes),
			bytecache.WithLogger(Logger),
		)
		byteService := bytecache.NewService(byteStore, apiServer.Handler(), Logger)

		bcMux := http.NewServeMux()
		bcMux.HandleFunc("/ws", byteService.HandleWS)
		bcMux.Handle("/", byteService)
		byteServer = &http.Server{Addr: bcCfg.Addr, Handler: bcMux}
		go func() {
			Logger.Info("Byte cache listening", "addr", bcCfg.Addr)
			if err := byteServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				Logger.Error("Byte cache server failed", "error", err)
			}
		}()

		byteClient = bytecache.NewClient(Logger)
		if err := byteClient.Dial("ws://" + dialAddr(bcCfg.Addr) + "/ws"); err != nil {
			Logger.Error("Failed to dial byte cache, warming disabled", "error", err)
			byteClient = nil
		}
	}

	// experience engine
	data := dataclient.New(config.GetString("api.baseUrl"), dataclient.WithLogger(Logger))
	sess := session.NewContext()
	pre, err := preload.New(preload.WithLogger(logging.NewDispatcherLogger(Logger)))
	if err != nil {
		fatal("Failed to create preload cache", err)
	}

	eventDispatcher, err = dispatcher.New(logging.NewDispatcherLogger(Logger))
	if err != nil {
		fatal("Failed to create dispatcher", err)
	}
	gateway = handlers.NewGateway(eventDispatcher, Logger)

	expCfg := config.GetExperienceConfig()
	var seqOpts []sequencer.Option
	if expCfg.DebounceMillis > 0 {
		seqOpts = append(seqOpts, sequencer.WithDebounce(time.Duration(expCfg.DebounceMillis)*time.Millisecond))
	}
	if expCfg.GraceMillis > 0 {
		seqOpts = append(seqOpts, sequencer.WithGraceWindow(time.Duration(expCfg.GraceMillis)*time.Millisecond))
	}
	seqOpts = append(seqOpts, sequencer.WithLoadTimeout(util.ParseDurationDefault(expCfg.LoadTimeout, 10*time.Second)))
	if expCfg.Muted {
		seqOpts = append(seqOpts, sequencer.WithMuted())
	}

	expDeps := handlers.Dependencies{
		Data:       data,
		Session:    sess,
		Preload:    pre,
		Surface:    gateway,
		LogManager: SlogManager,
	}
	if byteClient != nil {
		expDeps.Warmer = byteClient
	}
	if telemetry != nil {
		expDeps.Recorder = telemetry
		expDeps.Preloads = telemetry
	}

	experience, err = handlers.NewService(expDeps, seqOpts...)
	if err != nil {
		fatal("Failed to create experience service", err)
	}
	experience.RegisterHandlers(eventDispatcher)

	// Dynamic state attributes on every log record.
	SlogManager.ContextProvider = func() []slog.Attr {
		var attrs []slog.Attr
		if loc := sess.Location(); loc != nil {
			attrs = append(attrs, slog.String("location", loc.Name))
		}
		attrs = append(attrs, slog.Int("viewers", gateway.Viewers()))
		return attrs
	}

	// monitor
	monDeps := monitor.Dependencies{
		LogManager: SlogManager,
		Session:    sess,
		Preload:    pre,
		StatusDir:  logsDir,
	}
	if byteStore != nil {
		monDeps.Cache = byteStore
	}
	if telemetry != nil {
		monDeps.Recorder = telemetry
	}
	monitorService = monitor.NewService(monDeps)
	if err := monitorService.Start(); err != nil {
		Logger.Error("Failed to start monitor", "error", err)
	}

	// main listener: CRUD API plus the viewer socket
	rootMux := http.NewServeMux()
	rootMux.HandleFunc("/ws", gateway.HandleWS)
	rootMux.Handle("/", apiServer.Handler())
	httpServer := &http.Server{Addr: srvCfg.Addr, Handler: rootMux}
	go func() {
		Logger.Info("HTTP server listening", "addr", srvCfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Error("HTTP server failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if expCfg.StartLocation != "" {
		locID, perr := uuid.Parse(expCfg.StartLocation)
		if perr != nil {
			Logger.Error("Invalid start location", "error", perr, "value", expCfg.StartLocation)
		} else if serr := experience.Start(ctx, locID); serr != nil {
			Logger.Error("Failed to start experience", "error", serr)
		}
	} else {
		Logger.Info("No start location configured, waiting for location.change")
	}

	<-ctx.Done()
	Logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	httpServer.Shutdown(shutdownCtx)
	if byteServer != nil {
		byteServer.Shutdown(shutdownCtx)
	}
	if byteClient != nil {
		byteClient.Close()
	}
	experience.Close()
	monitorService.Stop()
	if influxManager != nil {
		influxManager.Close()
	}
	Logger.Info("Shutdown complete")
	SlogManager.Flush(shutdownCtx)
	if OTelProvider != nil {
		OTelProvider.Shutdown(shutdownCtx)
	}
	if LogFile != nil {
		LogFile.Close()
	}
}

func fatal(msg string, err error) {
	Logger.Error(msg, "error", err)
	os.Exit(1)
}

// dialAddr turns a listen address into one a client can dial.
func dialAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
