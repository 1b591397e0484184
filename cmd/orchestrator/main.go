package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"math/bits"
	"net"
	"net/url"
	"os"
	"time"

	sampler "github.com/absmach/sampler"
	"github.com/absmach/sampler/orchestrator"
	"github.com/absmach/sampler/orchestrator/api"
	"github.com/absmach/sampler/orchestrator/console"
	"github.com/absmach/sampler/orchestrator/middleware"
	"github.com/absmach/sampler/pkg/cron"
	"github.com/absmach/sampler/pkg/datalog"
	"github.com/absmach/sampler/pkg/devices"
	"github.com/absmach/sampler/pkg/jaeger"
	"github.com/absmach/sampler/pkg/prometheus"
	"github.com/absmach/sampler/pkg/server"
	"github.com/absmach/sampler/pkg/supervisor"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName          = "orchestrator"
	defHTTPPort      = "7070"
	envPrefixHTTP    = "ORCHESTRATOR_HTTP_"
	envPrefixDatalog = "ORCHESTRATOR_DATALOG_"
	pathEnv          = ".env"
)

var version = "0.1.0"

type envConfig struct {
	LogLevel        string        `env:"ORCHESTRATOR_LOG_LEVEL"         envDefault:"info"`
	InstanceID      string        `env:"ORCHESTRATOR_INSTANCE_ID"`
	ConfigPath      string        `env:"ORCHESTRATOR_CONFIG_PATH"`
	Bus             string        `env:"ORCHESTRATOR_BUS"               envDefault:"memory"`
	BusTimeout      time.Duration `env:"ORCHESTRATOR_BUS_TIMEOUT"       envDefault:"50ms"`
	MQTTAddress     string        `env:"ORCHESTRATOR_MQTT_ADDRESS"      envDefault:"tcp://localhost:1883"`
	MQTTQoS         uint8         `env:"ORCHESTRATOR_MQTT_QOS"          envDefault:"1"`
	MQTTTimeout     time.Duration `env:"ORCHESTRATOR_MQTT_TIMEOUT"      envDefault:"30s"`
	ClientID        string        `env:"ORCHESTRATOR_CLIENT_ID"`
	ClientKey       string        `env:"ORCHESTRATOR_CLIENT_KEY"`
	ChannelID       string        `env:"ORCHESTRATOR_CHANNEL_ID"        envDefault:"sampler"`
	TickInterval    time.Duration `env:"ORCHESTRATOR_TICK_INTERVAL"     envDefault:"5ms"`
	RoundPeriod     time.Duration `env:"ORCHESTRATOR_ROUND_PERIOD"      envDefault:"1500ms"`
	BatchSpacing    time.Duration `env:"ORCHESTRATOR_BATCH_SPACING"     envDefault:"20ms"`
	PollPerTick     int           `env:"ORCHESTRATOR_POLL_PER_TICK"     envDefault:"1"`
	HistorySize     int           `env:"ORCHESTRATOR_HISTORY_SIZE"      envDefault:"64"`
	BroadcastParams bool          `env:"ORCHESTRATOR_BROADCAST_PARAMS"  envDefault:"true"`
	ConsoleAddress  string        `env:"ORCHESTRATOR_CONSOLE_ADDRESS"   envDefault:":7071"`
	ConsoleBuffer   int           `env:"ORCHESTRATOR_CONSOLE_BUFFER"    envDefault:"256"`
	StatusLED       bool          `env:"ORCHESTRATOR_STATUS_LED"        envDefault:"false"`
	SensorSeed      uint64        `env:"ORCHESTRATOR_SENSOR_SEED"       envDefault:"1"`
	RetryInterval   time.Duration `env:"ORCHESTRATOR_RETRY_INTERVAL"    envDefault:"10s"`
	BatchSchedule   string        `env:"ORCHESTRATOR_BATCH_SCHEDULE"`
	BatchTimezone   string        `env:"ORCHESTRATOR_BATCH_TIMEZONE"    envDefault:"UTC"`
	BatchCount      int           `env:"ORCHESTRATOR_BATCH_COUNT"       envDefault:"100"`
	BatchStride     int           `env:"ORCHESTRATOR_BATCH_STRIDE"      envDefault:"1"`
	BatchBurnIn     int           `env:"ORCHESTRATOR_BATCH_BURN_IN"     envDefault:"0"`
	OTELURL         url.URL       `env:"ORCHESTRATOR_OTEL_URL"`
	TraceRatio      float64       `env:"ORCHESTRATOR_TRACE_RATIO"       envDefault:"0"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	svcCfg, err := serviceConfig(cfg)
	if err != nil {
		logger.Error("failed to load orchestrator configuration", slog.String("error", err.Error()))

		return
	}

	b, err := newBus(ctx, g, cfg, svcCfg.Addresses, logger)
	if err != nil {
		logger.Error("failed to initialize bus", slog.String("bus", cfg.Bus), slog.String("error", err.Error()))

		return
	}
	defer b.Close()

	dlCfg := datalog.Config{}
	if err := env.ParseWithOptions(&dlCfg, env.Options{Prefix: envPrefixDatalog}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s round log configuration : %s", svcName, err.Error()))

		return
	}
	recorder, err := datalog.New(dlCfg)
	if err != nil {
		logger.Error("failed to initialize round log", slog.String("error", err.Error()))

		return
	}
	var lister datalog.Lister
	if recorder != nil {
		defer recorder.Close()
		if l, ok := recorder.(datalog.Lister); ok {
			lister = l
		}
	}

	devs := orchestrator.Devices{
		Display:  devices.NewLogDisplay(logger.With(slog.String("device", devices.DisplayName))),
		Sensor:   devices.NewSimSensor(cfg.SensorSeed),
		Clock:    devices.SystemClock{},
		Recorder: recorder,
	}
	if cfg.StatusLED {
		devs.LED = devices.NewTerminalLED(os.Stderr)
	}

	sup := supervisor.New(cfg.RetryInterval, logger)
	bcast := console.NewBroadcaster(cfg.ConsoleBuffer)

	svc, err := orchestrator.NewService(svcCfg, b, bcast, devs, sup, logger)
	if err != nil {
		logger.Error("failed to create orchestrator service", slog.String("error", err.Error()))

		return
	}
	if err := sup.Start(ctx); err != nil {
		logger.Warn("some subsystems failed to start, retrying in the background", slog.String("error", err.Error()))
	}

	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	ratio := prometheus.MakeGauge(svcName, "round", "active_ratio", "Percentage of satisfied coverage requirements in the last closed round.")
	responders := prometheus.MakeGauge(svcName, "round", "responders", "Nodes that answered in the last closed round.")
	observe := func(rep orchestrator.TickReport) {
		if !rep.Closed {
			return
		}
		ratio.Set(float64(rep.Result.Ratio))
		responders.Set(float64(bits.OnesCount8(rep.Result.Boundary)))
	}

	runner := orchestrator.NewRunner(svc, cfg.TickInterval, logger, orchestrator.WithObserver(observe))
	g.Go(func() error {
		return runner.Run(ctx)
	})

	if cfg.BatchSchedule != "" {
		schedule, err := cron.Parse(cfg.BatchSchedule, cfg.BatchTimezone)
		if err != nil {
			logger.Error("failed to parse batch schedule", slog.String("schedule", cfg.BatchSchedule), slog.String("error", err.Error()))

			return
		}
		auto := orchestrator.NewAutoBatch(schedule, runner, cfg.BatchCount, cfg.BatchStride, cfg.BatchBurnIn, logger)
		g.Go(func() error {
			return auto.Start(ctx)
		})
	}

	ln, err := net.Listen("tcp", cfg.ConsoleAddress)
	if err != nil {
		logger.Error("failed to listen for controller connections", slog.String("address", cfg.ConsoleAddress), slog.String("error", err.Error()))

		return
	}
	cs := console.NewServer(console.NewHandler(runner, logger), bcast, logger)
	g.Go(func() error {
		return cs.Serve(ctx, ln)
	})

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := server.NewHTTPServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(runner, lister, logger, version, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}

// serviceConfig merges the optional TOML file into the defaults.
func serviceConfig(cfg envConfig) (orchestrator.Config, error) {
	c := orchestrator.DefaultConfig()
	c.Version = version
	c.RoundPeriod = cfg.RoundPeriod
	c.BatchSpacing = cfg.BatchSpacing
	c.PollPerTick = cfg.PollPerTick
	c.HistorySize = cfg.HistorySize
	c.BroadcastParams = cfg.BroadcastParams

	if cfg.ConfigPath == "" {
		return c, c.Validate()
	}

	file, err := sampler.LoadConfig(cfg.ConfigPath)
	if err != nil {
		return orchestrator.Config{}, err
	}
	if c.Addresses, err = file.Orchestrator.Addresses(); err != nil {
		return orchestrator.Config{}, err
	}
	if c.Table, err = file.Orchestrator.Table(); err != nil {
		return orchestrator.Config{}, err
	}

	return c, c.Validate()
}
