package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/sampler/peripheral"
	"github.com/absmach/sampler/pkg/bus"
	"github.com/absmach/sampler/pkg/mqtt"
	"github.com/absmach/sampler/pkg/server"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const (
	svcName = "peripheral"
	pathEnv = ".env"
)

type envConfig struct {
	LogLevel      string        `env:"PERIPHERAL_LOG_LEVEL"      envDefault:"info"`
	InstanceID    string        `env:"PERIPHERAL_INSTANCE_ID"`
	Nodes         []string      `env:"PERIPHERAL_NODES"          envDefault:"0x10"        envSeparator:","`
	Format        string        `env:"PERIPHERAL_FORMAT"         envDefault:"compact"`
	MQTTAddress   string        `env:"PERIPHERAL_MQTT_ADDRESS"   envDefault:"tcp://localhost:1883"`
	MQTTQoS       uint8         `env:"PERIPHERAL_MQTT_QOS"       envDefault:"1"`
	MQTTTimeout   time.Duration `env:"PERIPHERAL_MQTT_TIMEOUT"   envDefault:"30s"`
	ClientID      string        `env:"PERIPHERAL_CLIENT_ID"`
	ClientKey     string        `env:"PERIPHERAL_CLIENT_KEY"`
	ChannelID     string        `env:"PERIPHERAL_CHANNEL_ID"     envDefault:"sampler"`
	ReplyTimeout  time.Duration `env:"PERIPHERAL_REPLY_TIMEOUT"  envDefault:"50ms"`
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

	pubsub, err := mqtt.NewPubSub(mqtt.Config{
		Address:   cfg.MQTTAddress,
		ClientID:  svcName + "-" + cfg.InstanceID,
		Username:  cfg.ClientID,
		Password:  cfg.ClientKey,
		ChannelID: cfg.ChannelID,
		QoS:       cfg.MQTTQoS,
		Timeout:   cfg.MQTTTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

		return
	}
	defer func() {
		if err := pubsub.Disconnect(context.Background()); err != nil {
			logger.Warn("failed to disconnect from MQTT broker", slog.Any("error", err))
		}
	}()

	gen := namegenerator.NewGenerator()
	for _, n := range cfg.Nodes {
		addr, err := strconv.ParseUint(strings.TrimSpace(n), 0, 8)
		if err != nil {
			logger.Error("invalid node address", slog.String("address", n), slog.String("error", err.Error()))

			return
		}

		pcfg := peripheral.Config{Address: uint8(addr), Name: gen.Generate(), Format: cfg.Format}
		state, err := pcfg.NewState()
		if err != nil {
			logger.Error("failed to create peripheral node", slog.String("address", n), slog.String("error", err.Error()))

			return
		}
		node := peripheral.NewService(pcfg.Address, pcfg.Name, state, logger)

		events := make(chan bus.Event, bus.EventBuffer)
		if err := bus.Serve(ctx, pubsub, cfg.ChannelID, pcfg.Address, events, cfg.ReplyTimeout, logger); err != nil {
			logger.Error("failed to attach node to MQTT bus", slog.String("address", n), slog.String("error", err.Error()))

			return
		}

		g.Go(func() error {
			return node.Run(ctx, events)
		})
	}

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}
