package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/sampler/peripheral"
	"github.com/absmach/sampler/pkg/bus"
	"github.com/absmach/sampler/pkg/mqtt"
	"golang.org/x/sync/errgroup"
)

// newBus returns the bus selected by cfg.Bus. The memory bus runs one
// simulated peripheral per address inside this process.
func newBus(ctx context.Context, g *errgroup.Group, cfg envConfig, addrs []uint8, logger *slog.Logger) (bus.Bus, error) {
	switch cfg.Bus {
	case "memory":
		b := bus.NewMemory(cfg.BusTimeout)
		gen := namegenerator.NewGenerator()
		for _, addr := range addrs {
			events, err := b.Attach(addr)
			if err != nil {
				return nil, err
			}
			pcfg := peripheral.Config{Address: addr, Name: gen.Generate()}
			state, err := pcfg.NewState()
			if err != nil {
				return nil, err
			}
			node := peripheral.NewService(addr, pcfg.Name, state, logger)
			g.Go(func() error {
				return node.Run(ctx, events)
			})
		}
		logger.Info("simulated peripherals attached", slog.Int("nodes", len(addrs)))

		return b, nil
	case "mqtt":
		pubsub, err := mqtt.NewPubSub(mqtt.Config{
			Address:   cfg.MQTTAddress,
			ClientID:  svcName,
			Username:  cfg.ClientID,
			Password:  cfg.ClientKey,
			ChannelID: cfg.ChannelID,
			QoS:       cfg.MQTTQoS,
			Timeout:   cfg.MQTTTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mqtt pubsub: %w", err)
		}

		return bus.NewMQTT(ctx, pubsub, cfg.ChannelID, addrs, cfg.BusTimeout, logger)
	default:
		return nil, fmt.Errorf("unsupported bus type: %s", cfg.Bus)
	}
}
