// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package pubsub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ruvector/internal/config"
	"github.com/tomtom215/ruvector/internal/logging"
)

// Topics names the three fine-tuning topics.
type Topics struct {
	Jobs      string
	Results   string
	ModelSync string
}

// DefaultTopics returns the standard topic names.
func DefaultTopics() Topics {
	return Topics{
		Jobs:      "ruvector.learning.jobs",
		Results:   "ruvector.gradient.updates",
		ModelSync: "ruvector.model.sync",
	}
}

// Bus is a publisher/subscriber pair on one transport.
type Bus struct {
	Transport  string
	Publisher  *Publisher
	Subscriber message.Subscriber
	Topics     Topics

	server  *EmbeddedServer
	closers []func() error
}

// ChannelConfig configures the in-process transport.
type ChannelConfig struct {
	BufferSize int64
	Breaker    BreakerConfig
	Topics     Topics
}

// NewChannelBus creates a bus on Watermill's gochannel.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewChannelBus(cfg ChannelConfig, logger zerolog.Logger) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.BufferSize,
	}, logging.NewWatermillAdapter(logger))

	return &Bus{
		Transport:  "channel",
		Publisher:  NewPublisher(ch, cfg.Breaker, logger),
		Subscriber: ch,
		Topics:     cfg.Topics,
		closers:    []func() error{ch.Close},
	}
}

// NATSConfig configures the NATS transport.
type NATSConfig struct {
	URL            string
	EmbeddedServer bool
	Server         ServerConfig
	JetStream      bool
	// DurablePrefix names this process's JetStream consumers. Every process
	// needs a distinct prefix to receive every message.
	DurablePrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	AckWait       time.Duration
	CloseTimeout  time.Duration
	Breaker       BreakerConfig
	Topics        Topics
}

// NewNATSBus connects to NATS, starting an embedded server first when
// configured.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewNATSBus(cfg NATSConfig, logger zerolog.Logger) (*Bus, error) {
	b := &Bus{Transport: "nats", Topics: cfg.Topics}
	l := logger.With().Str("component", "pubsub").Str("transport", "nats").Logger()
	wmLogger := logging.NewWatermillAdapter(l)

	url := cfg.URL
	if cfg.EmbeddedServer {
		srvCfg := cfg.Server
		srvCfg.JetStream = srvCfg.JetStream || cfg.JetStream
		srv, err := NewEmbeddedServer(srvCfg)
		if err != nil {
			return nil, err
		}
		b.server = srv
		url = srv.ClientURL()
		l.Info().Str("url", url).Bool("jetstream", srvCfg.JetStream).Msg("embedded NATS server started")
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				wmLogger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			wmLogger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	js := wmNats.JetStreamConfig{
		Disabled:      !cfg.JetStream,
		AutoProvision: cfg.JetStream,
		TrackMsgId:    cfg.JetStream,
		DurablePrefix: cfg.DurablePrefix,
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   js,
	}, wmLogger)
	if err != nil {
		b.shutdownServer()
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		AckWaitTimeout:   cfg.AckWait,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        js,
	}, wmLogger)
	if err != nil {
		_ = pub.Close()
		b.shutdownServer()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	b.Publisher = NewPublisher(pub, cfg.Breaker, logger)
	b.Subscriber = sub
	b.closers = []func() error{sub.Close}
	return b, nil
}

// Open builds the bus named by cfg.Transport.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(ps *config.PubSubConfig, nc *config.NATSConfig, workerID string, logger zerolog.Logger) (*Bus, error) {
	topics := Topics{Jobs: ps.JobsTopic, Results: ps.ResultsTopic, ModelSync: ps.ModelSyncTopic}
	breaker := BreakerConfig{
		Name:             "pubsub-" + ps.Transport,
		MaxRequests:      ps.BreakerMaxRequests,
		Interval:         ps.BreakerInterval,
		Timeout:          ps.BreakerTimeout,
		FailureThreshold: ps.BreakerFailures,
	}
	switch ps.Transport {
	case "", "channel":
		return NewChannelBus(ChannelConfig{BufferSize: int64(ps.BufferSize), Breaker: breaker, Topics: topics}, logger), nil
	case "nats":
		return NewNATSBus(NATSConfig{
			URL:            nc.URL,
			EmbeddedServer: nc.EmbeddedServer,
			Server:         ServerConfig{Host: nc.Host, Port: nc.Port, JetStream: nc.JetStream, StoreDir: nc.StoreDir},
			JetStream:      nc.JetStream,
			DurablePrefix:  nc.QueueGroup + "-" + workerID,
			MaxReconnects:  nc.MaxReconnects,
			ReconnectWait:  nc.ReconnectWait,
			AckWait:        nc.AckWait,
			CloseTimeout:   nc.CloseTimeout,
			Breaker:        breaker,
			Topics:         topics,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown pubsub transport %q", ps.Transport)
	}
}

// Server returns the embedded NATS server, or nil.
func (b *Bus) Server() *EmbeddedServer {
	return b.server
}

// Close closes the publisher, the subscriber, and any embedded server.
func (b *Bus) Close() error {
	errs := []error{b.Publisher.Close()}
	for _, c := range b.closers {
		errs = append(errs, c())
	}
	if b.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		errs = append(errs, b.server.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (b *Bus) shutdownServer() {
	if b.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = b.server.Shutdown(ctx)
}
