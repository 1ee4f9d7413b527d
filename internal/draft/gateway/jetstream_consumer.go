package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"awards-draft-backend/internal/draft/events"
)

// JetStreamConsumerConfig holds settings for consuming draft events from
// NATS, for gateway processes that do not share memory with the engine.
type JetStreamConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultJetStreamConsumerConfig returns defaults matching the publisher's
// stream layout.
func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    "DRAFT_EVENTS",
		ConsumerName:  "draft-gateway",
		SubjectFilter: "draft.events.>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// JetStreamConsumer consumes draft events from JetStream and feeds them to
// the connection manager. Redelivered duplicates and reordering are tolerated
// because clients reconcile by version.
type JetStreamConsumer struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	js                jetstream.JetStream
	consumer          jetstream.Consumer
	config            JetStreamConsumerConfig
}

// NewJetStreamConsumer connects to NATS and ensures the durable consumer.
func NewJetStreamConsumer(cm *ConnectionManager, config JetStreamConsumerConfig) (*JetStreamConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	jc := &JetStreamConsumer{connectionManager: cm, nc: nc, js: js, config: config}
	if err := jc.ensureConsumer(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return jc, nil
}

func (jc *JetStreamConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := jc.js.Stream(ctx, jc.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Name:          jc.config.ConsumerName,
		Durable:       jc.config.ConsumerName,
		Description:   "Draft gateway WebSocket consumer",
		FilterSubject: jc.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    jc.config.MaxDeliver,
		AckWait:       jc.config.AckWait,
		MaxAckPending: jc.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	}

	consumer, err := stream.Consumer(ctx, jc.config.ConsumerName)
	if err != nil {
		consumer, err = stream.CreateConsumer(ctx, consumerConfig)
		if err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		log.Info().
			Str("consumer", jc.config.ConsumerName).
			Str("stream", jc.config.StreamName).
			Msg("created JetStream consumer")
	}

	jc.consumer = consumer
	return nil
}

// Start consumes until ctx is cancelled.
func (jc *JetStreamConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", jc.config.ConsumerName).
		Str("stream", jc.config.StreamName).
		Msg("starting JetStream event consumer")

	messageCh := make(chan jetstream.Msg, 100)
	consumeCtx, err := jc.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("JetStream event consumer shutting down")
			return nil
		case msg := <-messageCh:
			if err := jc.processMessage(msg); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process message")
				if nakErr := msg.Nak(); nakErr != nil {
					log.Error().Err(nakErr).Msg("failed to NAK message")
				}
				continue
			}
			if ackErr := msg.Ack(); ackErr != nil {
				log.Error().Err(ackErr).Msg("failed to ACK message")
			}
		}
	}
}

func (jc *JetStreamConsumer) processMessage(msg jetstream.Msg) error {
	var event events.DraftEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		return fmt.Errorf("unmarshal draft event: %w", err)
	}

	jc.connectionManager.Broadcast(event)

	log.Debug().
		Str("draft_id", event.DraftID.String()).
		Int64("version", event.Version).
		Str("event_type", string(event.Type)).
		Msg("JetStream event forwarded to WebSocket clients")
	return nil
}

// Stop releases the NATS connection.
func (jc *JetStreamConsumer) Stop() error {
	if jc.nc != nil {
		jc.nc.Close()
	}
	return nil
}
