package transport

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"spotbook/events"
)

// NatsBackend publishes every event onto a NATS subject derived from its
// kind, msgpack-encoded. It is the documented substitution for the
// ZeroMQ PUB transport spec.md places out of the core's scope: same
// fan-out role, grounded on the publish-per-event shape of the pack's
// NatsEventBus, minus JetStream (spotbook has no replay requirement — the
// snapshot file is the durability story, not the event log).
type NatsBackend struct {
	conn        *nats.Conn
	subjectRoot string
	log         zerolog.Logger
}

// NatsBackendConfig configures connection and subject naming.
type NatsBackendConfig struct {
	URL         string
	SubjectRoot string
}

func DefaultNatsBackendConfig() NatsBackendConfig {
	return NatsBackendConfig{URL: nats.DefaultURL, SubjectRoot: "spotbook.events"}
}

// NewNatsBackend connects to NATS and returns a ready Backend.
func NewNatsBackend(cfg NatsBackendConfig, log zerolog.Logger) (*NatsBackend, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("spotbookd"),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Warn().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("nats async error")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	root := cfg.SubjectRoot
	if root == "" {
		root = "spotbook.events"
	}

	return &NatsBackend{conn: conn, subjectRoot: root, log: log}, nil
}

func (b *NatsBackend) Name() string { return "nats" }

// HandleEvent publishes one event. Subjects are "<root>.<kind>" with kind
// as printed by events.Kind.String (e.g. "spotbook.events.SpotOrderPlaced"),
// so downstream consumers can subscribe to one kind, or to all of them
// with "spotbook.events.>", without decoding every payload first.
func (b *NatsBackend) HandleEvent(e events.Event) {
	payload, err := msgpack.Marshal(e)
	if err != nil {
		b.log.Error().Err(err).Str("kind", e.Kind.String()).Msg("marshal event for nats publish")
		return
	}
	subject := b.subjectRoot + "." + e.Kind.String()
	if err := b.conn.Publish(subject, payload); err != nil {
		b.log.Error().Err(err).Str("subject", subject).Msg("publish event to nats")
	}
}

func (b *NatsBackend) Shutdown() {
	b.conn.Drain()
}
