// Package events publishes and consumes post engagement events over NATS
// JetStream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"opencanvas-service/metrics"
	"opencanvas-service/model"

	"github.com/nats-io/nats.go"
)

const (
	StreamName    = "POST_ENGAGEMENT"
	SubjectPrefix = "posts.engagement"
)

// Subject returns the subject an event of the given kind is published on.
func Subject(kind string) string {
	return SubjectPrefix + "." + kind
}

// Handler processes one event. A returned error naks the message so it is
// redelivered.
type Handler func(model.EngagementEvent) error

// Publisher sends engagement events.
type Publisher interface {
	Publish(ctx context.Context, ev model.EngagementEvent) error
}

// Config holds the JetStream stream and consumer settings.
type Config struct {
	URL        string
	ClientName string
	MaxAge     time.Duration
	MaxBytes   int64
	MaxMsgs    int64
	MaxDeliver int
	AckWait    time.Duration
}

func (c *Config) withDefaults() {
	if c.ClientName == "" {
		c.ClientName = "opencanvas-service"
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 24 * time.Hour
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 100 * 1024 * 1024
	}
	if c.MaxMsgs <= 0 {
		c.MaxMsgs = 100000
	}
	if c.MaxDeliver <= 0 {
		c.MaxDeliver = 3
	}
	if c.AckWait <= 0 {
		c.AckWait = 30 * time.Second
	}
}

// Stream is a JetStream connection bound to the engagement stream.
type Stream struct {
	nc   *nats.Conn
	js   nats.JetStreamContext
	cfg  Config
	mu   sync.Mutex
	subs []*nats.Subscription
}

// Connect dials NATS, creates the JetStream context and makes sure the
// engagement stream exists.
func Connect(cfg Config) (*Stream, error) {
	cfg.withDefaults()

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.ClientName),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[INFO] Reconnected to NATS at %s", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("[WARN] NATS connection lost: %v", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream(nats.PublishAsyncMaxPending(256))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	s := &Stream{nc: nc, js: js, cfg: cfg}
	if err := s.ensureStream(); err != nil {
		s.Close()
		return nil, err
	}

	log.Printf("[INFO] NATS JetStream ready on stream %s", StreamName)
	return s, nil
}

func (s *Stream) ensureStream() error {
	info, err := s.js.StreamInfo(StreamName)
	if err == nil {
		log.Printf("[INFO] Stream %s already exists with %d messages", StreamName, info.State.Msgs)
		return nil
	}

	_, err = s.js.AddStream(&nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectPrefix + ".*"},
		Retention: nats.LimitsPolicy,
		MaxAge:    s.cfg.MaxAge,
		MaxBytes:  s.cfg.MaxBytes,
		MaxMsgs:   s.cfg.MaxMsgs,
		Replicas:  1,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", StreamName, err)
	}
	log.Printf("[INFO] Created stream: %s", StreamName)
	return nil
}

// Publish sends ev on the subject for its kind and waits for the stream ack.
func (s *Stream) Publish(ctx context.Context, ev model.EngagementEvent) error {
	subject := Subject(ev.Kind)

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := s.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		metrics.NatsMessagesPublished.WithLabelValues(subject, "error").Inc()
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	metrics.NatsMessagesPublished.WithLabelValues(subject, "success").Inc()
	return nil
}

// Subscribe attaches a durable consumer for every engagement subject and
// delivers decoded events to h with manual acks.
func (s *Stream) Subscribe(durable string, h Handler) error {
	subject := SubjectPrefix + ".*"

	_, err := s.js.AddConsumer(StreamName, &nats.ConsumerConfig{
		Durable:       durable,
		FilterSubject: subject,
		AckPolicy:     nats.AckExplicitPolicy,
		MaxDeliver:    s.cfg.MaxDeliver,
		AckWait:       s.cfg.AckWait,
		ReplayPolicy:  nats.ReplayInstantPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", durable, err)
	}

	sub, err := s.js.Subscribe(subject, func(msg *nats.Msg) {
		dispatch(msg.Subject, msg.Data, h, msg.Ack, msg.Nak, msg.Term)
	}, nats.Durable(durable), nats.ManualAck())
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	log.Printf("[INFO] Created durable consumer %s on %s", durable, subject)
	return nil
}

// dispatch decodes one message and acks, naks or terminates it. Messages
// that cannot be decoded are terminated since redelivery will not help.
func dispatch(subject string, data []byte, h Handler, ack, nak func(...nats.AckOpt) error, term func(...nats.AckOpt) error) {
	var ev model.EngagementEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Printf("[ERROR] Failed to decode event on %s: %v", subject, err)
		metrics.NatsMessagesReceived.WithLabelValues(subject, "malformed").Inc()
		term()
		return
	}

	if err := h(ev); err != nil {
		log.Printf("[WARN] Failed to handle %s event for post %s: %v", ev.Kind, ev.PostID, err)
		metrics.NatsMessagesReceived.WithLabelValues(subject, "error").Inc()
		nak()
		return
	}

	metrics.NatsMessagesReceived.WithLabelValues(subject, "success").Inc()
	ack()
}

// IsConnected reports whether the underlying connection is up.
func (s *Stream) IsConnected() bool {
	return s.nc != nil && s.nc.IsConnected()
}

// Close drains subscriptions and closes the connection.
func (s *Stream) Close() {
	s.mu.Lock()
	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[WARN] Failed to drain subscription %s: %v", sub.Subject, err)
		}
	}
	s.subs = nil
	s.mu.Unlock()

	if s.nc != nil {
		s.nc.Close()
		log.Println("[INFO] NATS JetStream connection closed")
	}
}

// Discard drops every event. It stands in when no broker is configured.
type Discard struct{}

func (Discard) Publish(context.Context, model.EngagementEvent) error { return nil }
