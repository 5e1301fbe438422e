/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus bridges the in-process event bus to NATS so events
// reach other nodes and external consumers.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/visarlabs/visar/internal/events"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL string

	// Connection options
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: -1, // unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSBus mirrors local bus publishes onto NATS subjects and feeds
// messages from other nodes back into the local bus. Subject pattern:
// "visar.events.{event_type}". When the connection drops, events still
// reach in-process subscribers; remote delivery resumes on reconnect.
type NATSBus struct {
	conn   *nats.Conn
	sub    *nats.Subscription
	local  *events.Bus
	logger zerolog.Logger
	nodeID string
}

// NewNATSBus connects to NATS and wraps the given local bus. The local
// bus keeps working if the connection cannot be established; remote
// publishing is then disabled.
func NewNATSBus(cfg NATSConfig, local *events.Bus, logger zerolog.Logger) (*NATSBus, error) {
	nb := &NATSBus{
		local:  local,
		logger: logger.With().Str("component", "eventbus").Logger(),
		nodeID: nodeID(),
	}

	conn, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.ReconnectHandler(func(c *nats.Conn) {
			nb.logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			nb.logger.Warn().Err(err).Msg("nats disconnected")
		}),
	)
	if err != nil {
		nb.logger.Warn().Err(err).Str("url", cfg.URL).
			Msg("nats unavailable, events stay in-process only")
		return nb, nil
	}

	nb.conn = conn
	sub, err := conn.Subscribe("visar.events.>", nb.handleInbound)
	if err != nil {
		nb.logger.Warn().Err(err).Msg("nats subscribe failed, remote events will not arrive")
	} else {
		nb.sub = sub
	}
	nb.logger.Info().Str("url", cfg.URL).Msg("nats event bus connected")
	return nb, nil
}

// handleInbound republishes messages from other nodes onto the local
// bus. Our own publishes come back on the same subjects and are skipped
// by node id; republishing goes through the local bus only, so inbound
// messages are never mirrored back out.
func (nb *NATSBus) handleInbound(m *nats.Msg) {
	var msg message
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		nb.logger.Warn().Err(err).Str("subject", m.Subject).Msg("malformed nats event")
		return
	}
	if msg.NodeID == nb.nodeID {
		return
	}
	nb.logger.Debug().
		Str("event", string(msg.EventType)).
		Str("node", msg.NodeID).
		Str("message_id", msg.MessageID).
		Msg("remote event received")
	nb.local.Publish(msg.EventType, msg.Payload)
}

// Publish delivers to in-process subscribers and mirrors to NATS.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.local.Publish(eventType, payload)

	if nb.conn == nil {
		return
	}

	data, err := marshalMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Str("event", string(eventType)).Msg("marshal event")
		return
	}
	subject := fmt.Sprintf("visar.events.%s", eventType)
	if err := nb.conn.Publish(subject, data); err != nil {
		nb.logger.Warn().Err(err).Str("subject", subject).Msg("nats publish failed")
	}
}

// Subscribe registers an in-process subscriber.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	return nb.local.Subscribe(eventType)
}

// Unsubscribe removes an in-process subscriber.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.local.Unsubscribe(eventType, sub)
}

// Close drains and closes the NATS connection.
func (nb *NATSBus) Close() error {
	if nb.conn == nil {
		return nil
	}
	if err := nb.conn.Drain(); err != nil {
		nb.conn.Close()
		return err
	}
	return nil
}

// message is the wire format published to NATS subjects.
type message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(message{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

func nodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "node"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
