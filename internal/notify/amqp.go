// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/oops"
)

const (
	// amqpExchange is the durable topic exchange verification events are
	// published to.
	amqpExchange = "peergate.events"

	// RoutingKeyVerificationRequested identifies verification-requested
	// events for downstream consumers.
	RoutingKeyVerificationRequested = "user.verification_requested"

	amqpDialTimeout = 10 * time.Second
)

// VerificationRequestedEvent is the payload published for each
// verification send. A downstream mailer turns it into an email.
type VerificationRequestedEvent struct {
	Email       string    `json:"email"`
	VerifyLink  string    `json:"verify_link"`
	RequestedAt time.Time `json:"requested_at"`
}

// AMQPNotifier publishes verification-requested events to RabbitMQ
// instead of sending mail itself.
type AMQPNotifier struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPNotifier connects to RabbitMQ and declares the events
// exchange. The dial is bounded so startup cannot hang on a dead
// broker.
func NewAMQPNotifier(url string) (*AMQPNotifier, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(amqpDialTimeout)})
	if err != nil {
		return nil, oops.Code("NOTIFY_BROKER_UNAVAILABLE").
			With("operation", "dial broker").
			Wrap(err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, oops.Code("NOTIFY_BROKER_UNAVAILABLE").
			With("operation", "open channel").
			Wrap(err)
	}

	if err := ch.ExchangeDeclare(amqpExchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, oops.Code("NOTIFY_BROKER_UNAVAILABLE").
			With("operation", "declare exchange").
			With("exchange", amqpExchange).
			Wrap(err)
	}

	return &AMQPNotifier{conn: conn, channel: ch}, nil
}

// SendVerification publishes a verification-requested event.
func (n *AMQPNotifier) SendVerification(ctx context.Context, email, link string) error {
	body, err := json.Marshal(VerificationRequestedEvent{
		Email:       email,
		VerifyLink:  link,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").With("transport", "amqp").Wrap(err)
	}

	err = n.channel.PublishWithContext(ctx,
		amqpExchange,
		RoutingKeyVerificationRequested,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	if err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("transport", "amqp").
			With("routing_key", RoutingKeyVerificationRequested).
			Wrap(err)
	}
	return nil
}

// Close releases the channel and connection.
func (n *AMQPNotifier) Close() {
	if n.channel != nil {
		_ = n.channel.Close()
	}
	if n.conn != nil {
		_ = n.conn.Close()
	}
}
