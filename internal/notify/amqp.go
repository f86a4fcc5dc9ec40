// Package notify provides the production wiring for the pipeline's
// notification hooks: a RabbitMQ publisher that forwards code events to a
// durable queue. Errors are logged and returned so callers can ignore
// failures without interrupting the submission flow.
package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// CodeEvent is the JSON payload published for each hook invocation.
type CodeEvent struct {
	Kind          string    `json:"kind"` // "submitted" or "redemption_changed"
	Code          string    `json:"code"`
	FullyRedeemed *bool     `json:"fully_redeemed,omitempty"`
	At            time.Time `json:"at"`
}

// Publisher publishes code events to a durable AMQP queue. Each publish
// dials its own short-lived connection; the hook seam is low-volume and the
// simplicity wins over connection management.
type Publisher struct {
	URL   string
	Queue string
}

// NewPublisher returns a publisher for the given broker URL and queue name.
func NewPublisher(url, queue string) *Publisher {
	return &Publisher{URL: url, Queue: queue}
}

// Submitted publishes a "submitted" event for the code.
func (p *Publisher) Submitted(ctx context.Context, code string) error {
	return p.publish(ctx, CodeEvent{Kind: "submitted", Code: code, At: time.Now().UTC()})
}

// RedemptionChanged publishes a "redemption_changed" event for the code.
func (p *Publisher) RedemptionChanged(ctx context.Context, code string, fullyRedeemed bool) error {
	fr := fullyRedeemed
	return p.publish(ctx, CodeEvent{Kind: "redemption_changed", Code: code, FullyRedeemed: &fr, At: time.Now().UTC()})
}

// publish declares the queue (idempotent, durable) and publishes the event
// as a persistent JSON message. Any error is logged and returned.
func (p *Publisher) publish(ctx context.Context, event CodeEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Warn().Err(err).Msg("amqp: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Warn().Err(err).Msg("amqp: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		p.Queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		log.Warn().Err(err).Msg("amqp: queue declare failed")
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		log.Warn().Err(err).Msg("amqp: publish failed")
		return err
	}
	return nil
}
