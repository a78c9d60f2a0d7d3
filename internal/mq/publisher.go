// Package mq fans presence events out to RabbitMQ so other services
// can observe who is online and who is in a call.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const publishTimeout = 5 * time.Second

// Publisher implements core.EventSink on top of an AMQP fanout-style
// exchange. Delivery is best-effort: a failed publish is logged and
// dropped, matching the relay's non-durable design.
type Publisher struct {
	conn     *amqp091.Connection
	ch       *amqp091.Channel
	exchange string
}

// Dial connects and declares the exchange.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	log.Info().Str("module", "mq").Str("exchange", exchange).Msg("presence publisher connected")
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish sends one event with the event name as routing key.
func (p *Publisher) Publish(event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("module", "mq").Str("event", event).Msg("marshal event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		event,
		false,
		false,
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        raw,
		},
	)
	if err != nil {
		log.Warn().Err(err).Str("module", "mq").Str("event", event).Msg("publish dropped")
	}
}

func (p *Publisher) Close() {
	_ = p.ch.Close()
	_ = p.conn.Close()
}
