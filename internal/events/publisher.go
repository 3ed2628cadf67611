// Package events publishes order lifecycle changes for list screens and
// downstream consumers. Delivery is best effort; a broken broker must never
// fail an order transition.
package events

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"fanout",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, channel: ch, exchange: exchange}, nil
}

type orderEvent struct {
	OrderID string    `json:"order_id"`
	Event   string    `json:"event"`
	At      time.Time `json:"at"`
}

// OrderEvent publishes one lifecycle event. Safe on a nil receiver so wiring
// stays optional.
func (p *Publisher) OrderEvent(ctx context.Context, orderID, event string) error {
	if p == nil {
		return nil
	}

	body, _ := json.Marshal(orderEvent{OrderID: orderID, Event: event, At: time.Now().UTC()})

	return p.channel.PublishWithContext(
		ctx,
		p.exchange,
		"",
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			ContentType:  "application/json",
			Body:         body,
		},
	)
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
