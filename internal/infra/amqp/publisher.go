// Package amqp publishes quiz session events to a RabbitMQ topic exchange.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"edukids-quiz/internal/app"
	amqp091 "github.com/rabbitmq/amqp091-go"
)

// Message is the JSON body of every published event.
type Message struct {
	Type     string      `json:"type"`
	RunID    string      `json:"runId"`
	PlayerID string      `json:"playerId"`
	Subject  string      `json:"subject"`
	Payload  interface{} `json:"payload"`
}

type Publisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// NewPublisher connects and declares a durable topic exchange.
func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	log.Printf("event publisher ready on exchange %s", exchange)
	return &Publisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// Publish sends the event with routing key quiz.<kind>.
func (p *Publisher) Publish(ctx context.Context, event app.SessionEvent) error {
	key, body, err := BuildMessage(event)
	if err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		key,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// BuildMessage returns the routing key and JSON body for an event. Questions go out without their answer key.
func BuildMessage(event app.SessionEvent) (string, []byte, error) {
	msg := Message{
		Type:     string(event.Event.Kind),
		RunID:    event.RunID,
		PlayerID: event.PlayerID,
		Subject:  event.Subject,
		Payload:  event.Event.Public(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return "", nil, fmt.Errorf("marshal event: %w", err)
	}
	return "quiz." + string(event.Event.Kind), body, nil
}
