package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Yerassyl-hub/backofadilai/internal/model"
)

// CallPublisher pushes LLM call audit events onto a durable queue; the
// persist worker writes them to the database.
type CallPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewCallPublisher(conn *amqp.Connection, queueName string) *CallPublisher {
	return &CallPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *CallPublisher) Publish(ctx context.Context, call model.LLMCall) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("marshal llm call payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish llm call failed: %w", err)
	}
	return nil
}
