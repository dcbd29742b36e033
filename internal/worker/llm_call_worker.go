package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Yerassyl-hub/backofadilai/internal/model"
	"github.com/Yerassyl-hub/backofadilai/internal/repository"
)

// LLMCallPersistWorker drains the audit queue and writes LLMCall rows.
// Request handlers publish and move on; persistence failures never reach
// the caller.
type LLMCallPersistWorker struct {
	conn      *amqp.Connection
	repo      *repository.LLMCallRepository
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLLMCallPersistWorker(conn *amqp.Connection, repo *repository.LLMCallRepository, queueName string) *LLMCallPersistWorker {
	return &LLMCallPersistWorker{
		conn:      conn,
		repo:      repo,
		queueName: queueName,
	}
}

func (w *LLMCallPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var call model.LLMCall
				if err := json.Unmarshal(d.Body, &call); err != nil {
					log.Printf("worker decode llm call failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.repo.Create(&call); err != nil {
					log.Printf("worker persist llm call failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *LLMCallPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
