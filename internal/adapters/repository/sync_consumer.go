package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/medtrack/adherence-service/internal/core/domain"
	"github.com/medtrack/adherence-service/internal/core/ports"
)

// MedicationSyncMessage represents a medication upsert pushed by the
// companion sync service after a remote change on another device.
// Sync service sends: { "user_id": "uuid", "medication_id": "uuid", "medication": { ... } }
type MedicationSyncMessage struct {
	UserID       string                  `json:"user_id"`
	MedicationID string                  `json:"medication_id"`
	Medication   ports.MedicationRequest `json:"medication"`
}

// MedicationSyncConsumer consumes medication upserts from RabbitMQ so a
// change made on another device reaches this service's store and engine
// session. Runs in the background as a goroutine within the service pod.
// (In multi-replica deployments, RabbitMQ distributes messages across
// replicas using round-robin.)
type MedicationSyncConsumer struct {
	conn              *amqp091.Connection
	channel           *amqp091.Channel
	queueName         string
	medicationService ports.MedicationService
	connMutex         sync.RWMutex
	reconnectCh       chan bool
	stopReconnect     chan bool
	maxRetries        int
	retryDelay        time.Duration
	consumingCtx      context.Context
	consumingMutex    sync.Mutex
	isConsuming       bool
}

// NewMedicationSyncConsumer creates a new RabbitMQ consumer for medication sync
func NewMedicationSyncConsumer(rabbitMQURL string, queueName string, medicationService ports.MedicationService) (*MedicationSyncConsumer, error) {
	if queueName == "" {
		queueName = "medication_sync"
	}

	consumer := &MedicationSyncConsumer{
		queueName:         queueName,
		medicationService: medicationService,
		maxRetries:        3,
		retryDelay:        1 * time.Second,
		reconnectCh:       make(chan bool, 1),
		stopReconnect:     make(chan bool),
	}

	if err := consumer.connect(rabbitMQURL); err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	go consumer.handleReconnection(rabbitMQURL)

	return consumer, nil
}

// connect establishes connection to RabbitMQ
func (c *MedicationSyncConsumer) connect(rabbitMQURL string) error {
	var err error
	for i := 0; i < c.maxRetries; i++ {
		c.conn, err = amqp091.Dial(rabbitMQURL)
		if err == nil {
			break
		}
		log.Printf("Failed to connect to RabbitMQ (attempt %d/%d): %v", i+1, c.maxRetries, err)
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay)
		}
	}

	if err != nil {
		return err
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return err
	}

	// Declare queue (idempotent)
	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)

	if err != nil {
		c.channel.Close()
		c.conn.Close()
		return err
	}

	log.Println("Medication sync consumer connected to RabbitMQ successfully")
	return nil
}

// handleReconnection handles automatic reconnection to RabbitMQ
func (c *MedicationSyncConsumer) handleReconnection(rabbitMQURL string) {
	for {
		select {
		case <-c.reconnectCh:
			log.Println("Attempting to reconnect to RabbitMQ...")
			c.connMutex.Lock()
			if c.conn != nil && !c.conn.IsClosed() {
				c.conn.Close()
			}
			if c.channel != nil && !c.channel.IsClosed() {
				c.channel.Close()
			}
			c.connMutex.Unlock()

			if err := c.connect(rabbitMQURL); err != nil {
				log.Printf("Reconnection failed: %v", err)
				time.Sleep(5 * time.Second)
				c.reconnectCh <- true
			} else {
				// Restart consuming after reconnection using the original context
				c.consumingMutex.Lock()
				if c.consumingCtx != nil && c.consumingCtx.Err() == nil {
					if !c.isConsuming {
						go c.StartConsuming(c.consumingCtx)
					}
				}
				c.consumingMutex.Unlock()
			}
		case <-c.stopReconnect:
			return
		}
	}
}

// StartConsuming starts consuming sync messages in a background goroutine.
// Only one consumer runs per pod instance; duplicate starts are skipped.
func (c *MedicationSyncConsumer) StartConsuming(ctx context.Context) error {
	c.consumingMutex.Lock()
	if c.isConsuming {
		c.consumingMutex.Unlock()
		log.Println("Medication sync consumer is already running in this pod, skipping duplicate start")
		return nil
	}
	c.isConsuming = true
	c.consumingCtx = ctx
	c.consumingMutex.Unlock()

	c.connMutex.RLock()
	channel := c.channel
	conn := c.conn
	c.connMutex.RUnlock()

	if channel == nil || channel.IsClosed() || conn == nil || conn.IsClosed() {
		c.consumingMutex.Lock()
		c.isConsuming = false
		c.consumingMutex.Unlock()
		return fmt.Errorf("RabbitMQ connection is closed")
	}

	// Process one message at a time so an upsert is fully applied before
	// the next is delivered
	err := channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		c.consumingMutex.Lock()
		c.isConsuming = false
		c.consumingMutex.Unlock()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	consumerTag := fmt.Sprintf("medication-sync-%d", time.Now().UnixNano())
	msgs, err := channel.Consume(
		c.queueName, // queue
		consumerTag, // consumer tag
		false,       // auto-ack (manual ack - we acknowledge only after a successful upsert)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		c.consumingMutex.Lock()
		c.isConsuming = false
		c.consumingMutex.Unlock()
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log.Printf("Medication sync consumer started (tag: %s), waiting for messages on queue: %s", consumerTag, c.queueName)

	go func() {
		defer func() {
			c.consumingMutex.Lock()
			c.isConsuming = false
			c.consumingMutex.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				log.Println("Medication sync consumer context cancelled")
				return
			case msg, ok := <-msgs:
				if !ok {
					log.Println("Medication sync channel closed, attempting reconnection...")
					c.reconnectCh <- true
					return
				}

				c.processMessage(ctx, msg)
			}
		}
	}()

	return nil
}

// processMessage applies a single sync message. The message is
// acknowledged only after the upsert succeeds; a transiently failed
// upsert is nacked and requeued for retry (at-least-once delivery, and
// the upsert is idempotent), while malformed or unsatisfiable messages
// are rejected without requeue.
func (c *MedicationSyncConsumer) processMessage(ctx context.Context, msg amqp091.Delivery) {
	var req MedicationSyncMessage
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		log.Printf("Failed to unmarshal medication sync message: %v", err)
		// Invalid message format - reject and don't requeue
		msg.Nack(false, false)
		return
	}

	log.Printf("Received medication sync: user_id=%s, medication_id=%s, name=%s",
		req.UserID, req.MedicationID, req.Medication.Name)

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		log.Printf("Invalid medication sync message: user_id is not a valid UUID: %v", err)
		msg.Nack(false, false)
		return
	}

	medicationID, err := uuid.Parse(req.MedicationID)
	if err != nil {
		log.Printf("Invalid medication sync message: medication_id is not a valid UUID: %v", err)
		msg.Nack(false, false)
		return
	}

	med, err := c.medicationService.SyncUpsertMedication(ctx, userID, req.Medication, medicationID)
	if err != nil {
		if errors.Is(err, domain.ErrMedicationNotFound) {
			// The medication id belongs to another user. Retrying can
			// never succeed, and with QoS 1 a requeue would redeliver
			// the same message forever, so reject it like a malformed
			// payload.
			log.Printf("Rejected medication sync for foreign medication: user_id=%s, medication_id=%s", req.UserID, req.MedicationID)
			msg.Nack(false, false)
			return
		}
		log.Printf("Failed to apply medication sync: %v", err)
		// Transient upsert failure - requeue for retry
		msg.Nack(false, true)
		return
	}

	log.Printf("Successfully applied medication sync: id=%s, name=%s, status=%s",
		med.ID, med.Name, med.Status)

	if err := msg.Ack(false); err != nil {
		log.Printf("Failed to acknowledge sync message: %v", err)
		// If ack fails the message is redelivered, which is safe (idempotent upsert)
	}
}

// Close closes the RabbitMQ connection and stops consuming
func (c *MedicationSyncConsumer) Close() error {
	close(c.stopReconnect)

	c.consumingMutex.Lock()
	c.isConsuming = false
	c.consumingMutex.Unlock()

	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Close(); err != nil {
			log.Printf("Error closing RabbitMQ channel: %v", err)
		}
	}

	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			log.Printf("Error closing RabbitMQ connection: %v", err)
		}
	}

	log.Println("Medication sync consumer closed")
	return nil
}
