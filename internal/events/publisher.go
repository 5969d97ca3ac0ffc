// Package events publishes assessment lifecycle events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/deepreview/socratic/internal/logger"
)

// Event types, also used as routing keys.
const (
	SessionStarted   = "session.started"
	SessionCompleted = "session.completed"
)

// Publisher sends events. Publish failures are for the caller to log; they
// never change assessment state.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
	Close() error
}

// Envelope wraps every published payload.
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// SessionStartedPayload is published when a session is (re)started.
type SessionStartedPayload struct {
	SessionID string `json:"sessionId"`
	ArticleID string `json:"articleId"`
	UserID    string `json:"userId"`
}

// SessionCompletedPayload is published after a session completes.
type SessionCompletedPayload struct {
	SessionID      string  `json:"sessionId"`
	ArticleID      string  `json:"articleId"`
	UserID         string  `json:"userId"`
	AverageScore   float64 `json:"averageScore"`
	Scores         []int   `json:"scores"`
	DifficultyPath []int   `json:"difficultyPath"`
	IsFallback     bool    `json:"isFallback"`
}

// AMQPPublisher publishes JSON envelopes to a durable topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	log      *logger.Logger
}

// NewAMQPPublisher dials url and declares the exchange.
func NewAMQPPublisher(url, exchange string, log *logger.Logger) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = "deepreview.events"
	}
	if log == nil {
		log = logger.Nop()
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPPublisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		log:      log.With("component", "events"),
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	body, err := encode(eventType, payload)
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(pubCtx,
		p.exchange, // exchange
		eventType,  // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Type:         eventType,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	p.log.Debug("published event", "type", eventType)
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

func encode(eventType string, payload any) ([]byte, error) {
	body, err := json.Marshal(Envelope{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return body, nil
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error {
	return nil
}

func (Nop) Close() error {
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Envelope
}

func (r *Recorder) Publish(_ context.Context, eventType string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Envelope{Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload})
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}
