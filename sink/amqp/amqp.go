// Package amqp publishes readings to a RabbitMQ topic exchange, one JSON
// message per category per batch.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	emulator "github.com/synaptecltd/sensorsim"
	"go.uber.org/multierr"
)

const (
	DefaultExchange = "sensorsim"
	RoutingPrefix   = "readings."
)

type Config struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// Publisher is the part of *amqp.Channel the sink uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Sink struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	publisher Publisher
	exchange  string
}

// New dials the broker and declares a durable topic exchange.
func New(cfg Config) (*Sink, error) {
	if cfg.URL == "" {
		return nil, errors.New("amqp url is required")
	}
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dialing amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening amqp channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true, // durable
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", cfg.Exchange, err)
	}

	s := NewWithPublisher(ch, cfg.Exchange)
	s.conn = conn
	s.channel = ch
	return s, nil
}

// NewWithPublisher publishes through an existing channel.
func NewWithPublisher(p Publisher, exchange string) *Sink {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Sink{publisher: p, exchange: exchange}
}

// RoutingKey returns the key readings of a category are published under.
func RoutingKey(category string) string { return RoutingPrefix + category }

// Write publishes the batch grouped by category, in category order.
func (s *Sink) Write(ctx context.Context, readings []emulator.Reading) error {
	groups := make(map[string][]emulator.Reading)
	for _, r := range readings {
		c := string(r.Category)
		groups[c] = append(groups[c], r)
	}
	categories := make([]string, 0, len(groups))
	for c := range groups {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, c := range categories {
		body, err := json.Marshal(groups[c])
		if err != nil {
			return fmt.Errorf("encoding %s readings: %w", c, err)
		}
		err = s.publisher.PublishWithContext(ctx,
			s.exchange,
			RoutingKey(c),
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    uuid.NewString(),
				Timestamp:    groups[c][0].Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publishing %s readings: %w", c, err)
		}
	}
	return nil
}

func (s *Sink) Close() error {
	var err error
	if s.channel != nil {
		err = multierr.Append(err, s.channel.Close())
	}
	if s.conn != nil {
		err = multierr.Append(err, s.conn.Close())
	}
	return err
}
