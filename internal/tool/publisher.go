package tool

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/manak-ai/stratum/internal/model"
)

// descriptorWriter is the slice of kafka.Writer the publisher uses;
// tests substitute a capture.
type descriptorWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher announces the tool catalog on the event bus at startup so
// agent platforms can discover this service's tools.
type Publisher struct {
	writer  descriptorWriter
	service string
	log     *slog.Logger
}

func NewPublisher(brokers []string, topic, serviceName string, log *slog.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Publisher{writer: writer, service: serviceName, log: log}
}

type descriptorEnvelope struct {
	Service string                 `json:"service"`
	Tools   []model.ToolDescriptor `json:"tools"`
}

// Publish sends one message keyed by the service name carrying all tool
// descriptors.
func (p *Publisher) Publish(ctx context.Context, descriptors []model.ToolDescriptor) error {
	payload, err := json.Marshal(descriptorEnvelope{Service: p.service, Tools: descriptors})
	if err != nil {
		return err
	}
	msg := kafka.Message{Key: []byte(p.service), Value: payload}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	p.log.Info("tool descriptors published",
		slog.String("service", p.service), slog.Int("tools", len(descriptors)))
	return nil
}

// Close releases the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
