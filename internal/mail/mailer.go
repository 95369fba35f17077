package mail

import (
	"context"
	"encoding/json"
	"log"

	"github.com/foodmap/apiserver/internal/mq"
)

// Message is the outbound mail payload handed to the mail worker.
type Message struct {
	To       string            `json:"to"`
	From     string            `json:"from"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`
}

// Mailer sends mail fire-and-forget; callers treat failures as
// non-fatal except where noted.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MQMailer publishes mail messages to a broker channel for an external
// mail worker to deliver.
type MQMailer struct {
	mq      *mq.MQ
	channel string
	from    string
}

func NewMQMailer(broker *mq.MQ, channel, from string) *MQMailer {
	return &MQMailer{mq: broker, channel: channel, from: from}
}

func (m *MQMailer) Send(ctx context.Context, msg Message) error {
	if msg.From == "" {
		msg.From = m.from
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	attrs := map[string]string{
		"template": msg.Template,
		"to":       msg.To,
	}
	_, err = m.mq.Publish(ctx, m.channel, data, attrs)
	return err
}

// LogMailer writes mail to the process log. Used when no broker is
// configured, typically in development, and as the worker's delivery
// sink until a real provider is wired.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	log.Printf("mail: to=%s template=%s subject=%q data=%v", msg.To, msg.Template, msg.Subject, msg.Data)
	return nil
}

// Worker consumes the outbound mail channel and hands each message to
// its delivery sink. Malformed payloads are dropped with a log line so
// one bad message cannot wedge the subscription.
type Worker struct {
	mq      *mq.MQ
	channel string
	sink    Mailer
}

func NewWorker(broker *mq.MQ, channel string, sink Mailer) *Worker {
	return &Worker{mq: broker, channel: channel, sink: sink}
}

// Run blocks consuming the channel until the context is cancelled or
// the subscription fails.
func (w *Worker) Run(ctx context.Context) error {
	return w.mq.Subscribe(ctx, w.channel, func(ctx context.Context, m mq.Message) error {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			log.Printf("mail: dropping malformed message %s: %v", m.ID, err)
			return nil
		}
		return w.sink.Send(ctx, msg)
	})
}
