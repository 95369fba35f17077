package mail

import (
	"context"
	"fmt"
	"testing"

	"github.com/foodmap/apiserver/internal/mq"
)

// memBroker queues published messages per channel and replays them to a
// single subscriber.
type memBroker struct {
	queues map[string][]mq.Message
	nextID int
}

func newMemBroker() *memBroker {
	return &memBroker{queues: map[string][]mq.Message{}}
}

func (b *memBroker) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.nextID++
	id := fmt.Sprintf("msg-%d", b.nextID)
	b.queues[channel] = append(b.queues[channel], mq.Message{ID: id, Data: data, Attributes: attrs})
	return id, nil
}

func (b *memBroker) Subscribe(ctx context.Context, channel string, handler mq.Handler) error {
	for _, msg := range b.queues[channel] {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *memBroker) Close() error { return nil }

type recordingSink struct {
	sent []Message
}

func (s *recordingSink) Send(_ context.Context, msg Message) error {
	s.sent = append(s.sent, msg)
	return nil
}

func TestWorkerDeliversPublishedMail(t *testing.T) {
	broker := newMemBroker()
	ctx := context.Background()

	mailer := NewMQMailer(mq.New(broker), "mail.outbound", "no-reply@foodmap.local")
	err := mailer.Send(ctx, Message{
		To:       "mai@example.com",
		Subject:  "Reset your password",
		Template: "forgot-password",
		Data:     map[string]string{"link": "http://localhost:3000/reset-password?token=abc"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	queued := broker.queues["mail.outbound"]
	if len(queued) != 1 {
		t.Fatalf("queued %d messages, want 1", len(queued))
	}
	if queued[0].Attributes["template"] != "forgot-password" || queued[0].Attributes["to"] != "mai@example.com" {
		t.Fatalf("unexpected attributes: %v", queued[0].Attributes)
	}

	sink := &recordingSink{}
	worker := NewWorker(mq.New(broker), "mail.outbound", sink)
	if err := worker.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sink.sent) != 1 {
		t.Fatalf("delivered %d messages, want 1", len(sink.sent))
	}
	got := sink.sent[0]
	if got.To != "mai@example.com" || got.Template != "forgot-password" {
		t.Fatalf("unexpected delivery: %+v", got)
	}
	if got.From != "no-reply@foodmap.local" {
		t.Fatalf("from = %q, want the mailer default", got.From)
	}
	if got.Data["link"] == "" {
		t.Fatal("payload data was lost in transit")
	}
}

func TestWorkerDropsMalformedPayload(t *testing.T) {
	broker := newMemBroker()
	ctx := context.Background()

	if _, err := broker.Publish(ctx, "mail.outbound", []byte("not json"), nil); err != nil {
		t.Fatalf("publish: %v", err)
	}

	sink := &recordingSink{}
	worker := NewWorker(mq.New(broker), "mail.outbound", sink)
	if err := worker.Run(ctx); err != nil {
		t.Fatalf("a malformed payload must not fail the run: %v", err)
	}
	if len(sink.sent) != 0 {
		t.Fatalf("delivered %d messages, want 0", len(sink.sent))
	}
}
