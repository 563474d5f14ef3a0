package kafka

import (
	"context"
	"testing"
)

func TestNewProducerRequiresBrokersAndTopic(t *testing.T) {
	if _, err := NewProducer(nil, "eduplat.notifications", "", ""); err == nil {
		t.Fatalf("expected error when no brokers are configured")
	}
	if _, err := NewProducer([]string{"localhost:9092"}, "", "", ""); err == nil {
		t.Fatalf("expected error when topic is empty")
	}
}

func TestNewProducerEnablesSASLOnlyWithCredentials(t *testing.T) {
	anonymous, err := NewProducer([]string{"localhost:9092"}, "eduplat.notifications", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if anonymous.writer.Transport == nil {
		t.Fatalf("expected transport to be configured")
	}

	secured, err := NewProducer([]string{"broker:9092"}, "eduplat.notifications", "svc", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secured.writer.Topic != "eduplat.notifications" {
		t.Fatalf("unexpected topic %q", secured.writer.Topic)
	}
}

func TestPublishJSONOnNilProducerIsNoop(t *testing.T) {
	var p *Producer
	if err := p.PublishJSON(context.Background(), "key", map[string]string{"a": "b"}); err != nil {
		t.Fatalf("expected nil producer publish to be skipped, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("expected nil producer close to succeed, got %v", err)
	}
}
