package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/PowerQR/internal/app/model"
	"go.uber.org/zap"
)

type fakeJetStream struct {
	nats.JetStreamContext
	subject string
	data    []byte
	err     error
}

func (f *fakeJetStream) Publish(subj string, data []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	f.subject = subj
	f.data = data
	if f.err != nil {
		return nil, f.err
	}
	return &nats.PubAck{Stream: model.ScanStreamName}, nil
}

func TestScanPublisher_Publish(t *testing.T) {
	js := &fakeJetStream{}
	p := NewScanPublisher(js)

	err := p.Publish(ScanInfo{
		QRCodeID:       7,
		Shop:           "demo.myshopify.com",
		IP:             "203.0.113.9",
		UserAgent:      "camera",
		DestinationURL: "https://demo.myshopify.com/products/hat",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if js.subject != model.ScanStreamSubject {
		t.Fatalf("published to %q", js.subject)
	}

	var event model.ScanEvent
	if err := json.Unmarshal(js.data, &event); err != nil {
		t.Fatalf("payload is not a scan event: %v", err)
	}
	if event.ID == "" || event.QRCodeID != 7 || event.IP != "203.0.113.9" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
}

func TestScanPublisher_PublishError(t *testing.T) {
	boom := errors.New("no responders")
	p := NewScanPublisher(&fakeJetStream{err: boom})

	if err := p.Publish(ScanInfo{QRCodeID: 1}); !errors.Is(err, boom) {
		t.Fatalf("expected publish error, got %v", err)
	}
}

func TestScanConsumer_HandleStoresEvent(t *testing.T) {
	var stored *model.ScanEvent
	repo := &mockScanEventRepository{
		createFn: func(ctx context.Context, event *model.ScanEvent) error {
			stored = event
			return nil
		},
	}
	c := NewScanConsumer(nil, zap.NewNop(), repo)

	data, _ := json.Marshal(model.ScanEvent{
		ID:        "evt-1",
		QRCodeID:  3,
		Timestamp: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	c.handle(context.Background(), &nats.Msg{Data: data})

	if stored == nil || stored.ID != "evt-1" || stored.QRCodeID != 3 {
		t.Fatalf("unexpected stored event %+v", stored)
	}
}

func TestScanConsumer_HandleSkipsMalformedPayload(t *testing.T) {
	called := false
	repo := &mockScanEventRepository{
		createFn: func(ctx context.Context, event *model.ScanEvent) error {
			called = true
			return nil
		},
	}
	c := NewScanConsumer(nil, zap.NewNop(), repo)

	c.handle(context.Background(), &nats.Msg{Data: []byte("{not json")})

	if called {
		t.Fatal("malformed payload must not reach the repository")
	}
}
