package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sifan077/PowerQR/internal/app/model"
)

// ScanPublisher publishes scan events to NATS JetStream.
type ScanPublisher struct {
	js nats.JetStreamContext
}

// NewScanPublisher creates a new scan event publisher.
func NewScanPublisher(js nats.JetStreamContext) *ScanPublisher {
	return &ScanPublisher{js: js}
}

// ScanInfo describes the request that scanned a code.
type ScanInfo struct {
	QRCodeID       int
	Shop           string
	IP             string
	UserAgent      string
	DestinationURL string
}

// Publish publishes a scan event to the stream.
func (p *ScanPublisher) Publish(info ScanInfo) error {
	event := model.ScanEvent{
		ID:             uuid.New().String(),
		QRCodeID:       info.QRCodeID,
		Shop:           info.Shop,
		IP:             info.IP,
		UserAgent:      info.UserAgent,
		DestinationURL: info.DestinationURL,
		Timestamp:      time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.ScanStreamSubject, data, nats.MsgId(event.ID))
	return err
}
