package model

import "time"

// ScanEvent records a single public scan of a QR code.
type ScanEvent struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	QRCodeID       int       `json:"qrCodeId" gorm:"index;not null"`
	Shop           string    `json:"shop" gorm:"size:255;not null"`
	IP             string    `json:"ip" gorm:"size:64"`
	UserAgent      string    `json:"userAgent" gorm:"type:text"`
	DestinationURL string    `json:"destinationUrl" gorm:"type:text"`
	Timestamp      time.Time `json:"timestamp" gorm:"index;not null"`
}

const (
	ScanStreamName     = "SCANS"
	ScanStreamSubject  = "scans.events"
	ScanConsumerName   = "scan-recorder"
	ScanStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
