package amqp

import (
	"encoding/json"
	"time"
)

// ScanMessage tells the OCR worker that a receipt scan is waiting.
// It carries only the id and version; the worker fetches the scan row and
// the uploaded file from the database.
type ScanMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewScanMessage creates a message for a queued scan.
func NewScanMessage(id, version int64) *ScanMessage {
	return &ScanMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ScanMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ScanMessageFromJSON creates a message from JSON bytes
func ScanMessageFromJSON(data []byte) (*ScanMessage, error) {
	var msg ScanMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
