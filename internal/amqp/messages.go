package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message kinds carried on the events queue.
const (
	KindAccountChanged = "account_changed"
	KindExportReminder = "export_reminder"
)

// Envelope wraps every queue message with its kind so one consumer can
// dispatch both message types.
type Envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// AccountChangedMessage signals that one account's ledger changed at the
// given state version. The worker fetches the actual snapshot itself.
type AccountChangedMessage struct {
	Name      string    `json:"name"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// ExportReminderMessage signals that the export reminder interval elapsed.
type ExportReminderMessage struct {
	IntervalMinutes int       `json:"intervalMinutes"`
	Timestamp       time.Time `json:"timestamp"`
}

func NewAccountChangedMessage(name string, version int64) *AccountChangedMessage {
	return &AccountChangedMessage{Name: name, Version: version, Timestamp: time.Now()}
}

func NewExportReminderMessage(intervalMinutes int) *ExportReminderMessage {
	return &ExportReminderMessage{IntervalMinutes: intervalMinutes, Timestamp: time.Now()}
}

func encodeEnvelope(kind string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return json.Marshal(Envelope{Kind: kind, Payload: body})
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Kind == "" {
		return Envelope{}, fmt.Errorf("envelope missing kind")
	}
	return env, nil
}
