package amqp

import (
	"encoding/json"
	"time"
)

// ExportSyncMessage asks the worker to push the current ledger to the
// export spreadsheet. It carries no rows; the worker reads the ledger
// from storage so it always exports the latest state.
type ExportSyncMessage struct {
	// Trigger records what caused the export: "import", "reclassify",
	// "append" or "manual".
	Trigger   string    `json:"trigger"`
	Rows      int       `json:"rows"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExportSyncMessage(trigger string, rows int) *ExportSyncMessage {
	return &ExportSyncMessage{
		Trigger:   trigger,
		Rows:      rows,
		Timestamp: time.Now(),
	}
}

func (m *ExportSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExportSyncMessageFromJSON(data []byte) (*ExportSyncMessage, error) {
	var msg ExportSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
