package events

import (
	"encoding/json"
	"time"

	"fintrack/internal/core"
)

const (
	ActionUpserted = "upserted"
	ActionDeleted  = "deleted"
)

// TransactionEvent is published on every store mutation. Upserts carry
// the full transaction so consumers never have to read it back; deletes
// carry only the id.
type TransactionEvent struct {
	Action      string            `json:"action"`
	OwnerID     int64             `json:"ownerId"`
	Transaction *core.Transaction `json:"transaction,omitempty"`
	ID          int64             `json:"id,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

func NewUpsertedEvent(ownerID int64, t core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Action:      ActionUpserted,
		OwnerID:     ownerID,
		Transaction: &t,
		Timestamp:   time.Now(),
	}
}

func NewDeletedEvent(ownerID, id int64) *TransactionEvent {
	return &TransactionEvent{
		Action:    ActionDeleted,
		OwnerID:   ownerID,
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
