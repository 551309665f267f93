package redis

import (
	"encoding/json"
	"fmt"

	"github.com/ghuser/persistredis/services/journal/domain/models"
)

// wireRecord is the on-the-wire shape of a per-identifier sorted-set value.
// The write side is an external collaborator (out of scope per the core);
// this is this deployment's concrete choice of encoding.
type wireRecord struct {
	SequenceNr    uint64   `json:"sequence_nr"`
	Payload       []byte   `json:"payload"`
	Deleted       bool     `json:"deleted"`
	PersistenceID string   `json:"persistence_id"`
	Tags          []string `json:"tags"`
}

// JSONSerializer decodes persistent records from JSON.
type JSONSerializer struct{}

func (JSONSerializer) DecodeRecord(raw []byte) (models.PersistentRecord, error) {
	var wire wireRecord
	if err := json.Unmarshal(raw, &wire); err != nil {
		return models.PersistentRecord{}, fmt.Errorf("unmarshal persistent record: %w", err)
	}
	if wire.PersistenceID == "" {
		return models.PersistentRecord{}, fmt.Errorf("persistent record missing persistence_id")
	}
	return models.PersistentRecord{
		SequenceNr:    wire.SequenceNr,
		Payload:       wire.Payload,
		Deleted:       wire.Deleted,
		PersistenceID: wire.PersistenceID,
		Tags:          wire.Tags,
	}, nil
}
