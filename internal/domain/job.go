package domain

import (
	"encoding/json"
	"time"
)

// ConversionJob is the pollable status record for one upload batch.
// Status holds the most recent snapshot written by the ingestion
// pipeline; every write replaces the previous blob wholesale.
type ConversionJob struct {
	ID        int64           `json:"id"`
	Status    json.RawMessage `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}
