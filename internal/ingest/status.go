package ingest

import (
	"context"
	"encoding/json"
)

// Snapshot is one stage update written to the job record. The record is
// single-writer with last-write-wins semantics: a poller sees the most
// recent stage, not history.
type Snapshot struct {
	Success  bool   `json:"success"`
	Status   string `json:"status,omitempty"`
	Progress string `json:"progress,omitempty"`
	Debug    any    `json:"debug,omitempty"`
	Data     []any  `json:"data,omitempty"`
}

// committed is the result slot for a successfully ingested file.
type committed struct {
	IDs []int64 `json:"ids"`
}

// stageStatus builds an in-progress snapshot. The debug payload is
// included only when debug mode is enabled.
func (p *Pipeline) stageStatus(status, progress string, debugPayload any) Snapshot {
	snap := Snapshot{Status: status, Progress: progress}
	if p.debug {
		snap.Debug = debugPayload
	}
	return snap
}

// terminalStatus builds the final snapshot: one result slot per input
// file, index-aligned.
func terminalStatus(outcomes []any) Snapshot {
	if outcomes == nil {
		outcomes = []any{}
	}
	return Snapshot{Success: true, Data: outcomes}
}

// writeStatus overwrites the job's status blob. A failed write is
// logged and swallowed: status publication must never break ingestion.
func (p *Pipeline) writeStatus(ctx context.Context, jobID int64, snap Snapshot) {
	blob, err := json.Marshal(snap)
	if err != nil {
		p.logger.Error("marshal job status", "job_id", jobID, "error", err)
		return
	}
	if err := p.store.UpdateJob(ctx, jobID, blob); err != nil {
		p.logger.Error("update job status", "job_id", jobID, "error", err)
	}
}
