package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/bookexapp/bookex-server/internal/domain"
	apperrors "github.com/bookexapp/bookex-server/internal/errors"
)

// CreateJob registers a new conversion job and returns its id. The
// status blob starts empty; the ingest pipeline overwrites it as the
// batch progresses.
func (s *Store) CreateJob(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversion_jobs ("status", "created_at")
		VALUES ('{}', ?)`,
		formatTime(time.Now()),
	)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeDatabase, "create job")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeDatabase, "create job")
	}
	return id, nil
}

// UpdateJob overwrites a job's status blob wholesale. Last write wins;
// there is no merging of previous snapshots.
func (s *Store) UpdateJob(ctx context.Context, id int64, status []byte) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversion_jobs SET "status" = ? WHERE "id" = ?`,
		string(status), id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabase, "update job")
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabase, "update job")
	}
	if changed == 0 {
		return apperrors.NotFoundf("job %d not found", id)
	}
	return nil
}

// GetJob retrieves a conversion job by id.
// Returns a NOT_FOUND error if the job does not exist.
func (s *Store) GetJob(ctx context.Context, id int64) (*domain.ConversionJob, error) {
	var job domain.ConversionJob
	var status string
	var createdAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT "id", "status", "created_at"
		FROM conversion_jobs WHERE "id" = ?`, id).
		Scan(&job.ID, &status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("job %d not found", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabase, "get job")
	}

	job.Status = json.RawMessage(status)
	if t, perr := parseTime(createdAt); perr == nil {
		job.CreatedAt = t
	}
	return &job, nil
}
