package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// ExtractJob is one file attempt within a batch.
type ExtractJob struct {
	ID           string              `json:"id"`
	BatchID      string              `json:"batch_id"`
	FileName     string              `json:"file_name"`
	Status       constants.JobStatus `json:"status"`
	ErrorKind    string              `json:"error_kind,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	RawResponse  string              `json:"raw_response,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
}

type ExtractJobRepository interface {
	Start(ctx context.Context, batchID, fileName string) (string, error)
	FinishSuccess(ctx context.Context, jobID string) error
	FinishFailure(ctx context.Context, jobID string, kind constants.ErrorKind, message, raw string) error
	ListRecent(ctx context.Context, limit int) ([]ExtractJob, error)
	ListBatch(ctx context.Context, batchID string) ([]ExtractJob, error)
}

var jobColumns = []string{
	"id", "batch_id", "file_name", "status", "error_kind",
	"error_message", "raw_response", "started_at", "finished_at",
}

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{db: db, log: log}
}

func now() time.Time { return time.Now().UTC() }

func (r *extractJobRepo) Start(ctx context.Context, batchID, fileName string) (string, error) {
	id := uuid.NewString()
	status := string(constants.JobStatusRunning)
	for _, c := range [][2]string{{"id", id}, {"batch_id", batchID}, {"file_name", fileName}, {"status", status}} {
		if err := extractJobs.check(c[0], c[1]); err != nil {
			return "", err
		}
	}

	query, args := r.db.builder().Insert(extractJobs.name()).
		Columns("id", "batch_id", "file_name", "status", "started_at").
		Values(id, batchID, fileName, status, now()).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.log.Error("extract_job.start.failed", "batch_id", batchID, "file", fileName, "err", err)
		return "", err
	}
	r.log.Debug("extract_job.started", "job_id", id, "batch_id", batchID, "file", fileName)
	return id, nil
}

func (r *extractJobRepo) FinishSuccess(ctx context.Context, jobID string) error {
	return r.finish(ctx, jobID, constants.JobStatusOK, nil, nil, nil)
}

func (r *extractJobRepo) FinishFailure(ctx context.Context, jobID string, kind constants.ErrorKind, message, raw string) error {
	k := string(kind)
	var rawPtr *string
	if raw != "" {
		rawPtr = &raw
	}
	return r.finish(ctx, jobID, constants.JobStatusFailed, &k, &message, rawPtr)
}

func (r *extractJobRepo) finish(ctx context.Context, jobID string, status constants.JobStatus, kind, message, raw *string) error {
	if err := extractJobs.check("status", string(status)); err != nil {
		return err
	}
	if kind != nil {
		if err := extractJobs.check("error_kind", *kind); err != nil {
			return err
		}
	}

	u := r.db.builder().Update(extractJobs.name()).
		Set("status", string(status)).
		Set("finished_at", now())
	for _, c := range []struct {
		col string
		v   *string
	}{{"error_kind", kind}, {"error_message", message}, {"raw_response", raw}} {
		if c.v == nil {
			u.SetNull(c.col)
			continue
		}
		u.Set(c.col, *c.v)
	}
	query, args := u.Where(entsql.EQ("id", jobID)).Query()

	batchID := common.BatchIDFromContext(ctx)
	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("extract_job.finish.failed", "job_id", jobID, "batch_id", batchID, "status", status, "err", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("extract job %s: %w", jobID, common.ErrNotFound)
	}
	r.log.Debug("extract_job.finished", "job_id", jobID, "batch_id", batchID, "status", status)
	return nil
}

func (r *extractJobRepo) ListRecent(ctx context.Context, limit int) ([]ExtractJob, error) {
	if limit <= 0 {
		limit = 50
	}
	b := r.db.builder()
	query, args := b.Select(jobColumns...).
		From(b.Table(extractJobs.name())).
		OrderBy(entsql.Desc("started_at")).
		Limit(limit).
		Query()
	return r.query(ctx, query, args)
}

// ListBatch returns the jobs of one batch in the order they started.
func (r *extractJobRepo) ListBatch(ctx context.Context, batchID string) ([]ExtractJob, error) {
	b := r.db.builder()
	query, args := b.Select(jobColumns...).
		From(b.Table(extractJobs.name())).
		Where(entsql.EQ("batch_id", batchID)).
		OrderBy(entsql.Asc("started_at")).
		Query()
	return r.query(ctx, query, args)
}

func (r *extractJobRepo) query(ctx context.Context, query string, args []any) ([]ExtractJob, error) {
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list extract jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ExtractJob
	for rows.Next() {
		var (
			j              ExtractJob
			status         string
			kind, msg, raw sql.NullString
			fin            sql.NullTime
		)
		if err := rows.Scan(&j.ID, &j.BatchID, &j.FileName, &status, &kind, &msg, &raw, &j.StartedAt, &fin); err != nil {
			return nil, fmt.Errorf("scan extract job: %w", err)
		}
		j.Status = constants.JobStatus(status)
		j.ErrorKind, j.ErrorMessage, j.RawResponse = kind.String, msg.String, raw.String
		if fin.Valid {
			t := fin.Time
			j.FinishedAt = &t
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
