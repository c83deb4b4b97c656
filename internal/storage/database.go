// Package storage persists finished analysis outcomes for audit and history
// queries. The in-memory queue remains the scheduler's source of truth; rows
// here are written after the fact and never read back into the queue.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	// import db drivers
	_ "github.com/lib/pq"

	"github.com/sevigo/merge-warden/internal/core"
)

// ReviewRecord is one persisted analysis outcome.
type ReviewRecord struct {
	ID           int64           `db:"id"`
	JobID        string          `db:"job_id"`
	RepoFullName string          `db:"repo_full_name"`
	PRNumber     int             `db:"pr_number"`
	Status       string          `db:"status"`
	MergeScore   sql.NullInt64   `db:"merge_score"`
	Summary      string          `db:"summary"`
	Error        string          `db:"error"`
	Result       json.RawMessage `db:"result"`
	CreatedAt    time.Time       `db:"created_at"`
}

// RecordFromJob converts a terminal job into its audit row.
func RecordFromJob(job *core.Job) *ReviewRecord {
	rec := &ReviewRecord{
		JobID:        job.ID,
		RepoFullName: job.Payload.RepoFullName,
		PRNumber:     job.Payload.PRNumber,
		Status:       string(job.Status),
		Error:        job.Error,
	}
	if job.Result != nil {
		rec.MergeScore = sql.NullInt64{Int64: int64(job.Result.MergeScore), Valid: true}
		rec.Summary = job.Result.Summary
		if raw, err := json.Marshal(job.Result); err == nil {
			rec.Result = raw
		}
	}
	return rec
}

// Store defines the audit persistence operations.
type Store interface {
	SaveReview(ctx context.Context, rec *ReviewRecord) error
	GetLatestReviewForPR(ctx context.Context, repoFullName string, prNumber int) (*ReviewRecord, error)
	ListReviewsForRepo(ctx context.Context, repoFullName string, limit int) ([]*ReviewRecord, error)
}

type postgresStore struct {
	db *sqlx.DB
}

// NewStore creates a Postgres-backed Store.
func NewStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

// SaveReview inserts a new review outcome row.
func (s *postgresStore) SaveReview(ctx context.Context, rec *ReviewRecord) error {
	query := `INSERT INTO reviews (job_id, repo_full_name, pr_number, status, merge_score, summary, error, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.db.ExecContext(ctx, query,
		rec.JobID, rec.RepoFullName, rec.PRNumber, rec.Status,
		rec.MergeScore, rec.Summary, rec.Error, rec.Result, time.Now())
	return err
}

// GetLatestReviewForPR retrieves the most recent outcome for a pull request.
func (s *postgresStore) GetLatestReviewForPR(ctx context.Context, repoFullName string, prNumber int) (*ReviewRecord, error) {
	query := `
		SELECT id, job_id, repo_full_name, pr_number, status, merge_score, summary, error, result, created_at
		FROM reviews
		WHERE repo_full_name = $1 AND pr_number = $2
		ORDER BY created_at DESC
		LIMIT 1`

	var rec ReviewRecord
	if err := s.db.GetContext(ctx, &rec, query, repoFullName, prNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no review found for PR %s#%d", repoFullName, prNumber)
		}
		return nil, err
	}
	return &rec, nil
}

// ListReviewsForRepo returns the newest outcomes for a repository.
func (s *postgresStore) ListReviewsForRepo(ctx context.Context, repoFullName string, limit int) ([]*ReviewRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, job_id, repo_full_name, pr_number, status, merge_score, summary, error, result, created_at
		FROM reviews
		WHERE repo_full_name = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var recs []*ReviewRecord
	if err := s.db.SelectContext(ctx, &recs, query, repoFullName, limit); err != nil {
		return nil, err
	}
	return recs, nil
}
