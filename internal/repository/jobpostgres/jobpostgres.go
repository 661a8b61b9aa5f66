// Package jobpostgres stores video jobs in Postgres
package jobpostgres

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/wb-go/wbf/dbpg"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

func (p PostgresRepo) Create(ctx context.Context, j *model.VideoJob) error {
	query := `INSERT INTO video_jobs (job_uid, user_id, state, settings, font_key, source_key, result_key, err_msg, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := p.DB.Master.ExecContext(ctx, query, j.UID, j.UserID, j.State, j.Snapshot, j.FontKey, j.SourceKey, j.ResultKey, j.ErrMsg, j.CreatedAt, j.CreatedAt)
	return err
}

func (p PostgresRepo) Get(ctx context.Context, id string) (*model.VideoJob, error) {
	query := `SELECT job_uid, user_id, state, settings, font_key, source_key, result_key, err_msg, created_at, updated_at
	FROM video_jobs
	WHERE job_uid = $1`
	var job model.VideoJob
	var errMsg sql.NullString

	err := p.DB.Master.QueryRowContext(ctx, query, id).Scan(&job.UID,
		&job.UserID,
		&job.State,
		&job.Snapshot,
		&job.FontKey,
		&job.SourceKey,
		&job.ResultKey,
		&errMsg,
		&job.CreatedAt,
		&job.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrJobNotFound
		default:
			return nil, err // 500
		}
	}
	job.ErrMsg = errMsg.String
	return &job, nil
}

func (p PostgresRepo) UpdateState(ctx context.Context, id string, st model.State, errMsg string) error {
	query := `UPDATE video_jobs SET state = $1, err_msg = $2, updated_at = now() WHERE job_uid = $3`
	res, err := p.DB.Master.ExecContext(ctx, query, st, errMsg, id)
	if err != nil {
		return err // 500
	}
	return checkAffected(res)
}

func (p PostgresRepo) SaveResult(ctx context.Context, j *model.VideoJob) error {
	query := `UPDATE video_jobs SET state = $1, result_key = $2, err_msg = '', updated_at = $3 WHERE job_uid = $4`
	res, err := p.DB.Master.ExecContext(ctx, query, j.State, j.ResultKey, j.UpdatedAt, j.UID)
	if err != nil {
		return err // 500
	}
	return checkAffected(res)
}

// FetchOrphans returns unfinished jobs not touched since cutoff: either never
// picked up or abandoned by a worker that died mid-job.
func (p PostgresRepo) FetchOrphans(ctx context.Context, limit int, cutoff time.Time) ([]string, error) {
	query := `SELECT job_uid
	FROM video_jobs
	WHERE state IN ($1, $2, $3, $4)
	AND updated_at < $5
	ORDER BY updated_at
	LIMIT $6`

	rows, err := p.DB.Master.QueryContext(ctx, query,
		model.StateIdle, model.StateValidating, model.StateProcessing, model.StateEncoding, cutoff, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	orphans := make([]string, 0, limit)
	for rows.Next() {
		uid := ""
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		orphans = append(orphans, uid)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return orphans, nil
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrJobNotFound // 404
	}
	return nil
}
