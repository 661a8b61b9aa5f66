package jobpostgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"
)

func newRepoWithMock(t *testing.T) (PostgresRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pg := &dbpg.DB{Master: db}

	repo := PostgresRepo{DB: pg}

	return repo, mock
}

// CREATE - SUCCESS
func TestPostgresRepo_Create_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	ctime := time.Now()
	job := &model.VideoJob{
		UID:       uuid.New(),
		UserID:    42,
		State:     model.StateIdle,
		Snapshot:  model.DefaultSettings(),
		FontKey:   "fonts/0123456789abcdef.ttf",
		SourceKey: "src/x.mp4",
		CreatedAt: &ctime,
	}

	mock.ExpectExec(`INSERT INTO video_jobs`).
		WithArgs(
			job.UID,
			job.UserID,
			job.State,
			sqlmock.AnyArg(),
			job.FontKey,
			job.SourceKey,
			job.ResultKey,
			job.ErrMsg,
			job.CreatedAt,
			job.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), job)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// GET - SUCCESS
func TestPostgresRepo_Get_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	id := uuid.New().String()
	snapshot := `{"text":"hello","color":"#ff0000","size":30,"mode":"tiled","position":"tl"}`

	rows := sqlmock.NewRows([]string{
		"job_uid", "user_id", "state", "settings", "font_key",
		"source_key", "result_key", "err_msg", "created_at", "updated_at",
	}).AddRow(
		id, 7, model.StateProcessing, []byte(snapshot), "",
		"src/a.mp4", "", nil, time.Now(), time.Now(),
	)

	mock.ExpectQuery(`SELECT job_uid`).
		WithArgs(id).
		WillReturnRows(rows)

	job, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, job.UID.String())
	require.Equal(t, int64(7), job.UserID)
	require.Equal(t, model.StateProcessing, job.State)
	require.Equal(t, "hello", job.Snapshot.Text)
	require.Equal(t, model.RGB{R: 255}, job.Snapshot.Color)
	require.Equal(t, model.ModeTiled, job.Snapshot.Mode)
	require.Empty(t, job.ErrMsg)
}

// GET - NOT FOUND
func TestPostgresRepo_Get_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT job_uid`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, model.ErrJobNotFound)
}

// GET - DB ERROR
func TestPostgresRepo_Get_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT job_uid`).
		WillReturnError(errors.New("conn reset"))

	_, err := repo.Get(context.Background(), uuid.New().String())
	require.Error(t, err)
	require.NotErrorIs(t, err, model.ErrJobNotFound)
}

func TestPostgresRepo_UpdateState(t *testing.T) {
	tests := []struct {
		name    string
		result  sql.Result
		execErr error
		wantErr error
	}{
		{name: "ok", result: sqlmock.NewResult(0, 1)},
		{name: "not found", result: sqlmock.NewResult(0, 0), wantErr: model.ErrJobNotFound},
		{name: "db error", execErr: errors.New("db down"), wantErr: errors.New("db down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			id := uuid.New().String()

			exp := mock.ExpectExec(`UPDATE video_jobs SET state`).
				WithArgs(model.StateFailed, "boom", id)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(tt.result)
			}

			err := repo.UpdateState(context.Background(), id, model.StateFailed, "boom")
			if tt.wantErr != nil {
				require.EqualError(t, err, tt.wantErr.Error())
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPostgresRepo_SaveResult_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	job := &model.VideoJob{UID: uuid.New(), State: model.StateDone, ResultKey: "result/x.mp4", UpdatedAt: &now}

	mock.ExpectExec(`UPDATE video_jobs SET state = \$1, result_key`).
		WithArgs(job.State, job.ResultKey, job.UpdatedAt, job.UID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveResult(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_FetchOrphans_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	a, b := uuid.New().String(), uuid.New().String()
	rows := sqlmock.NewRows([]string{"job_uid"}).AddRow(a).AddRow(b)
	cutoff := time.Now().Add(-10 * time.Minute)

	mock.ExpectQuery(`SELECT job_uid\s+FROM video_jobs\s+WHERE state IN`).
		WithArgs(model.StateIdle, model.StateValidating, model.StateProcessing, model.StateEncoding, cutoff, 20).
		WillReturnRows(rows)

	res, err := repo.FetchOrphans(context.Background(), 20, cutoff)
	require.NoError(t, err)
	require.Equal(t, []string{a, b}, res)
}

func TestPostgresRepo_FetchOrphans_Error(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT job_uid`).WillReturnError(errors.New("db down"))

	_, err := repo.FetchOrphans(context.Background(), 5, time.Now())
	require.Error(t, err)
}
