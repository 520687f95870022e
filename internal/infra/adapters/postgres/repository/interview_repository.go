package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hirelink/intercall/internal/domain"
)

type InterviewRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Interview, error)
	GetByRoomID(ctx context.Context, roomID string) (domain.Interview, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.InterviewStatus, startedAt, endedAt *time.Time) error
}

type interviewRepo struct {
	db *sqlx.DB
}

func NewInterviewRepo(db *sqlx.DB) InterviewRepository {
	return &interviewRepo{db: db}
}

const interviewColumns = `id, room_id, recruiter_id, developer_id, status,
	scheduled_at, duration_minutes, started_at, ended_at, created_at, updated_at`

func (r *interviewRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Interview, error) {
	var iv domain.Interview

	query := fmt.Sprintf("SELECT %s FROM interviews WHERE id = $1", interviewColumns)

	if err := r.db.GetContext(ctx, &iv, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Interview{}, domain.ErrInterviewNotFound
		}
		return domain.Interview{}, err
	}

	return iv, nil
}

func (r *interviewRepo) GetByRoomID(ctx context.Context, roomID string) (domain.Interview, error) {
	var iv domain.Interview

	query := fmt.Sprintf("SELECT %s FROM interviews WHERE room_id = $1", interviewColumns)

	if err := r.db.GetContext(ctx, &iv, query, roomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Interview{}, domain.ErrInterviewNotFound
		}
		return domain.Interview{}, err
	}

	return iv, nil
}

func (r *interviewRepo) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.InterviewStatus,
	startedAt, endedAt *time.Time,
) error {
	query := `UPDATE interviews
		SET status = $2,
		    started_at = COALESCE($3, started_at),
		    ended_at = COALESCE($4, ended_at),
		    updated_at = now()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, status, startedAt, endedAt)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrInterviewNotFound
	}

	return nil
}
