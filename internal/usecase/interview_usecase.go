package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hirelink/intercall/internal/domain"
	"github.com/hirelink/intercall/internal/infra/adapters/postgres/repository"
)

// InterviewUsecase guards the interview record's status lifecycle. The call
// clients treat status updates as fire-and-forget; validation lives here so
// a straggling PATCH (e.g. completed arriving twice) cannot corrupt a record.
type InterviewUsecase interface {
	GetByRoomID(ctx context.Context, roomID string) (domain.Interview, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Interview, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.InterviewStatus, startedAt, endedAt *time.Time) (domain.Interview, error)
}

type interviewUsecase struct {
	repo repository.InterviewRepository
}

func NewInterviewUsecase(repo repository.InterviewRepository) InterviewUsecase {
	return &interviewUsecase{repo: repo}
}

func (u *interviewUsecase) GetByRoomID(ctx context.Context, roomID string) (domain.Interview, error) {
	iv, err := u.repo.GetByRoomID(ctx, roomID)
	if err != nil {
		return domain.Interview{}, fmt.Errorf("get interview by room: %w", err)
	}

	return iv, nil
}

func (u *interviewUsecase) GetByID(ctx context.Context, id uuid.UUID) (domain.Interview, error) {
	iv, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Interview{}, fmt.Errorf("get interview: %w", err)
	}

	return iv, nil
}

func (u *interviewUsecase) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.InterviewStatus,
	startedAt, endedAt *time.Time,
) (domain.Interview, error) {
	iv, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Interview{}, fmt.Errorf("get interview: %w", err)
	}

	if !iv.CanTransition(status) {
		return domain.Interview{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, iv.Status, status)
	}

	if err := u.repo.UpdateStatus(ctx, id, status, startedAt, endedAt); err != nil {
		return domain.Interview{}, fmt.Errorf("update interview status: %w", err)
	}

	iv.Status = status
	if startedAt != nil {
		iv.StartedAt = startedAt
	}
	if endedAt != nil {
		iv.EndedAt = endedAt
	}

	return iv, nil
}
