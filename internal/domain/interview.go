package domain

import (
	"time"

	"github.com/google/uuid"
)

type InterviewStatus string

const (
	StatusScheduled  InterviewStatus = "scheduled"
	StatusInProgress InterviewStatus = "in-progress"
	StatusCompleted  InterviewStatus = "completed"
	StatusCancelled  InterviewStatus = "cancelled"
)

type Interview struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	RoomID      string          `db:"room_id" json:"room_id"`
	RecruiterID uuid.UUID       `db:"recruiter_id" json:"recruiter"`
	DeveloperID uuid.UUID       `db:"developer_id" json:"developer"`
	Status      InterviewStatus `db:"status" json:"status"`
	ScheduledAt time.Time       `db:"scheduled_at" json:"scheduled_at"`
	Duration    int             `db:"duration_minutes" json:"duration"`
	StartedAt   *time.Time      `db:"started_at" json:"started_at,omitempty"`
	EndedAt     *time.Time      `db:"ended_at" json:"ended_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// CanTransition reports whether the status change is allowed. The record only
// moves forward: scheduled -> in-progress -> completed, and scheduled or
// in-progress may be cancelled.
func (i Interview) CanTransition(to InterviewStatus) bool {
	switch i.Status {
	case StatusScheduled:
		return to == StatusInProgress || to == StatusCancelled
	case StatusInProgress:
		return to == StatusCompleted || to == StatusCancelled
	default:
		return false
	}
}
