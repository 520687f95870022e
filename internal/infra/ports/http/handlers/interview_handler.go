package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hirelink/intercall/internal/application/constant"
	"github.com/hirelink/intercall/internal/domain"
	"github.com/hirelink/intercall/internal/infra/appctx"
	"github.com/hirelink/intercall/internal/infra/ports/http/dto"
	"github.com/hirelink/intercall/internal/usecase"
)

type InterviewHandler struct {
	interviewUsecase usecase.InterviewUsecase
}

func NewInterviewHandler(interviewUsecase usecase.InterviewUsecase) *InterviewHandler {
	return &InterviewHandler{
		interviewUsecase: interviewUsecase,
	}
}

// GetByRoom serves GET /interviews/room/:roomId. Only the two participants of
// the interview may read the record.
func (h *InterviewHandler) GetByRoom(c echo.Context) error {
	roomID := c.Param("roomId")
	if roomID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "room id is required"})
	}

	iv, err := h.interviewUsecase.GetByRoomID(c.Request().Context(), roomID)
	if err != nil {
		if errors.Is(err, domain.ErrInterviewNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "interview not found"})
		}

		slog.Error("get interview by room", slog.Any(constant.Error, err), slog.String(constant.RoomID, roomID))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not load interview"})
	}

	if !h.isParticipant(c, iv) {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "not a participant of this interview"})
	}

	return c.JSON(http.StatusOK, iv)
}

// UpdateStatus serves PATCH /interviews/:id/status.
func (h *InterviewHandler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid interview id"})
	}

	var req dto.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	iv, err := h.interviewUsecase.UpdateStatus(c.Request().Context(), id, req.Status, req.StartedAt, req.EndedAt)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInterviewNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "interview not found"})
		case errors.Is(err, domain.ErrInvalidTransition):
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			slog.Error("update interview status", slog.Any(constant.Error, err), slog.Any(constant.InterviewID, id))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not update interview"})
		}
	}

	return c.JSON(http.StatusOK, iv)
}

func (h *InterviewHandler) isParticipant(c echo.Context, iv domain.Interview) bool {
	identity, ok := appctx.Identity(c.Request().Context())
	if !ok {
		return false
	}

	return identity.UserID == iv.RecruiterID.String() || identity.UserID == iv.DeveloperID.String()
}
