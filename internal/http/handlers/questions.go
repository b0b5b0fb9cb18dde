package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/surveytrends-backend/internal/http/response"
	"github.com/yungbote/surveytrends-backend/internal/services/analytics"
	"github.com/yungbote/surveytrends-backend/internal/services/questions"
)

// Analytics is the facade the HTTP layer translates to.
type Analytics interface {
	ResolveQuestion(ctx context.Context, ref questions.Reference) (questions.Resolution, error)
	GroupQuestionsByTheme(ctx context.Context, theme string) ([]questions.QuestionGroup, error)
	AggregateResponses(ctx context.Context, req analytics.AggregateRequest) (analytics.AggregateOutcome, error)
	InvalidateIndex(ctx context.Context) error
}

const headerIdempotencyKey = "Idempotency-Key"

type QuestionHandler struct {
	svc Analytics
}

func NewQuestionHandler(svc Analytics) *QuestionHandler {
	return &QuestionHandler{svc: svc}
}

// GET /v1/questions/resolve
func (h *QuestionHandler) Resolve(c *gin.Context) {
	ref := questions.Reference{
		Code:           c.Query("code"),
		Theme:          c.Query("theme"),
		Round:          c.Query("round"),
		ExactText:      c.Query("text"),
		Hint:           c.Query("hint"),
		IdempotencyKey: strings.TrimSpace(c.GetHeader(headerIdempotencyKey)),
	}
	if raw := strings.TrimSpace(c.Query("id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_question_id", err)
			return
		}
		ref.InstanceID = id
	}

	res, err := h.svc.ResolveQuestion(c.Request.Context(), ref)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /v1/themes/:theme/groups
func (h *QuestionHandler) Groups(c *gin.Context) {
	groups, err := h.svc.GroupQuestionsByTheme(c.Request.Context(), c.Param("theme"))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"groups": groups})
}

// POST /v1/questions/index/invalidate
func (h *QuestionHandler) InvalidateIndex(c *gin.Context) {
	if err := h.svc.InvalidateIndex(c.Request.Context()); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "invalidate_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}
