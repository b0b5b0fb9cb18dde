package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/surveytrends-backend/internal/http/response"
	"github.com/yungbote/surveytrends-backend/internal/platform/ctxutil"
	"github.com/yungbote/surveytrends-backend/internal/services/analytics"
	"github.com/yungbote/surveytrends-backend/internal/services/gate"
	"github.com/yungbote/surveytrends-backend/internal/services/questions"
)

type aggregateBody struct {
	Dataset      string                   `json:"dataset"`
	Question     questions.Reference      `json:"question"`
	Group        *questions.QuestionGroup `json:"group"`
	Demographics []string                 `json:"demographics"`
	Policy       *gate.Policy             `json:"policy"`
}

type ResponseHandler struct {
	svc Analytics
}

func NewResponseHandler(svc Analytics) *ResponseHandler {
	return &ResponseHandler{svc: svc}
}

// POST /v1/responses/aggregate
func (h *ResponseHandler) Aggregate(c *gin.Context) {
	var body aggregateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctxutil.TagDataset(c.Request.Context(), body.Dataset)

	req := analytics.AggregateRequest{
		Dataset:      body.Dataset,
		Question:     body.Question,
		Demographics: body.Demographics,
	}
	req.Question.IdempotencyKey = strings.TrimSpace(c.GetHeader(headerIdempotencyKey))

	if body.Group != nil {
		set, err := questions.SetFromGroup(*body.Group)
		if err != nil {
			response.RespondDomainError(c, err)
			return
		}
		req.Set = set
	}
	if body.Policy != nil {
		mode, err := gate.ParseMode(string(body.Policy.Mode))
		if err != nil {
			response.RespondDomainError(c, err)
			return
		}
		p := *body.Policy
		p.Mode = mode
		req.Policy = &p
	}

	out, err := h.svc.AggregateResponses(c.Request.Context(), req)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, out)
}
