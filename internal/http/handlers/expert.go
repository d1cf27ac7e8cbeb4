package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mentorbridge/internal/domain/expert"
	"github.com/yungbote/mentorbridge/internal/http/response"
	"github.com/yungbote/mentorbridge/internal/platform/ctxutil"
	"github.com/yungbote/mentorbridge/internal/services"
)

type ExpertHandler struct {
	experts services.ExpertService
}

func NewExpertHandler(experts services.ExpertService) *ExpertHandler {
	return &ExpertHandler{experts: experts}
}

// GET /api/experts/search?filter=&expertise=AI/ML&expertise=Web
// expertise may also be a comma separated list.
func (h *ExpertHandler) Search(c *gin.Context) {
	var expertise []string
	for _, raw := range c.QueryArray("expertise") {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				expertise = append(expertise, part)
			}
		}
	}
	ctx := c.Request.Context()
	experts, err := h.experts.Search(ctx, ctxutil.SessionID(ctx), c.Query("filter"), expertise)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if experts == nil {
		experts = []expert.Match{}
	}
	response.RespondOK(c, gin.H{"experts": experts})
}
