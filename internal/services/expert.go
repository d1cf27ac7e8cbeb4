package services

import (
	"context"
	"strings"

	"github.com/yungbote/mentorbridge/internal/clients/backend"
	"github.com/yungbote/mentorbridge/internal/domain/expert"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

type ExpertService interface {
	Search(ctx context.Context, sessionID, filter string, expertise []string) ([]expert.Match, error)
}

type expertService struct {
	log      *logger.Logger
	sessions SessionService
	backend  backend.Client
}

func NewExpertService(log *logger.Logger, sessions SessionService, be backend.Client) ExpertService {
	return &expertService{
		log:      log.With("service", "ExpertService"),
		sessions: sessions,
		backend:  be,
	}
}

func (s *expertService) Search(ctx context.Context, sessionID, filter string, expertise []string) ([]expert.Match, error) {
	if st, err := s.sessions.Ensure(ctx, sessionID); err == nil {
		ctx = s.sessions.Outgoing(ctx, st)
	}
	out, err := s.backend.SearchExperts(ctx, strings.TrimSpace(filter), expertise)
	if err != nil {
		s.log.Warn("Expert search failed", "error", err)
		return nil, apiError(err)
	}
	return out, nil
}
