package user

import (
	"context"
	"fmt"

	domuser "github.com/mossleaf/bookmart/internal/domain/user"
	"github.com/mossleaf/bookmart/internal/observability"
	"github.com/mossleaf/bookmart/internal/observability/logctx"
)

type IDGenerator interface {
	NewID() string
}

type Service struct {
	users domuser.Repository
	idGen IDGenerator
	log   observability.Logger
}

func NewService(users domuser.Repository, idGen IDGenerator, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		users: users,
		idGen: idGen,
		log:   logger.With(observability.F("component", "user_service")),
	}
}

func (s *Service) Register(ctx context.Context, name, nickname string) (*domuser.User, error) {
	logger := logctx.FromOr(ctx, s.log)

	u, err := domuser.New(s.idGen.NewID(), name, nickname)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		logger.Error("user_register_failed",
			observability.F("name", name),
			observability.F("error", err.Error()),
		)
		return nil, fmt.Errorf("user: register: %w", err)
	}

	logger.Info("user_registered", observability.F("user_id", u.ID))
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domuser.User, error) {
	return s.users.Get(ctx, id)
}
