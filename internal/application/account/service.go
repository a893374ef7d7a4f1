package account

import (
	"context"
	"errors"
	"fmt"

	domaccount "github.com/mossleaf/bookmart/internal/domain/account"
	domuser "github.com/mossleaf/bookmart/internal/domain/user"
	"github.com/mossleaf/bookmart/internal/observability"
	"github.com/mossleaf/bookmart/internal/observability/logctx"
)

// A user may hold at most this many funding accounts.
const maxAccountsPerUser = 3

var ErrAccountLimit = errors.New("account: user already holds the maximum number of accounts")

type IDGenerator interface {
	NewID() string
}

// Service is the funding-account directory: creation, removal, top-ups and
// listing. Settlement itself never goes through here.
type Service struct {
	accounts domaccount.Repository
	users    domuser.Repository
	idGen    IDGenerator
	log      observability.Logger
}

func NewService(accounts domaccount.Repository, users domuser.Repository, idGen IDGenerator, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		accounts: accounts,
		users:    users,
		idGen:    idGen,
		log:      logger.With(observability.F("component", "account_service")),
	}
}

func (s *Service) Create(ctx context.Context, userID, alias string) (*domaccount.Account, error) {
	logger := logctx.FromOr(ctx, s.log)

	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}

	owned, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("account: list by user: %w", err)
	}
	if len(owned) >= maxAccountsPerUser {
		return nil, ErrAccountLimit
	}

	acct := domaccount.New(s.idGen.NewID(), userID, alias)
	if err := s.accounts.Create(ctx, acct); err != nil {
		logger.Error("account_create_failed",
			observability.F("user_id", userID),
			observability.F("error", err.Error()),
		)
		return nil, fmt.Errorf("account: create: %w", err)
	}

	logger.Info("account_created",
		observability.F("account_id", acct.ID),
		observability.F("user_id", userID),
	)
	return acct, nil
}

func (s *Service) Remove(ctx context.Context, userID, accountID string) error {
	logger := logctx.FromOr(ctx, s.log)

	if _, err := s.users.Get(ctx, userID); err != nil {
		return err
	}

	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if acct.UserID != userID {
		return domaccount.ErrNotFound
	}

	if err := s.accounts.Delete(ctx, accountID); err != nil {
		return fmt.Errorf("account: delete: %w", err)
	}

	logger.Info("account_removed",
		observability.F("account_id", accountID),
		observability.F("user_id", userID),
	)
	return nil
}

// Charge tops up an account balance. Retries once per lost optimistic race
// since a top-up has no cross-resource invariant to protect.
func (s *Service) Charge(ctx context.Context, accountID string, amount int64) (*domaccount.Account, error) {
	logger := logctx.FromOr(ctx, s.log)

	for attempt := 0; ; attempt++ {
		acct, err := s.accounts.Get(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if err := acct.Credit(amount); err != nil {
			return nil, err
		}
		err = s.accounts.Save(ctx, acct)
		if errors.Is(err, domaccount.ErrConflict) && attempt < 2 {
			continue
		}
		if err != nil {
			logger.Error("account_charge_failed",
				observability.F("account_id", accountID),
				observability.F("error", err.Error()),
			)
			return nil, fmt.Errorf("account: charge: %w", err)
		}

		logger.Info("account_charged",
			observability.F("account_id", accountID),
			observability.F("amount", amount),
			observability.F("balance", acct.Balance),
		)
		return acct, nil
	}
}

func (s *Service) Get(ctx context.Context, accountID string) (*domaccount.Account, error) {
	return s.accounts.Get(ctx, accountID)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]*domaccount.Account, error) {
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	return s.accounts.ListByUser(ctx, userID)
}
