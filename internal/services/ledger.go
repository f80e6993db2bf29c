package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lumen-backend/internal/data/repos"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

// LedgerService reads the externally debited token balance. The cached value
// is only a read optimisation for the balance gate; Refresh always goes to
// the store.
type LedgerService interface {
	GetBalance(ctx context.Context, ownerUserID uuid.UUID) (int64, error)
	Refresh(ctx context.Context, ownerUserID uuid.UUID) (int64, error)
	// Require returns ErrInsufficientBalance when the owner is below the
	// minimum priced for op.
	Require(ctx context.Context, ownerUserID uuid.UUID, op string) error
}

type cachedBalance struct {
	value int64
	at    time.Time
}

type ledgerService struct {
	log     *logger.Logger
	repo    repos.TokenBalanceRepo
	pricing Pricing
	notify  Notifier
	ttl     time.Duration

	mu    sync.Mutex
	cache map[uuid.UUID]cachedBalance
}

func NewLedgerService(baseLog *logger.Logger, repo repos.TokenBalanceRepo, pricing Pricing, notify Notifier) LedgerService {
	return &ledgerService{
		log:     baseLog.With("service", "LedgerService"),
		repo:    repo,
		pricing: pricing,
		notify:  notify,
		ttl:     5 * time.Second,
		cache:   map[uuid.UUID]cachedBalance{},
	}
}

func (s *ledgerService) GetBalance(ctx context.Context, ownerUserID uuid.UUID) (int64, error) {
	s.mu.Lock()
	c, ok := s.cache[ownerUserID]
	s.mu.Unlock()
	if ok && time.Since(c.at) < s.ttl {
		return c.value, nil
	}
	return s.load(ctx, ownerUserID)
}

func (s *ledgerService) load(ctx context.Context, ownerUserID uuid.UUID) (int64, error) {
	bal, err := s.repo.Get(dbctx.Context{Ctx: ctx}, ownerUserID)
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	s.mu.Lock()
	s.cache[ownerUserID] = cachedBalance{value: bal, at: time.Now()}
	s.mu.Unlock()
	return bal, nil
}

func (s *ledgerService) Refresh(ctx context.Context, ownerUserID uuid.UUID) (int64, error) {
	bal, err := s.load(ctx, ownerUserID)
	if err != nil {
		s.log.Warn("Balance refresh failed", "owner_id", ownerUserID, "error", err)
		return 0, err
	}
	if s.notify != nil {
		s.notify.BalanceUpdated(ctx, ownerUserID, bal)
	}
	return bal, nil
}

func (s *ledgerService) Require(ctx context.Context, ownerUserID uuid.UUID, op string) error {
	min := s.pricing.Minimum(op)
	if min <= 0 {
		return nil
	}
	bal, err := s.GetBalance(ctx, ownerUserID)
	if err != nil {
		return err
	}
	if bal < min {
		return fmt.Errorf("%w: %s needs %d, have %d", ErrInsufficientBalance, op, min, bal)
	}
	return nil
}
