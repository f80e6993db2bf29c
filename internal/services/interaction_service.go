package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lumen-backend/internal/data/repos"
	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/observability"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

// InteractionChange is the settled state of one like/save after a Set.
type InteractionChange struct {
	Ref    content.Ref             `json:"ref"`
	Kind   content.InteractionKind `json:"kind"`
	Active bool                    `json:"active"`
	Count  int64                   `json:"count"`
}

// InteractionService applies like/save intents. Set is idempotent: sending
// the same intent twice leaves the store and the counter unchanged.
type InteractionService interface {
	Set(ctx context.Context, userID uuid.UUID, ref content.Ref, kind content.InteractionKind, active bool) (InteractionChange, error)
}

type interactionService struct {
	db           *gorm.DB
	log          *logger.Logger
	posts        repos.PostRepo
	interactions repos.InteractionRepo
	notify       Notifier
}

func NewInteractionService(db *gorm.DB, baseLog *logger.Logger, posts repos.PostRepo, interactions repos.InteractionRepo, notify Notifier) InteractionService {
	return &interactionService{
		db:           db,
		log:          baseLog.With("service", "InteractionService"),
		posts:        posts,
		interactions: interactions,
		notify:       notify,
	}
}

func (s *interactionService) Set(ctx context.Context, userID uuid.UUID, ref content.Ref, kind content.InteractionKind, active bool) (InteractionChange, error) {
	change := InteractionChange{Ref: ref, Kind: kind, Active: active}
	if userID == uuid.Nil {
		return change, ErrForbidden
	}
	if !kind.Valid() {
		return change, fmt.Errorf("%w: interaction %q", ErrInvalidKind, kind)
	}
	switch ref.Kind {
	case content.RefPost, content.RefSimulationPost:
	case content.RefProject, content.RefSimulation:
		return change, fmt.Errorf("%w: %s cannot be liked or saved", ErrInvalidKind, ref.Kind)
	default:
		return change, fmt.Errorf("%w: %q", ErrInvalidKind, ref.Kind)
	}

	post, err := s.posts.GetByID(dbctx.Context{Ctx: ctx}, ref.ID)
	if err != nil {
		if errors.Is(err, repos.ErrNotFound) {
			return change, ErrNotFound
		}
		return change, &InteractionFailedError{Kind: string(kind), Cause: err}
	}
	if post.RefKind() != ref.Kind {
		return change, ErrNotFound
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		var changed bool
		var err error
		if active {
			changed, err = s.interactions.Activate(dbc, post.ID, userID, kind)
		} else {
			changed, err = s.interactions.Deactivate(dbc, post.ID, userID, kind)
		}
		if err != nil {
			return err
		}
		delta := 0
		if changed && active {
			delta = 1
		} else if changed {
			delta = -1
		}
		count, err := s.posts.AdjustCounter(dbc, post.ID, kind, delta)
		if err != nil {
			return err
		}
		change.Count = count
		return nil
	})
	if err != nil {
		s.log.Warn("Interaction failed", "post_id", post.ID, "kind", kind, "user_id", userID, "error", err)
		return change, &InteractionFailedError{Kind: string(kind), Cause: err}
	}
	observability.Current().IncInteraction(string(kind), active)
	if s.notify != nil {
		s.notify.InteractionChanged(ctx, userID, change)
	}
	return change, nil
}
