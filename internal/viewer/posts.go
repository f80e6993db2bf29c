package viewer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
	"github.com/yungbote/lumen-backend/internal/services"
)

// PostItem is a post as one viewer sees it.
type PostItem struct {
	Post  content.Post `json:"post"`
	Liked bool         `json:"liked"`
	Saved bool         `json:"saved"`
}

func PostKey(it PostItem) string { return it.Post.ID.String() }

func PostLens(kind content.InteractionKind) Lens[PostItem] {
	if kind == content.InteractionSave {
		return Lens[PostItem]{
			Get: func(it PostItem) State { return State{Active: it.Saved, Count: it.Post.SaveCount} },
			Set: func(it PostItem, st State) PostItem {
				it.Saved, it.Post.SaveCount = st.Active, st.Count
				return it
			},
		}
	}
	return Lens[PostItem]{
		Get: func(it PostItem) State { return State{Active: it.Liked, Count: it.Post.LikeCount} },
		Set: func(it PostItem, st State) PostItem {
			it.Liked, it.Post.LikeCount = st.Active, st.Count
			return it
		},
	}
}

// PostMutation sends the viewer's intent through the interaction service.
func PostMutation(svc services.InteractionService, viewerID uuid.UUID, kind content.InteractionKind) Mutation[PostItem] {
	return func(ctx context.Context, it PostItem, active bool) (int64, error) {
		ref := content.Ref{Kind: it.Post.RefKind(), ID: it.Post.ID}
		change, err := svc.Set(ctx, viewerID, ref, kind, active)
		if err != nil {
			return -1, err
		}
		return change.Count, nil
	}
}

// NewPostReconciler wires one interaction kind for one viewer across the
// given post collections.
func NewPostReconciler(log *logger.Logger, svc services.InteractionService, viewerID uuid.UUID, kind content.InteractionKind, copies ...*Collection[PostItem]) (*Reconciler[PostItem], error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: interaction %q", services.ErrInvalidKind, kind)
	}
	return NewReconciler(log, string(kind), PostKey, PostLens(kind), PostMutation(svc, viewerID, kind), copies...), nil
}

// NewPostCollection builds a collection of PostItems.
func NewPostCollection(name string, items ...PostItem) *Collection[PostItem] {
	return NewCollection(name, PostKey, items...)
}
