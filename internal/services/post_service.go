package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lumen-backend/internal/data/repos"
	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

// PostDeleteListener is told about deleted posts so live session state can
// drop its published link.
type PostDeleteListener interface {
	OnPostDeleted(post *content.Post)
}

type PostService interface {
	Get(ctx context.Context, postID uuid.UUID) (*content.Post, error)
	ListByOwner(ctx context.Context, ownerUserID uuid.UUID, limit int) ([]*content.Post, error)
	UpdateCaption(ctx context.Context, ownerUserID, postID uuid.UUID, caption string) (*content.Post, error)
	// Delete removes the post only. Its project stays and can be published again.
	Delete(ctx context.Context, ownerUserID, postID uuid.UUID) error
}

type postService struct {
	db       *gorm.DB
	log      *logger.Logger
	posts    repos.PostRepo
	notify   Notifier
	listener PostDeleteListener
}

func NewPostService(db *gorm.DB, baseLog *logger.Logger, posts repos.PostRepo, notify Notifier, listener PostDeleteListener) PostService {
	return &postService{
		db:       db,
		log:      baseLog.With("service", "PostService"),
		posts:    posts,
		notify:   notify,
		listener: listener,
	}
}

func (s *postService) Get(ctx context.Context, postID uuid.UUID) (*content.Post, error) {
	post, err := s.posts.GetByID(dbctx.Context{Ctx: ctx}, postID)
	if err != nil {
		if errors.Is(err, repos.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return post, nil
}

func (s *postService) ListByOwner(ctx context.Context, ownerUserID uuid.UUID, limit int) ([]*content.Post, error) {
	return s.posts.ListByOwner(dbctx.Context{Ctx: ctx}, ownerUserID, limit)
}

func (s *postService) owned(ctx context.Context, ownerUserID, postID uuid.UUID) (*content.Post, error) {
	post, err := s.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.OwnerUserID != ownerUserID {
		return nil, ErrForbidden
	}
	return post, nil
}

func (s *postService) UpdateCaption(ctx context.Context, ownerUserID, postID uuid.UUID, caption string) (*content.Post, error) {
	if _, err := s.owned(ctx, ownerUserID, postID); err != nil {
		return nil, err
	}
	if err := s.posts.UpdateCaption(dbctx.Context{Ctx: ctx}, postID, strings.TrimSpace(caption)); err != nil {
		if errors.Is(err, repos.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	post, err := s.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if s.notify != nil {
		s.notify.PostUpdated(ctx, post)
	}
	return post, nil
}

func (s *postService) Delete(ctx context.Context, ownerUserID, postID uuid.UUID) error {
	post, err := s.owned(ctx, ownerUserID, postID)
	if err != nil {
		return err
	}
	if err := s.posts.Delete(dbctx.Context{Ctx: ctx}, postID); err != nil {
		if errors.Is(err, repos.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.log.Info("Post deleted", "post_id", postID, "project_id", post.ProjectID)
	if s.listener != nil {
		s.listener.OnPostDeleted(post)
	}
	if s.notify != nil {
		s.notify.PostDeleted(ctx, post)
	}
	return nil
}
