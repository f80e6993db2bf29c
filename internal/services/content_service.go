package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/lumen-backend/internal/data/repos"
	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/domain/generation"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

// ContentCard is what a feed or detail view renders for one Ref. Exactly one
// of Post, Project, Job is set, matching Ref.Kind.
type ContentCard struct {
	Ref          content.Ref               `json:"ref"`
	OwnerUserID  uuid.UUID                 `json:"owner_user_id"`
	Title        string                    `json:"title"`
	Interactable bool                      `json:"interactable"`
	Post         *content.Post             `json:"post,omitempty"`
	Project      *content.Project          `json:"project,omitempty"`
	Job          *generation.GenerationJob `json:"job,omitempty"`
}

type ContentService interface {
	Resolve(ctx context.Context, viewerID uuid.UUID, ref content.Ref) (*ContentCard, error)
}

type contentService struct {
	log      *logger.Logger
	posts    repos.PostRepo
	projects repos.ProjectRepo
	jobs     repos.GenerationJobRepo
}

func NewContentService(baseLog *logger.Logger, posts repos.PostRepo, projects repos.ProjectRepo, jobs repos.GenerationJobRepo) ContentService {
	return &contentService{
		log:      baseLog.With("service", "ContentService"),
		posts:    posts,
		projects: projects,
		jobs:     jobs,
	}
}

func notFound(err error) error {
	if errors.Is(err, repos.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Resolve loads the record behind ref. Posts are public; drafts (projects and
// unpublished simulations) are visible to their owner only.
func (s *contentService) Resolve(ctx context.Context, viewerID uuid.UUID, ref content.Ref) (*ContentCard, error) {
	dbc := dbctx.Context{Ctx: ctx}
	card := &ContentCard{Ref: ref, Interactable: ref.Interactable()}

	switch ref.Kind {
	case content.RefPost, content.RefSimulationPost:
		post, err := s.posts.GetByID(dbc, ref.ID)
		if err != nil {
			return nil, notFound(err)
		}
		if post.RefKind() != ref.Kind {
			return nil, ErrNotFound
		}
		card.Post = post
		card.OwnerUserID = post.OwnerUserID
		card.Title = post.Caption

	case content.RefProject:
		project, err := s.projects.GetByID(dbc, ref.ID)
		if err != nil {
			return nil, notFound(err)
		}
		if project.OwnerUserID != viewerID {
			return nil, ErrForbidden
		}
		card.Project = project
		card.OwnerUserID = project.OwnerUserID
		card.Title = project.Title

	case content.RefSimulation:
		job, err := s.jobs.GetByID(dbc, ref.ID)
		if err != nil {
			return nil, notFound(err)
		}
		if job.Kind != generation.KindSimulation {
			return nil, ErrNotFound
		}
		if job.OwnerUserID != viewerID {
			return nil, ErrForbidden
		}
		card.Job = job
		card.OwnerUserID = job.OwnerUserID
		card.Title = job.Prompt

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, ref.Kind)
	}
	return card, nil
}
