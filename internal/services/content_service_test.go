package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/domain/generation"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
)

func TestContentResolveEveryKind(t *testing.T) {
	f := newFixture(t)
	svc := NewContentService(f.log, f.posts, f.projects, f.jobs)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	owner := uuid.New()
	stranger := uuid.New()

	project := &content.Project{OwnerUserID: owner, Title: "Rust 101", Snapshot: "<c>", SnapshotSeq: 2}
	if err := f.projects.Create(dbc, project); err != nil {
		t.Fatalf("create project: %v", err)
	}
	pid := project.ID
	coursePost := &content.Post{OwnerUserID: owner, Kind: content.PostCourse, ProjectID: &pid, Caption: "Rust!"}
	if err := f.posts.Create(dbc, coursePost); err != nil {
		t.Fatalf("create post: %v", err)
	}
	job := &generation.GenerationJob{OwnerUserID: owner, Kind: generation.KindSimulation, Prompt: "pendulum"}
	if err := f.jobs.Create(dbc, job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	jid := job.ID
	simPost := &content.Post{OwnerUserID: owner, Kind: content.PostSimulation, JobID: &jid, Caption: "Swing"}
	if err := f.posts.Create(dbc, simPost); err != nil {
		t.Fatalf("create sim post: %v", err)
	}

	cases := []struct {
		name      string
		viewer    uuid.UUID
		ref       content.Ref
		wantTitle string
		wantErr   error
	}{
		{"post", stranger, content.Ref{Kind: content.RefPost, ID: coursePost.ID}, "Rust!", nil},
		{"simulation_post", stranger, content.Ref{Kind: content.RefSimulationPost, ID: simPost.ID}, "Swing", nil},
		{"project owner", owner, content.Ref{Kind: content.RefProject, ID: project.ID}, "Rust 101", nil},
		{"project stranger", stranger, content.Ref{Kind: content.RefProject, ID: project.ID}, "", ErrForbidden},
		{"simulation owner", owner, content.Ref{Kind: content.RefSimulation, ID: job.ID}, "pendulum", nil},
		{"simulation stranger", stranger, content.Ref{Kind: content.RefSimulation, ID: job.ID}, "", ErrForbidden},
		{"post as simulation_post", stranger, content.Ref{Kind: content.RefSimulationPost, ID: coursePost.ID}, "", ErrNotFound},
		{"missing", owner, content.Ref{Kind: content.RefPost, ID: uuid.New()}, "", ErrNotFound},
		{"unknown kind", owner, content.Ref{Kind: "reel", ID: uuid.New()}, "", ErrInvalidKind},
	}
	for _, tc := range cases {
		card, err := svc.Resolve(ctx, tc.viewer, tc.ref)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("%s: want=%v got=%v", tc.name, tc.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if card.Title != tc.wantTitle || card.OwnerUserID != owner {
			t.Fatalf("%s: title want=%q got=%q owner=%s", tc.name, tc.wantTitle, card.Title, card.OwnerUserID)
		}
		if card.Interactable != tc.ref.Interactable() {
			t.Fatalf("%s: interactable want=%v got=%v", tc.name, tc.ref.Interactable(), card.Interactable)
		}
	}
}
