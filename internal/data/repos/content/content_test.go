package content

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/lumen-backend/internal/data/repos/repoerr"
	"github.com/yungbote/lumen-backend/internal/data/repos/testutil"
	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
)

func TestPostRepoUniqueProject(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	log := testutil.Logger(t)
	projects := NewProjectRepo(db, log)
	posts := NewPostRepo(db, log)

	owner := uuid.New()
	project := &content.Project{OwnerUserID: owner, Snapshot: "<h1>A</h1>", SnapshotSeq: 2}
	if err := projects.Create(dbc, project); err != nil {
		t.Fatalf("project Create: %v", err)
	}

	first := &content.Post{OwnerUserID: owner, Kind: content.PostCourse, ProjectID: testutil.PtrUUID(project.ID), Body: project.Snapshot}
	if err := posts.Create(dbc, first); err != nil {
		t.Fatalf("post Create: %v", err)
	}
	second := &content.Post{OwnerUserID: owner, Kind: content.PostCourse, ProjectID: testutil.PtrUUID(project.ID)}
	if err := posts.Create(dbc, second); !errors.Is(err, repoerr.ErrConflict) {
		t.Fatalf("second post: want ErrConflict got=%v", err)
	}

	got, err := posts.GetByProject(dbc, project.ID)
	if err != nil || got.ID != first.ID {
		t.Fatalf("GetByProject: got=%v err=%v", got, err)
	}

	if err := posts.UpdateCaption(dbc, first.ID, "hello"); err != nil {
		t.Fatalf("UpdateCaption: %v", err)
	}
	if err := posts.Delete(dbc, first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := posts.GetByProject(dbc, project.ID); !errors.Is(err, repoerr.ErrNotFound) {
		t.Fatalf("after delete: want ErrNotFound got=%v", err)
	}
	if _, err := projects.GetByID(dbc, project.ID); err != nil {
		t.Fatalf("project survives post delete: %v", err)
	}
}

func TestInteractionRepoIdempotent(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	log := testutil.Logger(t)
	interactions := NewInteractionRepo(db, log)
	posts := NewPostRepo(db, log)

	post := &content.Post{OwnerUserID: uuid.New(), Kind: content.PostSimulation, LikeCount: 10}
	if err := posts.Create(dbc, post); err != nil {
		t.Fatalf("post Create: %v", err)
	}
	user := uuid.New()

	added, err := interactions.Activate(dbc, post.ID, user, content.InteractionLike)
	if err != nil || !added {
		t.Fatalf("Activate: added=%v err=%v", added, err)
	}
	added, err = interactions.Activate(dbc, post.ID, user, content.InteractionLike)
	if err != nil || added {
		t.Fatalf("Activate again: want added=false got added=%v err=%v", added, err)
	}
	active, err := interactions.IsActive(dbc, post.ID, user, content.InteractionLike)
	if err != nil || !active {
		t.Fatalf("IsActive: active=%v err=%v", active, err)
	}

	count, err := posts.AdjustCounter(dbc, post.ID, content.InteractionLike, 1)
	if err != nil || count != 11 {
		t.Fatalf("AdjustCounter: want=11 got=%d err=%v", count, err)
	}

	removed, err := interactions.Deactivate(dbc, post.ID, user, content.InteractionLike)
	if err != nil || !removed {
		t.Fatalf("Deactivate: removed=%v err=%v", removed, err)
	}
	removed, err = interactions.Deactivate(dbc, post.ID, user, content.InteractionLike)
	if err != nil || removed {
		t.Fatalf("Deactivate again: want removed=false got removed=%v err=%v", removed, err)
	}
}
