package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lumen-backend/internal/data/repos/repoerr"
	"github.com/yungbote/lumen-backend/internal/data/repos/testutil"
	"github.com/yungbote/lumen-backend/internal/domain/sessions"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
)

func TestSessionAndTurns(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	log := testutil.Logger(t)
	sessionRepo := NewSessionRepo(db, log)
	turnRepo := NewTurnRepo(db, log)

	s := &sessions.Session{OwnerUserID: uuid.New()}
	if err := sessionRepo.Create(dbc, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i, role := range []sessions.TurnRole{sessions.RoleUser, sessions.RoleAssistant, sessions.RoleUser} {
		turn := &sessions.Turn{SessionID: s.ID, Role: role, Content: "c"}
		if err := turnRepo.Append(dbc, turn); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		if turn.Seq != i+1 {
			t.Fatalf("seq: want=%d got=%d", i+1, turn.Seq)
		}
	}

	turns, err := turnRepo.ListBySession(dbc, s.ID)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(turns) != 3 || turns[1].Role != sessions.RoleAssistant {
		t.Fatalf("turns: unexpected %+v", turns)
	}

	projectID := uuid.New()
	if err := sessionRepo.SetProject(dbc, s.ID, projectID); err != nil {
		t.Fatalf("SetProject: %v", err)
	}
	got, err := sessionRepo.GetByID(dbc, s.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ProjectID == nil || *got.ProjectID != projectID {
		t.Fatalf("project_id: want=%s got=%v", projectID, got.ProjectID)
	}

	if err := sessionRepo.SetProject(dbc, uuid.New(), projectID); !errors.Is(err, repoerr.ErrNotFound) {
		t.Fatalf("SetProject missing: want ErrNotFound got=%v", err)
	}
}

func TestSessionGeneratingMarker(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewSessionRepo(db, testutil.Logger(t))

	s := &sessions.Session{OwnerUserID: uuid.New()}
	if err := repo.Create(dbc, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	now := time.Now()
	staleBefore := now.Add(-time.Hour)

	ok, err := repo.BeginGenerating(dbc, s.ID, now, staleBefore)
	if err != nil || !ok {
		t.Fatalf("first Begin: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.BeginGenerating(dbc, s.ID, now.Add(time.Second), staleBefore); err != nil || ok {
		t.Fatalf("second Begin: want ok=false got ok=%v err=%v", ok, err)
	}
	if err := repo.EndGenerating(dbc, s.ID, now); err != nil {
		t.Fatalf("End: %v", err)
	}
	if got, _ := repo.GetByID(dbc, s.ID); got.GeneratingSince != nil {
		t.Fatalf("marker after End: want nil got=%v", got.GeneratingSince)
	}

	// A marker older than staleBefore is taken over, and the old holder's
	// End no longer clears it.
	old := now.Add(-2 * time.Hour)
	if ok, _ := repo.BeginGenerating(dbc, s.ID, old, old.Add(-time.Hour)); !ok {
		t.Fatalf("Begin old marker failed")
	}
	if ok, err := repo.BeginGenerating(dbc, s.ID, now, staleBefore); err != nil || !ok {
		t.Fatalf("takeover: ok=%v err=%v", ok, err)
	}
	if err := repo.EndGenerating(dbc, s.ID, old); err != nil {
		t.Fatalf("End old: %v", err)
	}
	if got, _ := repo.GetByID(dbc, s.ID); got.GeneratingSince == nil {
		t.Fatalf("old holder cleared the new marker")
	}
}
