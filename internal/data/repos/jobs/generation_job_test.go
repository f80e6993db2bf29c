package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lumen-backend/internal/data/repos/repoerr"
	"github.com/yungbote/lumen-backend/internal/data/repos/testutil"
	"github.com/yungbote/lumen-backend/internal/domain/generation"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
)

func TestGenerationJobRepoLifecycle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewGenerationJobRepo(db, testutil.Logger(t))

	job := &generation.GenerationJob{
		OwnerUserID: uuid.New(),
		Kind:        generation.KindSimulation,
		Prompt:      "pendulum simulator",
	}
	if err := repo.Create(dbc, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.ID == uuid.Nil || job.Status != generation.StatusPending {
		t.Fatalf("Create: id=%s status=%s", job.ID, job.Status)
	}

	ok, err := repo.TransitionStatus(dbc, job.ID, generation.StatusPending, generation.StatusGenerating, nil)
	if err != nil || !ok {
		t.Fatalf("pending->generating: ok=%v err=%v", ok, err)
	}
	// Second sighting of pending loses the race.
	ok, err = repo.TransitionStatus(dbc, job.ID, generation.StatusPending, generation.StatusGenerating, nil)
	if err != nil || ok {
		t.Fatalf("duplicate transition: want ok=false got ok=%v err=%v", ok, err)
	}

	ok, err = repo.TransitionStatus(dbc, job.ID, generation.StatusGenerating, generation.StatusFailed, map[string]interface{}{"last_error": "boom"})
	if err != nil || !ok {
		t.Fatalf("generating->failed: ok=%v err=%v", ok, err)
	}

	ok, err = repo.BeginRetry(dbc, job.ID)
	if err != nil || !ok {
		t.Fatalf("BeginRetry: ok=%v err=%v", ok, err)
	}
	got, err := repo.GetByID(dbc, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != generation.StatusGenerating {
		t.Fatalf("status: want=%s got=%s", generation.StatusGenerating, got.Status)
	}
	if got.RetryCount != 1 {
		t.Fatalf("retry_count: want=1 got=%d", got.RetryCount)
	}
	if got.LastError != "" {
		t.Fatalf("last_error: want empty got=%q", got.LastError)
	}

	ok, err = repo.BeginRetry(dbc, job.ID)
	if err != nil || ok {
		t.Fatalf("BeginRetry from generating: want ok=false got ok=%v err=%v", ok, err)
	}

	list, err := repo.ListByOwner(dbc, job.OwnerUserID, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListByOwner: len=%d err=%v", len(list), err)
	}
}

func TestGenerationJobRepoGetMissing(t *testing.T) {
	db := testutil.DB(t)
	repo := NewGenerationJobRepo(db, testutil.Logger(t))
	_, err := repo.GetByID(dbctx.Context{Ctx: context.Background()}, uuid.New())
	if !errors.Is(err, repoerr.ErrNotFound) {
		t.Fatalf("GetByID: want ErrNotFound got=%v", err)
	}
}

func TestGenerationJobRepoStaleJobs(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewGenerationJobRepo(db, testutil.Logger(t))
	owner := uuid.New()
	longAgo := time.Now().UTC().Add(-2 * time.Hour)

	backdate := func(id uuid.UUID) {
		t.Helper()
		if err := tx.Model(&generation.GenerationJob{}).Where("id = ?", id).UpdateColumn("updated_at", longAgo).Error; err != nil {
			t.Fatalf("backdate: %v", err)
		}
	}
	newJob := func(prompt string) *generation.GenerationJob {
		t.Helper()
		job := &generation.GenerationJob{OwnerUserID: owner, Kind: generation.KindSimulation, Prompt: prompt}
		if err := repo.Create(dbc, job); err != nil {
			t.Fatalf("Create: %v", err)
		}
		return job
	}

	orphan := newJob("orphan")
	backdate(orphan.ID)
	fresh := newJob("fresh")
	stuck := newJob("stuck")
	if ok, err := repo.TransitionStatus(dbc, stuck.ID, generation.StatusPending, generation.StatusGenerating, nil); err != nil || !ok {
		t.Fatalf("claim stuck: ok=%v err=%v", ok, err)
	}
	backdate(stuck.ID)

	cutoff := time.Now().UTC().Add(-time.Hour)
	pending, err := repo.ListStale(dbc, generation.StatusPending, cutoff, 10)
	if err != nil {
		t.Fatalf("ListStale pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != orphan.ID {
		t.Fatalf("stale pending: want=[%s] got=%v (fresh=%s)", orphan.ID, pending, fresh.ID)
	}
	generating, err := repo.ListStale(dbc, generation.StatusGenerating, cutoff, 10)
	if err != nil || len(generating) != 1 || generating[0].ID != stuck.ID {
		t.Fatalf("stale generating: got=%v err=%v", generating, err)
	}

	// A heartbeat after the cutoff keeps the job alive.
	if err := repo.Heartbeat(dbc, stuck.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if ok, err := repo.ExpireGenerating(dbc, stuck.ID, cutoff, "interrupted"); err != nil || ok {
		t.Fatalf("expire after heartbeat: want ok=false got ok=%v err=%v", ok, err)
	}
	backdate(stuck.ID)
	if ok, err := repo.ExpireGenerating(dbc, stuck.ID, cutoff, "interrupted"); err != nil || !ok {
		t.Fatalf("expire: ok=%v err=%v", ok, err)
	}
	got, err := repo.GetByID(dbc, stuck.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != generation.StatusFailed || got.LastError != "interrupted" {
		t.Fatalf("expired job: status=%s last_error=%q", got.Status, got.LastError)
	}
	if ok, _ := repo.BeginRetry(dbc, stuck.ID); !ok {
		t.Fatalf("expired job must be retryable")
	}
}
