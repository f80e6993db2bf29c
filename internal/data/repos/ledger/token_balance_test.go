package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/lumen-backend/internal/data/repos/testutil"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
)

func TestTokenBalanceRepo(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewTokenBalanceRepo(db, testutil.Logger(t))
	owner := uuid.New()

	got, err := repo.Get(dbc, owner)
	if err != nil || got != 0 {
		t.Fatalf("Get unknown owner: want=0 got=%d err=%v", got, err)
	}
	if err := repo.Set(dbc, owner, 7); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := repo.Set(dbc, owner, 3); err != nil {
		t.Fatalf("Set again: %v", err)
	}
	got, err = repo.Get(dbc, owner)
	if err != nil || got != 3 {
		t.Fatalf("Get: want=3 got=%d err=%v", got, err)
	}
}
