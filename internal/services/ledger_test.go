package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/lumen-backend/internal/generation/stream"
	"github.com/yungbote/lumen-backend/internal/realtime"
)

func TestLoadPricingFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	raw := []byte("min_balance:\n  simulation: 7\n  VIDEO: 30\n  podcast: 3\n")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write pricing: %v", err)
	}
	t.Setenv("GENERATION_PRICING_FILE", path)

	p, err := LoadPricing(newFixture(t).log)
	if err != nil {
		t.Fatalf("LoadPricing: %v", err)
	}
	want := map[string]int64{OpCourseTurn: 1, OpSimulation: 7, OpVideo: 30}
	for op, v := range want {
		if got := p.Minimum(op); got != v {
			t.Fatalf("%s: want=%d got=%d", op, v, got)
		}
	}
	if got := p.Minimum("podcast"); got != 0 {
		t.Fatalf("unknown key: want=0 got=%d", got)
	}
}

func TestLoadPricingRejectsNegative(t *testing.T) {
	if _, err := parsePricing([]byte("min_balance:\n  video: -1\n"), DefaultPricing(), nil); err == nil {
		t.Fatalf("negative minimum: want error")
	}
	if _, err := parsePricing([]byte("min_balance: [1, 2"), DefaultPricing(), nil); err == nil {
		t.Fatalf("bad yaml: want error")
	}
}

func TestLedgerRequireAndRefresh(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	ctx := context.Background()

	if err := f.ledger.Require(ctx, owner, OpCourseTurn); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("no balance row: want=ErrInsufficientBalance got=%v", err)
	}
	f.fund(t, owner, 5)
	bal, err := f.ledger.Refresh(ctx, owner)
	if err != nil || bal != 5 {
		t.Fatalf("Refresh: want=5 got=%d err=%v", bal, err)
	}
	if err := f.ledger.Require(ctx, owner, OpSimulation); err != nil {
		t.Fatalf("Require simulation at 5: %v", err)
	}
	if err := f.ledger.Require(ctx, owner, OpVideo); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("Require video at 5: want=ErrInsufficientBalance got=%v", err)
	}
	events := f.notify.byEvent(realtime.EventBalanceUpdated)
	if len(events) != 1 || events[0].Balance != 5 {
		t.Fatalf("balance events: got=%+v", events)
	}
}

func TestArtifactStoreInlineAndURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, subject := uuid.New(), uuid.New()

	ref, err := f.artifacts.Put(ctx, owner, subject, 0, stream.Frame{Type: stream.FrameComplete, Content: []byte(`{"pages":3}`)})
	if err != nil {
		t.Fatalf("Put content: %v", err)
	}
	art, err := f.artifacts.Open(ctx, ref)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	body, _ := io.ReadAll(art.Body)
	_ = art.Body.Close()
	if string(body) != `{"pages":3}` || art.ContentType != "application/json" {
		t.Fatalf("inline artifact: body=%q type=%q", body, art.ContentType)
	}

	ref, err = f.artifacts.Put(ctx, owner, subject, 1, stream.Frame{Type: stream.FrameComplete, URL: "https://cdn.example.com/v.mp4"})
	if err != nil {
		t.Fatalf("Put url: %v", err)
	}
	if ref != "https://cdn.example.com/v.mp4" {
		t.Fatalf("url ref: got=%q", ref)
	}
	art, err = f.artifacts.Open(ctx, ref)
	if err != nil || art.RedirectURL != ref {
		t.Fatalf("Open url: got=%+v err=%v", art, err)
	}

	for _, bad := range []string{"", "artifact:nope", "artifact:" + uuid.NewString(), "gs://bucket/key", "ftp://x"} {
		if _, err := f.artifacts.Open(ctx, bad); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Open(%q): want=ErrNotFound got=%v", bad, err)
		}
	}
}
