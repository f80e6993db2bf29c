package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lumen-backend/internal/data/repos"
	contentrepo "github.com/yungbote/lumen-backend/internal/data/repos/content"
	jobsrepo "github.com/yungbote/lumen-backend/internal/data/repos/jobs"
	ledgerrepo "github.com/yungbote/lumen-backend/internal/data/repos/ledger"
	sessionsrepo "github.com/yungbote/lumen-backend/internal/data/repos/sessions"
	"github.com/yungbote/lumen-backend/internal/data/repos/testutil"
	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/domain/generation"
	gen "github.com/yungbote/lumen-backend/internal/generation"
	"github.com/yungbote/lumen-backend/internal/generation/stream"
	"github.com/yungbote/lumen-backend/internal/loader"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
	"github.com/yungbote/lumen-backend/internal/realtime"
)

// fakeGenerator replays a fixed frame script. With block set, Generate
// waits for it to close (or ctx) before emitting anything.
type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	reqs    []gen.Request
	frames  []stream.Frame
	err     error
	block   chan struct{}
	started chan struct{}
}

func (g *fakeGenerator) script(frames ...stream.Frame) {
	g.mu.Lock()
	g.frames = frames
	g.err = nil
	g.mu.Unlock()
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *fakeGenerator) Generate(ctx context.Context, req gen.Request, onFrame func(stream.Frame) error) (stream.Result, error) {
	g.mu.Lock()
	g.calls++
	g.reqs = append(g.reqs, req)
	frames, failErr, block, started := g.frames, g.err, g.block, g.started
	g.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return stream.Result{}, ctx.Err()
		}
	}
	var res stream.Result
	if failErr != nil {
		return res, failErr
	}
	for _, f := range frames {
		if onFrame != nil {
			if err := onFrame(f); err != nil {
				return res, err
			}
		}
		switch f.Type {
		case stream.FrameStatus:
			res.StatusFrames++
		case stream.FrameComplete:
			res.Final = f
			return res, nil
		case stream.FrameError:
			res.Final = f
			return res, &stream.RemoteError{Message: f.Message}
		}
	}
	return res, stream.ErrNoTerminalFrame
}

func statusFrame(msg string) stream.Frame {
	return stream.Frame{Type: stream.FrameStatus, Message: msg}
}

func completeFrame(html string) stream.Frame {
	return stream.Frame{Type: stream.FrameComplete, HTML: html}
}

func errorFrame(msg string) stream.Frame {
	return stream.Frame{Type: stream.FrameError, Message: msg}
}

type notified struct {
	Event   realtime.Event
	Job     generation.GenerationJob
	Message string
	State   *SessionState
	Balance int64
	Change  InteractionChange
	Post    *content.Post
}

// recordingNotifier keeps every notification in call order.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notified
}

func (n *recordingNotifier) add(ev notified) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) byEvent(event realtime.Event) []notified {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notified
	for _, ev := range n.events {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

func (n *recordingNotifier) JobUpdated(_ context.Context, job *generation.GenerationJob) {
	n.add(notified{Event: realtime.EventJobUpdated, Job: *job})
}

func (n *recordingNotifier) JobProgress(_ context.Context, job *generation.GenerationJob, message string) {
	n.add(notified{Event: realtime.EventJobProgress, Job: *job, Message: message})
}

func (n *recordingNotifier) SessionUpdated(_ context.Context, _ uuid.UUID, state *SessionState) {
	n.add(notified{Event: realtime.EventSessionUpdated, State: state})
}

func (n *recordingNotifier) SessionFrame(_ context.Context, _ uuid.UUID, frame any) {
	msg := ""
	if f, ok := frame.(stream.Frame); ok {
		msg = f.Message
	}
	n.add(notified{Event: realtime.EventSessionFrame, Message: msg})
}

func (n *recordingNotifier) BalanceUpdated(_ context.Context, _ uuid.UUID, balance int64) {
	n.add(notified{Event: realtime.EventBalanceUpdated, Balance: balance})
}

func (n *recordingNotifier) PostUpdated(_ context.Context, post *content.Post) {
	n.add(notified{Event: realtime.EventPostUpdated, Post: post})
}

func (n *recordingNotifier) PostDeleted(_ context.Context, post *content.Post) {
	n.add(notified{Event: realtime.EventPostDeleted, Post: post})
}

func (n *recordingNotifier) InteractionChanged(_ context.Context, _ uuid.UUID, change InteractionChange) {
	n.add(notified{Event: realtime.EventInteractionChanged, Change: change})
}

type fixture struct {
	db           *gorm.DB
	log          *logger.Logger
	jobs         repos.GenerationJobRepo
	sessions     repos.SessionRepo
	turns        repos.TurnRepo
	projects     repos.ProjectRepo
	posts        repos.PostRepo
	interactions repos.InteractionRepo
	artifactRows repos.ArtifactRepo
	balances     repos.TokenBalanceRepo
	notify       *recordingNotifier
	ledger       LedgerService
	artifacts    ArtifactStore
	gen          *fakeGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	f := &fixture{
		db:           db,
		log:          log,
		jobs:         jobsrepo.NewGenerationJobRepo(db, log),
		sessions:     sessionsrepo.NewSessionRepo(db, log),
		turns:        sessionsrepo.NewTurnRepo(db, log),
		projects:     contentrepo.NewProjectRepo(db, log),
		posts:        contentrepo.NewPostRepo(db, log),
		interactions: contentrepo.NewInteractionRepo(db, log),
		artifactRows: contentrepo.NewArtifactRepo(db, log),
		balances:     ledgerrepo.NewTokenBalanceRepo(db, log),
		notify:       &recordingNotifier{},
		gen:          &fakeGenerator{},
	}
	f.ledger = NewLedgerService(log, f.balances, DefaultPricing(), f.notify)
	f.artifacts = NewArtifactStore(db, log, nil, f.artifactRows)
	return f
}

func (f *fixture) fund(t *testing.T, owner uuid.UUID, balance int64) {
	t.Helper()
	if err := f.balances.Set(dbctx.Context{Ctx: context.Background()}, owner, balance); err != nil {
		t.Fatalf("set balance: %v", err)
	}
}

// instantLoader never sleeps between attempts.
func instantLoader() loader.Options {
	return loader.Options{
		MaxAttempts: 2,
		After: func(time.Duration) (<-chan time.Time, func() bool) {
			ch := make(chan time.Time, 1)
			ch <- time.Now()
			return ch, func() bool { return true }
		},
	}
}

func (f *fixture) runner() JobRunner {
	return NewJobRunner(JobRunnerDeps{
		Log:       f.log,
		Jobs:      f.jobs,
		Generator: f.gen,
		Artifacts: f.artifacts,
		Ledger:    f.ledger,
		Notify:    f.notify,
	})
}

func (f *fixture) jobService(runner JobRunner) JobService {
	return NewJobService(JobServiceDeps{
		DB:        f.db,
		Log:       f.log,
		Jobs:      f.jobs,
		Posts:     f.posts,
		Runner:    runner,
		Ledger:    f.ledger,
		Notify:    f.notify,
		Artifacts: f.artifacts,
		Loader:    instantLoader(),
	})
}

func (f *fixture) registry() *SessionRegistry {
	return NewSessionRegistry(SessionRegistryDeps{
		DB:        f.db,
		Log:       f.log,
		Sessions:  f.sessions,
		Turns:     f.turns,
		Projects:  f.projects,
		Posts:     f.posts,
		Generator: f.gen,
		Ledger:    f.ledger,
		Notify:    f.notify,
		Loader:    instantLoader(),
	})
}

func (f *fixture) job(t *testing.T, id uuid.UUID) *generation.GenerationJob {
	t.Helper()
	job, err := f.jobs.GetByID(dbctx.Context{Ctx: context.Background()}, id)
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	return job
}
