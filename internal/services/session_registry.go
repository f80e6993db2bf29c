package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lumen-backend/internal/data/repos"
	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/domain/sessions"
	gen "github.com/yungbote/lumen-backend/internal/generation"
	"github.com/yungbote/lumen-backend/internal/loader"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

type SessionRegistryDeps struct {
	DB        *gorm.DB
	Log       *logger.Logger
	Sessions  repos.SessionRepo
	Turns     repos.TurnRepo
	Projects  repos.ProjectRepo
	Posts     repos.PostRepo
	Generator gen.Generator
	Ledger    LedgerService
	Notify    Notifier
	Loader    loader.Options
	// StaleAfter bounds how long another replica's in-flight turn blocks
	// this session. Zero means 15 minutes.
	StaleAfter time.Duration
}

type registryEntry struct {
	ctrl *SessionController
	refs int
}

// SessionRegistry hands out one controller per open session id. Open and
// Create acquire a reference; the returned release func gives it back and
// the last release drops the controller.
type SessionRegistry struct {
	deps     *sessionDeps
	log      *logger.Logger
	loadOpts loader.Options

	mu      sync.Mutex
	entries map[uuid.UUID]*registryEntry
}

func NewSessionRegistry(d SessionRegistryDeps) *SessionRegistry {
	log := d.Log.With("service", "SessionRegistry")
	if d.StaleAfter <= 0 {
		d.StaleAfter = 15 * time.Minute
	}
	return &SessionRegistry{
		deps: &sessionDeps{
			db:        d.DB,
			log:       d.Log.With("service", "SessionController"),
			sessions:  d.Sessions,
			turns:     d.Turns,
			projects:  d.Projects,
			posts:     d.Posts,
			generator: d.Generator,
			ledger:    d.Ledger,
			notify:    d.Notify,

			staleAfter: d.StaleAfter,
		},
		log:      log,
		loadOpts: d.Loader,
		entries:  map[uuid.UUID]*registryEntry{},
	}
}

// Create starts a new empty session for the owner.
func (r *SessionRegistry) Create(ctx context.Context, ownerUserID uuid.UUID, modelHint string) (*SessionController, func(), error) {
	if ownerUserID == uuid.Nil {
		return nil, nil, ErrForbidden
	}
	sess := &sessions.Session{OwnerUserID: ownerUserID, ModelHint: strings.TrimSpace(modelHint)}
	if err := r.deps.sessions.Create(dbctx.Context{Ctx: ctx}, sess); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	r.log.Info("Session created", "session_id", sess.ID, "owner_id", ownerUserID)
	ctrl := &SessionController{deps: r.deps, session: sess}
	return r.acquire(ctrl)
}

// Open returns the live controller for sessionID, loading it with the
// resilient loader when this replica has none.
func (r *SessionRegistry) Open(ctx context.Context, ownerUserID, sessionID uuid.UUID) (*SessionController, func(), error) {
	r.mu.Lock()
	if e, ok := r.entries[sessionID]; ok {
		if e.ctrl.OwnerUserID() != ownerUserID {
			r.mu.Unlock()
			return nil, nil, ErrForbidden
		}
		e.refs++
		r.mu.Unlock()
		return e.ctrl, r.releaser(sessionID), nil
	}
	r.mu.Unlock()

	ctrl, err := r.load(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if ctrl.OwnerUserID() != ownerUserID {
		return nil, nil, ErrForbidden
	}
	return r.acquire(ctrl)
}

// acquire registers ctrl unless another Open won the race, in which case the
// existing controller is shared.
func (r *SessionRegistry) acquire(ctrl *SessionController) (*SessionController, func(), error) {
	id := ctrl.ID()
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.refs++
		return e.ctrl, r.releaser(id), nil
	}
	r.entries[id] = &registryEntry{ctrl: ctrl, refs: 1}
	return ctrl, r.releaser(id), nil
}

func (r *SessionRegistry) releaser(id uuid.UUID) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			e, ok := r.entries[id]
			if !ok {
				return
			}
			e.refs--
			if e.refs <= 0 {
				delete(r.entries, id)
			}
		})
	}
}

// Len is the number of live controllers.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *SessionRegistry) load(ctx context.Context, sessionID uuid.UUID) (*SessionController, error) {
	sess, err := loader.Load(ctx, func(ctx context.Context) (*sessions.Session, error) {
		return r.deps.sessions.GetByID(dbctx.Context{Ctx: ctx}, sessionID)
	}, r.loadOpts)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	turns, err := r.deps.turns.ListBySession(dbc, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	ctrl := &SessionController{deps: r.deps, session: sess, turns: turns}

	project, err := r.deps.projects.GetBySession(dbc, sessionID)
	switch {
	case err == nil:
		ctrl.project = project
	case errors.Is(err, repos.ErrNotFound):
		return ctrl, nil
	default:
		return nil, fmt.Errorf("load project: %w", err)
	}

	post, err := r.deps.posts.GetByProject(dbc, project.ID)
	switch {
	case err == nil:
		ctrl.post = post
	case errors.Is(err, repos.ErrNotFound):
	default:
		return nil, fmt.Errorf("load post: %w", err)
	}
	return ctrl, nil
}

// OnPostDeleted clears the published link of any live controller.
func (r *SessionRegistry) OnPostDeleted(post *content.Post) {
	if post == nil || post.ProjectID == nil {
		return
	}
	r.mu.Lock()
	ctrls := make([]*SessionController, 0, len(r.entries))
	for _, e := range r.entries {
		ctrls = append(ctrls, e.ctrl)
	}
	r.mu.Unlock()
	for _, c := range ctrls {
		c.postDeleted(post.ID)
	}
}
