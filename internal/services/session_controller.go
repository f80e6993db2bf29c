package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/lumen-backend/internal/data/repos"
	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/domain/generation"
	"github.com/yungbote/lumen-backend/internal/domain/sessions"
	gen "github.com/yungbote/lumen-backend/internal/generation"
	"github.com/yungbote/lumen-backend/internal/generation/stream"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

// SessionState is a read-only copy of one course session.
type SessionState struct {
	Session     *sessions.Session `json:"session"`
	Turns       []*sessions.Turn  `json:"turns"`
	ProjectID   *uuid.UUID        `json:"project_id,omitempty"`
	Snapshot    string            `json:"snapshot,omitempty"`
	SnapshotSeq int               `json:"snapshot_seq"`
	SavedSeq    int               `json:"saved_seq"`
	Unsaved     bool              `json:"unsaved"`
	Generating  bool              `json:"generating"`
	PostID      *uuid.UUID        `json:"post_id,omitempty"`
}

type sessionDeps struct {
	db        *gorm.DB
	log       *logger.Logger
	sessions  repos.SessionRepo
	turns     repos.TurnRepo
	projects  repos.ProjectRepo
	posts     repos.PostRepo
	generator gen.Generator
	ledger    LedgerService
	notify    Notifier
	// staleAfter is when another replica's in-flight marker is considered
	// abandoned.
	staleAfter time.Duration
}

// SessionController owns the in-memory state of one open course session.
// All mutations go through mu; generating is the per-session in-flight guard.
type SessionController struct {
	deps *sessionDeps

	mu         sync.Mutex
	session    *sessions.Session
	turns      []*sessions.Turn
	project    *content.Project
	post       *content.Post
	generating bool
}

func (c *SessionController) ID() uuid.UUID { return c.session.ID }

func (c *SessionController) OwnerUserID() uuid.UUID { return c.session.OwnerUserID }

// latestAssistant returns the newest assistant turn. Caller holds mu.
func (c *SessionController) latestAssistant() *sessions.Turn {
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].Role == sessions.RoleAssistant {
			return c.turns[i]
		}
	}
	return nil
}

// stateLocked builds the snapshot view. Caller holds mu.
func (c *SessionController) stateLocked() *SessionState {
	sess := *c.session
	st := &SessionState{
		Session:    &sess,
		Turns:      make([]*sessions.Turn, 0, len(c.turns)),
		Generating: c.generating,
	}
	for _, t := range c.turns {
		cp := *t
		st.Turns = append(st.Turns, &cp)
	}
	if last := c.latestAssistant(); last != nil {
		st.Snapshot = last.Content
		st.SnapshotSeq = last.Seq
	}
	if c.project != nil {
		id := c.project.ID
		st.ProjectID = &id
		st.SavedSeq = c.project.SnapshotSeq
	}
	st.Unsaved = st.SnapshotSeq > st.SavedSeq
	if c.post != nil {
		id := c.post.ID
		st.PostID = &id
	}
	return st
}

func (c *SessionController) State() *SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *SessionController) publishState(ctx context.Context) {
	if c.deps.notify == nil {
		return
	}
	c.deps.notify.SessionUpdated(ctx, c.session.OwnerUserID, c.State())
}

// StartTurn runs one generation turn. It is rejected synchronously, before
// any request is issued, when a turn is already in flight (here or on
// another replica) or the owner is below the course_turn minimum.
//
// Once issued, the turn is not tied to ctx: a requester that goes away only
// stops receiving frames, and the result is still committed. onFrame sees
// every frame in arrival order until it first returns an error.
func (c *SessionController) StartTurn(ctx context.Context, prompt string, onFrame func(stream.Frame) error) (*SessionState, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt required", ErrInvalidInput)
	}

	c.mu.Lock()
	if c.generating {
		c.mu.Unlock()
		return nil, ErrGenerationInFlight
	}
	c.generating = true
	sessionID := c.session.ID
	ownerID := c.session.OwnerUserID
	modelHint := c.session.ModelHint
	c.mu.Unlock()

	releaseLocal := func() {
		c.mu.Lock()
		c.generating = false
		c.mu.Unlock()
	}

	if c.deps.ledger != nil {
		if err := c.deps.ledger.Require(ctx, ownerID, OpCourseTurn); err != nil {
			releaseLocal()
			return nil, err
		}
	}

	marker := time.Now()
	claimed, err := c.deps.sessions.BeginGenerating(dbctx.Context{Ctx: ctx}, sessionID, marker, marker.Add(-c.deps.staleAfter))
	if err != nil {
		releaseLocal()
		return nil, fmt.Errorf("claim session: %w", err)
	}
	if !claimed {
		releaseLocal()
		return nil, ErrGenerationInFlight
	}

	ctx, span := otel.Tracer("services").Start(ctx, "services.SessionController.StartTurn")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID.String()))
	runCtx := context.WithoutCancel(ctx)

	release := func() {
		if err := c.deps.sessions.EndGenerating(dbctx.Context{Ctx: runCtx}, sessionID, marker); err != nil {
			c.deps.log.Warn("Clear generating marker failed", "session_id", sessionID, "error", err)
		}
		releaseLocal()
	}

	// Another replica may have run turns since this controller loaded.
	if err := c.reload(runCtx); err != nil {
		release()
		return nil, err
	}
	c.mu.Lock()
	history := make([]gen.HistoryTurn, 0, len(c.turns))
	for _, t := range c.turns {
		history = append(history, gen.HistoryTurn{Role: string(t.Role), Content: t.Content})
	}
	c.mu.Unlock()

	userTurn := &sessions.Turn{SessionID: sessionID, Role: sessions.RoleUser, Content: prompt}
	if err := c.deps.turns.Append(dbctx.Context{Ctx: runCtx}, userTurn); err != nil {
		release()
		return nil, fmt.Errorf("append user turn: %w", err)
	}
	c.mu.Lock()
	c.turns = append(c.turns, userTurn)
	c.mu.Unlock()
	c.publishState(runCtx)

	req := gen.Request{
		SubjectID: sessionID,
		Prompt:    prompt,
		OwnerID:   ownerID,
		ModelHint: modelHint,
		Kind:      string(generation.KindCourseSession),
		History:   history,
	}
	relaying := onFrame != nil
	res, err := c.deps.generator.Generate(runCtx, req, func(f stream.Frame) error {
		if c.deps.notify != nil {
			c.deps.notify.SessionFrame(runCtx, sessionID, f)
		}
		if relaying {
			if err := onFrame(f); err != nil {
				relaying = false
				c.deps.log.Debug("Requester stopped reading frames", "session_id", sessionID, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		release()
		c.deps.log.Warn("Session turn failed", "session_id", sessionID, "error", err)
		c.publishState(runCtx)
		return nil, &GenerationFailedError{SubjectID: sessionID.String(), Cause: err}
	}

	_, artifact := res.Final.Artifact()
	if err := c.commitTurn(runCtx, prompt, artifact); err != nil {
		release()
		c.publishState(runCtx)
		return nil, &GenerationFailedError{SubjectID: sessionID.String(), Cause: err}
	}
	release()

	if c.deps.ledger != nil {
		_, _ = c.deps.ledger.Refresh(runCtx, ownerID)
	}
	c.publishState(runCtx)
	return c.State(), nil
}

// reload refreshes turns and project from the store. A project snapshot
// already newer in memory is kept.
func (c *SessionController) reload(ctx context.Context) error {
	dbc := dbctx.Context{Ctx: ctx}
	turns, err := c.deps.turns.ListBySession(dbc, c.ID())
	if err != nil {
		return fmt.Errorf("load turns: %w", err)
	}
	project, err := c.deps.projects.GetBySession(dbc, c.ID())
	if err != nil && !errors.Is(err, repos.ErrNotFound) {
		return fmt.Errorf("load project: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(turns) >= len(c.turns) {
		c.turns = turns
	}
	if project != nil && (c.project == nil || c.project.ID != project.ID || c.project.SnapshotSeq < project.SnapshotSeq) {
		c.project = project
		pid := project.ID
		c.session.ProjectID = &pid
	}
	return nil
}

// commitTurn records the assistant turn. A session without a project is on
// its first turn: the project is created in the same transaction with this
// artifact as its saved snapshot, so the first result never shows as
// unsaved. Later turns only append and leave saving to Persist.
func (c *SessionController) commitTurn(ctx context.Context, prompt, artifact string) error {
	c.mu.Lock()
	sessionID := c.session.ID
	ownerID := c.session.OwnerUserID
	firstTurn := c.project == nil
	c.mu.Unlock()

	assistant := &sessions.Turn{SessionID: sessionID, Role: sessions.RoleAssistant, Content: artifact}

	if !firstTurn {
		if err := c.deps.turns.Append(dbctx.Context{Ctx: ctx}, assistant); err != nil {
			return fmt.Errorf("append assistant turn: %w", err)
		}
		c.mu.Lock()
		c.turns = append(c.turns, assistant)
		c.mu.Unlock()
		return nil
	}

	var project *content.Project
	err := c.deps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := c.deps.turns.Append(dbc, assistant); err != nil {
			return fmt.Errorf("append assistant turn: %w", err)
		}
		sid := sessionID
		project = &content.Project{
			OwnerUserID: ownerID,
			SessionID:   &sid,
			Title:       projectTitle(prompt),
			Snapshot:    artifact,
			SnapshotSeq: assistant.Seq,
		}
		if err := c.deps.projects.Create(dbc, project); err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		if err := c.deps.sessions.SetProject(dbc, sessionID, project.ID); err != nil {
			return fmt.Errorf("link project: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.turns = append(c.turns, assistant)
	c.project = project
	pid := project.ID
	c.session.ProjectID = &pid
	c.mu.Unlock()
	c.deps.log.Info("Project created from first turn", "session_id", sessionID, "project_id", project.ID)
	return nil
}

func projectTitle(prompt string) string {
	const limit = 80
	prompt = strings.Join(strings.Fields(prompt), " ")
	if utf8.RuneCountInString(prompt) <= limit {
		return prompt
	}
	return string([]rune(prompt)[:limit])
}

// Persist checkpoints the latest completed turn into the project. It is a
// no-op when nothing is unsaved.
func (c *SessionController) Persist(ctx context.Context) (*SessionState, error) {
	c.mu.Lock()
	if c.project == nil {
		c.mu.Unlock()
		return nil, ErrNoSnapshot
	}
	last := c.latestAssistant()
	if last == nil || last.Seq <= c.project.SnapshotSeq {
		st := c.stateLocked()
		c.mu.Unlock()
		return st, nil
	}
	projectID := c.project.ID
	snapshot, seq := last.Content, last.Seq
	c.mu.Unlock()

	if err := c.deps.projects.UpdateSnapshot(dbctx.Context{Ctx: ctx}, projectID, snapshot, seq); err != nil {
		c.deps.log.Warn("Persist failed", "project_id", projectID, "error", err)
		return nil, &PersistFailedError{ProjectID: projectID.String(), Cause: err}
	}

	c.mu.Lock()
	// A newer persist may have landed while we were writing.
	if c.project != nil && c.project.SnapshotSeq < seq {
		c.project.Snapshot = snapshot
		c.project.SnapshotSeq = seq
	}
	st := c.stateLocked()
	c.mu.Unlock()
	c.publishState(ctx)
	return st, nil
}

// Publish copies the saved project snapshot into a new post. A project backs
// at most one post.
func (c *SessionController) Publish(ctx context.Context, caption string) (*content.Post, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.project == nil || c.project.Snapshot == "" {
		return nil, ErrNoSnapshot
	}
	if c.post != nil {
		return nil, ErrAlreadyPublished
	}
	existing, err := c.deps.posts.GetByProject(dbctx.Context{Ctx: ctx}, c.project.ID)
	if err == nil && existing != nil {
		c.post = existing
		return nil, ErrAlreadyPublished
	}
	if err != nil && !errors.Is(err, repos.ErrNotFound) {
		return nil, err
	}

	pid := c.project.ID
	post := &content.Post{
		OwnerUserID: c.session.OwnerUserID,
		Kind:        content.PostCourse,
		ProjectID:   &pid,
		Caption:     strings.TrimSpace(caption),
		Body:        c.project.Snapshot,
	}
	if err := c.deps.posts.Create(dbctx.Context{Ctx: ctx}, post); err != nil {
		if errors.Is(err, repos.ErrConflict) {
			return nil, ErrAlreadyPublished
		}
		return nil, fmt.Errorf("create post: %w", err)
	}
	c.post = post
	if c.deps.notify != nil {
		c.deps.notify.PostUpdated(ctx, post)
		c.deps.notify.SessionUpdated(ctx, c.session.OwnerUserID, c.stateLocked())
	}
	return post, nil
}

func (c *SessionController) postDeleted(postID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.post == nil || c.post.ID != postID {
		return false
	}
	c.post = nil
	return true
}
