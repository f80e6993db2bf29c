package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/domain/generation"
	"github.com/yungbote/lumen-backend/internal/observability"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
	"github.com/yungbote/lumen-backend/internal/realtime"
	"github.com/yungbote/lumen-backend/internal/realtime/bus"
)

// Notifier publishes every durable mutation (and the ephemeral progress
// frames) onto the realtime bus. Publishing is best effort: failures are
// logged, never returned to the writer that already committed.
type Notifier interface {
	JobUpdated(ctx context.Context, job *generation.GenerationJob)
	JobProgress(ctx context.Context, job *generation.GenerationJob, message string)
	SessionUpdated(ctx context.Context, ownerUserID uuid.UUID, state *SessionState)
	SessionFrame(ctx context.Context, sessionID uuid.UUID, frame any)
	BalanceUpdated(ctx context.Context, ownerUserID uuid.UUID, balance int64)
	PostUpdated(ctx context.Context, post *content.Post)
	PostDeleted(ctx context.Context, post *content.Post)
	InteractionChanged(ctx context.Context, userID uuid.UUID, change InteractionChange)
}

type notifier struct {
	bus bus.Bus
	log *logger.Logger
}

func NewNotifier(b bus.Bus, baseLog *logger.Logger) Notifier {
	return &notifier{bus: b, log: baseLog.With("service", "Notifier")}
}

func (n *notifier) publish(ctx context.Context, channel string, event realtime.Event, data any) {
	if n == nil || n.bus == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	msg, err := realtime.NewMessage(channel, event, data)
	if err != nil {
		n.log.Warn("Realtime message encode failed", "channel", channel, "event", event, "error", err)
		return
	}
	if err := n.bus.Publish(context.WithoutCancel(ctx), msg); err != nil {
		n.log.Warn("Realtime publish failed", "channel", channel, "event", event, "error", err)
		observability.Current().IncPublishError(string(event))
	}
}

func (n *notifier) JobUpdated(ctx context.Context, job *generation.GenerationJob) {
	if job == nil {
		return
	}
	data := map[string]any{"job": job}
	n.publish(ctx, realtime.JobChannel(job.ID), realtime.EventJobUpdated, data)
	n.publish(ctx, realtime.UserChannel(job.OwnerUserID), realtime.EventJobUpdated, data)
}

func (n *notifier) JobProgress(ctx context.Context, job *generation.GenerationJob, message string) {
	if job == nil {
		return
	}
	n.publish(ctx, realtime.JobChannel(job.ID), realtime.EventJobProgress, map[string]any{
		"job_id":      job.ID,
		"retry_count": job.RetryCount,
		"message":     message,
	})
}

func (n *notifier) SessionUpdated(ctx context.Context, ownerUserID uuid.UUID, state *SessionState) {
	if state == nil || state.Session == nil {
		return
	}
	n.publish(ctx, realtime.SessionChannel(state.Session.ID), realtime.EventSessionUpdated, map[string]any{"session": state})
}

func (n *notifier) SessionFrame(ctx context.Context, sessionID uuid.UUID, frame any) {
	n.publish(ctx, realtime.SessionChannel(sessionID), realtime.EventSessionFrame, map[string]any{
		"session_id": sessionID,
		"frame":      frame,
	})
}

func (n *notifier) BalanceUpdated(ctx context.Context, ownerUserID uuid.UUID, balance int64) {
	n.publish(ctx, realtime.UserChannel(ownerUserID), realtime.EventBalanceUpdated, map[string]any{
		"balance": balance,
	})
}

func (n *notifier) PostUpdated(ctx context.Context, post *content.Post) {
	if post == nil {
		return
	}
	n.publish(ctx, realtime.UserChannel(post.OwnerUserID), realtime.EventPostUpdated, map[string]any{"post": post})
}

func (n *notifier) PostDeleted(ctx context.Context, post *content.Post) {
	if post == nil {
		return
	}
	n.publish(ctx, realtime.UserChannel(post.OwnerUserID), realtime.EventPostDeleted, map[string]any{
		"post_id":    post.ID,
		"project_id": post.ProjectID,
	})
}

func (n *notifier) InteractionChanged(ctx context.Context, userID uuid.UUID, change InteractionChange) {
	n.publish(ctx, realtime.UserChannel(userID), realtime.EventInteractionChanged, change)
}
