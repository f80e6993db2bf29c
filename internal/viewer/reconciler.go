package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

var (
	ErrNotFound          = errors.New("subject not in any collection")
	ErrInteractionFailed = errors.New("interaction failed")
)

// State is the flag and counter a toggle flips together.
type State struct {
	Active bool  `json:"active"`
	Count  int64 `json:"count"`
}

func (s State) with(active bool) State {
	if s.Active == active {
		return s
	}
	s.Active = active
	if active {
		s.Count++
	} else if s.Count > 0 {
		s.Count--
	}
	return s
}

// Lens reads and writes the toggled State on a subject.
type Lens[T any] struct {
	Get func(T) State
	Set func(T, State) T
}

// Mutation sends the intent (not a flip) to the server. A negative count
// means the server did not report one.
type Mutation[T any] func(ctx context.Context, subject T, active bool) (count int64, err error)

// Outcome is the local state after a toggle settles.
type Outcome struct {
	State State `json:"state"`
	// Superseded is set when a newer toggle on the same subject was issued
	// before this one settled; its response was not applied.
	Superseded bool `json:"superseded"`
}

type pending struct {
	seq       uint64
	inflight  int
	confirmed State
	issue     sync.Mutex
}

// Reconciler applies toggles optimistically across every collection that
// holds the subject, then confirms or reverts once the mutation returns.
// The latest local intent always wins over older responses.
type Reconciler[T any] struct {
	name   string
	log    *logger.Logger
	key    func(T) string
	lens   Lens[T]
	mutate Mutation[T]
	copies []*Collection[T]

	mu      sync.Mutex
	pending map[string]*pending
}

func NewReconciler[T any](log *logger.Logger, name string, key func(T) string, lens Lens[T], mutate Mutation[T], copies ...*Collection[T]) *Reconciler[T] {
	if log == nil {
		log = logger.NewNop()
	}
	return &Reconciler[T]{
		name:    name,
		log:     log.With("component", "Reconciler", "interaction", name),
		key:     key,
		lens:    lens,
		mutate:  mutate,
		copies:  copies,
		pending: map[string]*pending{},
	}
}

// Attach adds a collection, e.g. a page opened after the reconciler.
func (r *Reconciler[T]) Attach(c *Collection[T]) {
	r.mu.Lock()
	r.copies = append(r.copies, c)
	r.mu.Unlock()
}

// State reports the subject's local state from the first collection that
// holds it.
func (r *Reconciler[T]) State(key string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, st, ok := r.lookup(key)
	return st, ok
}

func (r *Reconciler[T]) lookup(key string) (T, State, bool) {
	for _, c := range r.copies {
		if it, ok := c.Get(key); ok {
			return it, r.lens.Get(it), true
		}
	}
	var zero T
	return zero, State{}, false
}

func (r *Reconciler[T]) apply(key string, st State) {
	for _, c := range r.copies {
		c.Update(key, func(it T) T { return r.lens.Set(it, st) })
	}
}

// Toggle flips the subject's flag.
func (r *Reconciler[T]) Toggle(ctx context.Context, key string) (Outcome, error) {
	r.mu.Lock()
	_, st, ok := r.lookup(key)
	r.mu.Unlock()
	if !ok {
		return Outcome{}, ErrNotFound
	}
	return r.Set(ctx, key, !st.Active)
}

// Set moves the subject to the given intent. Local copies change before the
// mutation is issued; mutations for one subject go out in issue order so the
// server ends on the last intent.
func (r *Reconciler[T]) Set(ctx context.Context, key string, active bool) (Outcome, error) {
	r.mu.Lock()
	subject, before, ok := r.lookup(key)
	if !ok {
		r.mu.Unlock()
		return Outcome{}, ErrNotFound
	}
	p := r.pending[key]
	if p == nil {
		if before.Active == active {
			r.mu.Unlock()
			return Outcome{State: before}, nil
		}
		p = &pending{confirmed: before}
		r.pending[key] = p
	}
	next := before.with(active)
	r.apply(key, next)
	subject = r.lens.Set(subject, next)
	p.seq++
	p.inflight++
	mine := p.seq
	r.mu.Unlock()

	p.issue.Lock()
	count, issued, err := r.issue(ctx, subject, active, mine, p)
	p.issue.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	p.inflight--
	latest := p.seq == mine
	if p.inflight == 0 {
		delete(r.pending, key)
	}

	if !issued && err == nil {
		return Outcome{State: r.current(key, next), Superseded: true}, nil
	}
	if err != nil {
		if !latest {
			r.log.Debug("Superseded interaction failed", "key", key, "error", err)
			return Outcome{State: r.current(key, next), Superseded: true}, nil
		}
		r.apply(key, p.confirmed)
		r.log.Warn("Interaction reverted", "key", key, "active", active, "error", err)
		return Outcome{State: p.confirmed}, fmt.Errorf("%w: %s %s: %w", ErrInteractionFailed, r.name, key, err)
	}

	confirmed := State{Active: active, Count: next.Count}
	if count >= 0 {
		confirmed.Count = count
	}
	p.confirmed = confirmed
	if !latest {
		return Outcome{State: r.current(key, next), Superseded: true}, nil
	}
	r.apply(key, confirmed)
	return Outcome{State: confirmed}, nil
}

// issue skips the call when a newer intent already replaced this one while
// it waited for its turn; the newer mutation carries the final word.
func (r *Reconciler[T]) issue(ctx context.Context, subject T, active bool, mine uint64, p *pending) (int64, bool, error) {
	r.mu.Lock()
	stale := p.seq != mine
	r.mu.Unlock()
	if stale {
		return -1, false, nil
	}
	if err := ctx.Err(); err != nil {
		return -1, false, err
	}
	count, err := r.mutate(ctx, subject, active)
	return count, true, err
}

func (r *Reconciler[T]) current(key string, fallback State) State {
	if _, st, ok := r.lookup(key); ok {
		return st
	}
	return fallback
}

// Observe applies a server-pushed state (e.g. a realtime echo). It is
// ignored while a local toggle on the subject is unsettled.
func (r *Reconciler[T]) Observe(key string, st State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.pending[key]; p != nil && p.inflight > 0 {
		return false
	}
	r.apply(key, st)
	return true
}
