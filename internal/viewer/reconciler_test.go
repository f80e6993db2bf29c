package viewer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type card struct {
	ID    string
	Liked bool
	Likes int64
}

func cardKey(c card) string { return c.ID }

var cardLens = Lens[card]{
	Get: func(c card) State { return State{Active: c.Liked, Count: c.Likes} },
	Set: func(c card, st State) card {
		c.Liked, c.Likes = st.Active, st.Count
		return c
	},
}

// copiesOf builds n collections that all hold the same card plus a filler.
func copiesOf(n int, c card) []*Collection[card] {
	out := make([]*Collection[card], 0, n)
	for i := 0; i < n; i++ {
		out = append(out, NewCollection("copy", cardKey, card{ID: "other"}, c))
	}
	return out
}

func assertEvery(t *testing.T, copies []*Collection[card], key string, want State) {
	t.Helper()
	for i, c := range copies {
		got, ok := c.Get(key)
		if !ok {
			t.Fatalf("copy %d: %s missing", i, key)
		}
		if st := cardLens.Get(got); st != want {
			t.Fatalf("copy %d: want=%+v got=%+v", i, want, st)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestToggleAppliesToEveryCopyImmediately(t *testing.T) {
	copies := copiesOf(3, card{ID: "p1", Likes: 10})
	var sawDuringCall []State
	mutate := func(_ context.Context, c card, active bool) (int64, error) {
		if !active {
			t.Fatalf("intent: want=true got=false")
		}
		for _, col := range copies {
			it, _ := col.Get("p1")
			sawDuringCall = append(sawDuringCall, cardLens.Get(it))
		}
		return 11, nil
	}
	r := NewReconciler(nil, "like", cardKey, cardLens, mutate, copies...)

	out, err := r.Toggle(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	for i, st := range sawDuringCall {
		if st != (State{Active: true, Count: 11}) {
			t.Fatalf("copy %d before response: got=%+v", i, st)
		}
	}
	if out.Superseded || out.State != (State{Active: true, Count: 11}) {
		t.Fatalf("outcome: got=%+v", out)
	}
	assertEvery(t, copies, "p1", State{Active: true, Count: 11})
	if other, _ := copies[0].Get("other"); other.Liked || other.Likes != 0 {
		t.Fatalf("unrelated card touched: %+v", other)
	}
}

func TestToggleReconcilesServerCount(t *testing.T) {
	copies := copiesOf(2, card{ID: "p1", Likes: 10})
	r := NewReconciler(nil, "like", cardKey, cardLens, func(context.Context, card, bool) (int64, error) {
		return 42, nil
	}, copies...)
	if _, err := r.Toggle(context.Background(), "p1"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	assertEvery(t, copies, "p1", State{Active: true, Count: 42})

	r = NewReconciler(nil, "like", cardKey, cardLens, func(context.Context, card, bool) (int64, error) {
		return -1, nil
	}, copies...)
	if _, err := r.Toggle(context.Background(), "p1"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	assertEvery(t, copies, "p1", State{Active: false, Count: 41})
}

func TestToggleRevertsOnFailure(t *testing.T) {
	copies := copiesOf(3, card{ID: "p1", Likes: 10})
	boom := errors.New("network down")
	r := NewReconciler(nil, "like", cardKey, cardLens, func(context.Context, card, bool) (int64, error) {
		return -1, boom
	}, copies...)

	out, err := r.Toggle(context.Background(), "p1")
	if !errors.Is(err, ErrInteractionFailed) || !errors.Is(err, boom) {
		t.Fatalf("Toggle: want ErrInteractionFailed wrapping cause, got=%v", err)
	}
	if out.State != (State{Active: false, Count: 10}) {
		t.Fatalf("outcome: got=%+v", out)
	}
	assertEvery(t, copies, "p1", State{Active: false, Count: 10})
}

func TestToggleUnknownSubject(t *testing.T) {
	r := NewReconciler(nil, "like", cardKey, cardLens, func(context.Context, card, bool) (int64, error) {
		t.Fatalf("mutation issued for unknown subject")
		return 0, nil
	}, copiesOf(1, card{ID: "p1"})...)
	if _, err := r.Toggle(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want=ErrNotFound got=%v", err)
	}
}

func TestSetSameIntentIsNoop(t *testing.T) {
	calls := 0
	copies := copiesOf(1, card{ID: "p1", Liked: true, Likes: 3})
	r := NewReconciler(nil, "like", cardKey, cardLens, func(context.Context, card, bool) (int64, error) {
		calls++
		return 3, nil
	}, copies...)
	out, err := r.Set(context.Background(), "p1", true)
	if err != nil || out.State != (State{Active: true, Count: 3}) {
		t.Fatalf("Set: out=%+v err=%v", out, err)
	}
	if calls != 0 {
		t.Fatalf("calls: want=0 got=%d", calls)
	}
}

// scripted blocks each mutation until its release channel fires.
type scripted struct {
	mu      sync.Mutex
	intents []bool
	started chan bool
	replies []chan reply
}

type reply struct {
	count int64
	err   error
}

func newScripted(n int) *scripted {
	s := &scripted{started: make(chan bool, n)}
	for i := 0; i < n; i++ {
		s.replies = append(s.replies, make(chan reply, 1))
	}
	return s
}

func (s *scripted) mutate(ctx context.Context, _ card, active bool) (int64, error) {
	s.mu.Lock()
	idx := len(s.intents)
	s.intents = append(s.intents, active)
	s.mu.Unlock()
	s.started <- active
	select {
	case r := <-s.replies[idx]:
		return r.count, r.err
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

func (s *scripted) calls() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.intents...)
}

type result struct {
	out Outcome
	err error
}

func TestNewerToggleSupersedesStaleResponse(t *testing.T) {
	copies := copiesOf(2, card{ID: "p1", Likes: 10})
	s := newScripted(2)
	r := NewReconciler(nil, "like", cardKey, cardLens, s.mutate, copies...)
	ctx := context.Background()

	first := make(chan result, 1)
	go func() {
		out, err := r.Toggle(ctx, "p1")
		first <- result{out, err}
	}()
	if intent := <-s.started; !intent {
		t.Fatalf("first intent: want=true")
	}

	second := make(chan result, 1)
	go func() {
		out, err := r.Toggle(ctx, "p1")
		second <- result{out, err}
	}()
	waitFor(t, func() bool {
		st, _ := r.State("p1")
		return st == State{Active: false, Count: 10}
	})

	// The stale response reports the like; local intent must stay unliked.
	s.replies[0] <- reply{count: 11}
	res := <-first
	if res.err != nil || !res.out.Superseded {
		t.Fatalf("first: want superseded, got=%+v err=%v", res.out, res.err)
	}
	assertEvery(t, copies, "p1", State{Active: false, Count: 10})

	if intent := <-s.started; intent {
		t.Fatalf("second intent: want=false")
	}
	s.replies[1] <- reply{count: 10}
	res = <-second
	if res.err != nil || res.out.Superseded || res.out.State != (State{Active: false, Count: 10}) {
		t.Fatalf("second: got=%+v err=%v", res.out, res.err)
	}
	assertEvery(t, copies, "p1", State{Active: false, Count: 10})
	if got := s.calls(); len(got) != 2 || got[0] != true || got[1] != false {
		t.Fatalf("intents in order: got=%v", got)
	}
}

func TestStaleFailureDoesNotRevertNewerIntent(t *testing.T) {
	copies := copiesOf(2, card{ID: "p1", Likes: 10})
	s := newScripted(2)
	r := NewReconciler(nil, "like", cardKey, cardLens, s.mutate, copies...)
	ctx := context.Background()

	first := make(chan result, 1)
	go func() {
		out, err := r.Toggle(ctx, "p1")
		first <- result{out, err}
	}()
	<-s.started
	second := make(chan result, 1)
	go func() {
		out, err := r.Toggle(ctx, "p1")
		second <- result{out, err}
	}()
	waitFor(t, func() bool {
		st, _ := r.State("p1")
		return !st.Active
	})

	s.replies[0] <- reply{err: errors.New("timeout")}
	if res := <-first; res.err != nil || !res.out.Superseded {
		t.Fatalf("first: want silent supersede, got=%+v err=%v", res.out, res.err)
	}
	assertEvery(t, copies, "p1", State{Active: false, Count: 10})

	<-s.started
	s.replies[1] <- reply{err: errors.New("timeout")}
	res := <-second
	if !errors.Is(res.err, ErrInteractionFailed) {
		t.Fatalf("second: want=ErrInteractionFailed got=%v", res.err)
	}
	// Nothing was confirmed, so the revert lands on the original state.
	assertEvery(t, copies, "p1", State{Active: false, Count: 10})
}

func TestLatestFailureRevertsToLastConfirmed(t *testing.T) {
	copies := copiesOf(1, card{ID: "p1", Likes: 10})
	s := newScripted(2)
	r := NewReconciler(nil, "like", cardKey, cardLens, s.mutate, copies...)
	ctx := context.Background()

	first := make(chan result, 1)
	go func() {
		out, err := r.Toggle(ctx, "p1")
		first <- result{out, err}
	}()
	<-s.started
	second := make(chan result, 1)
	go func() {
		out, err := r.Toggle(ctx, "p1")
		second <- result{out, err}
	}()
	waitFor(t, func() bool {
		st, _ := r.State("p1")
		return !st.Active
	})

	s.replies[0] <- reply{count: 11}
	<-first
	<-s.started
	s.replies[1] <- reply{err: errors.New("rejected")}
	res := <-second
	if !errors.Is(res.err, ErrInteractionFailed) {
		t.Fatalf("second: want=ErrInteractionFailed got=%v", res.err)
	}
	// The server applied the like, so that is what local copies fall back to.
	assertEvery(t, copies, "p1", State{Active: true, Count: 11})
}

func TestObserveIgnoredWhilePending(t *testing.T) {
	copies := copiesOf(2, card{ID: "p1", Likes: 10})
	s := newScripted(1)
	r := NewReconciler(nil, "like", cardKey, cardLens, s.mutate, copies...)

	done := make(chan result, 1)
	go func() {
		out, err := r.Toggle(context.Background(), "p1")
		done <- result{out, err}
	}()
	<-s.started
	if r.Observe("p1", State{Active: false, Count: 99}) {
		t.Fatalf("Observe applied during pending toggle")
	}
	assertEvery(t, copies, "p1", State{Active: true, Count: 11})

	s.replies[0] <- reply{count: 11}
	if res := <-done; res.err != nil {
		t.Fatalf("Toggle: %v", res.err)
	}
	if !r.Observe("p1", State{Active: true, Count: 12}) {
		t.Fatalf("Observe rejected while idle")
	}
	assertEvery(t, copies, "p1", State{Active: true, Count: 12})
}

func TestAttachedCollectionFollowsToggles(t *testing.T) {
	copies := copiesOf(1, card{ID: "p1", Likes: 1})
	r := NewReconciler(nil, "like", cardKey, cardLens, func(context.Context, card, bool) (int64, error) {
		return -1, nil
	}, copies...)
	late := NewCollection("detail", cardKey, card{ID: "p1", Likes: 1})
	r.Attach(late)

	if _, err := r.Toggle(context.Background(), "p1"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	assertEvery(t, append(copies, late), "p1", State{Active: true, Count: 2})
}
