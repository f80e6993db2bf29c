package genrun

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/lumen-backend/internal/domain/generation"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
	"github.com/yungbote/lumen-backend/internal/realtime"
	"github.com/yungbote/lumen-backend/internal/services"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []services.GenerationRun
	err   error
}

func (f *fakeRunner) OnJobRecord(context.Context, *generation.GenerationJob) {}
func (f *fakeRunner) HandleMessage(context.Context, realtime.Message)        {}
func (f *fakeRunner) Dispatch(context.Context, *generation.GenerationJob) error {
	return nil
}
func (f *fakeRunner) InFlight(uuid.UUID) bool { return false }
func (f *fakeRunner) Wait()                   {}
func (f *fakeRunner) Recover(context.Context) (services.RecoveryReport, error) {
	return services.RecoveryReport{}, nil
}
func (f *fakeRunner) RunRecovery(context.Context, time.Duration) {}

func (f *fakeRunner) Execute(_ context.Context, jobID uuid.UUID, attempt int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, services.GenerationRun{JobID: jobID.String(), Attempt: attempt})
	return f.err
}

func newEnv(t *testing.T, runner *fakeRunner) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	acts := &Activities{Log: logger.NewNop(), Runner: runner}
	env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: services.GenerationWorkflowName})
	env.RegisterActivityWithOptions(acts.Execute, activity.RegisterOptions{Name: services.GenerationActivityName})
	return env
}

func TestWorkflowExecutesAttempt(t *testing.T) {
	runner := &fakeRunner{}
	env := newEnv(t, runner)
	jobID := uuid.New()

	env.ExecuteWorkflow(Workflow, services.GenerationRun{JobID: jobID.String(), Attempt: 2})
	if !env.IsWorkflowCompleted() {
		t.Fatalf("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("Execute calls: want=1 got=%d", len(runner.calls))
	}
	if runner.calls[0].JobID != jobID.String() || runner.calls[0].Attempt != 2 {
		t.Fatalf("Execute args: got=%+v", runner.calls[0])
	}
}

func TestWorkflowDoesNotRetryFailedAttempt(t *testing.T) {
	runner := &fakeRunner{err: errors.New("model exploded")}
	env := newEnv(t, runner)

	env.ExecuteWorkflow(Workflow, services.GenerationRun{JobID: uuid.NewString(), Attempt: 0})
	if !env.IsWorkflowCompleted() {
		t.Fatalf("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err == nil {
		t.Fatalf("workflow error: want failure got=nil")
	}
	if len(runner.calls) != 1 {
		t.Fatalf("Execute calls: want=1 got=%d", len(runner.calls))
	}
}

func TestWorkflowRejectsBadJobID(t *testing.T) {
	runner := &fakeRunner{}
	env := newEnv(t, runner)

	env.ExecuteWorkflow(Workflow, services.GenerationRun{JobID: "not-a-uuid"})
	if err := env.GetWorkflowError(); err == nil {
		t.Fatalf("bad job id: want error")
	}
	if len(runner.calls) != 0 {
		t.Fatalf("Execute calls: want=0 got=%d", len(runner.calls))
	}

	env = newEnv(t, runner)
	env.ExecuteWorkflow(Workflow, services.GenerationRun{JobID: "  "})
	if err := env.GetWorkflowError(); err == nil {
		t.Fatalf("empty job id: want error")
	}
}
