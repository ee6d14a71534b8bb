package plan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Swind/go-tick-runner/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bootPlan = `
name: boot
root:
  kind: sequence
  name: boot
  children:
    - name: load
      step: {type: wait, ticks: 2}
    - kind: parallel
      name: checks
      continue_on_failure: true
      children:
        - name: disk
          step: {type: fail, fail_at: 2, message: "no disk"}
        - name: net
          step: {type: wait, ticks: 1}
    - name: finish
      step: {type: wait}
`

func TestParse_NormalizesKinds(t *testing.T) {
	p, err := Parse([]byte(bootPlan))
	require.NoError(t, err)

	assert.Equal(t, "boot", p.Name)
	assert.Equal(t, KindSequence, p.Root.Kind)
	assert.Equal(t, KindTask, p.Root.Children[0].Kind)
	assert.Equal(t, KindParallel, p.Root.Children[1].Kind)

	tasks, groups := p.Count()
	assert.Equal(t, 4, tasks)
	assert.Equal(t, 2, groups)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("name: x\nroot:\n  kind: sequence\n  retries: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries")
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(bootPlan), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, p.Root.Children, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	p, err := Parse([]byte(`
name: broken
root:
  kind: sequence
  cancel_on_failure: true
  children:
    - step: {type: teleport}
    - kind: parallel
      step: {type: wait}
    - kind: loop
    - step: {type: wait, ticks: -1}
      deadline: -2
      on_timeout: explode
`))
	require.NoError(t, err)

	err = p.Validate(NewRegistry())
	require.ErrorIs(t, err, ErrInvalidPlan)
	for _, want := range []string{
		"root: cancel_on_failure",
		"root.children[0]: unknown step type \"teleport\"",
		"root.children[1]: parallel nodes cannot have a step",
		"root.children[2]: unknown kind \"loop\"",
		"root.children[3]: deadline must be >= 0",
		"root.children[3]: on_timeout",
		"root.children[3]: ticks must be >= 0",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

// runToCompletion submits s and ticks until the dispatcher is empty.
func runToCompletion(t *testing.T, s core.Schedulable, max int) (core.CompletionRecord, int) {
	t.Helper()
	d := core.NewDispatcher(nil)
	var records []core.CompletionRecord
	d.AddObserver(core.CompletionObserverFunc(func(r core.CompletionRecord) {
		records = append(records, r)
	}))
	_, err := d.Submit(s)
	require.NoError(t, err)

	for tick := 1; tick <= max; tick++ {
		require.NoError(t, d.Tick(1))
		if d.Len() == 0 {
			require.Len(t, records, 1)
			return records[0], tick
		}
	}
	t.Fatalf("plan did not finish within %d ticks", max)
	return core.CompletionRecord{}, 0
}

func TestBuild_RunsPlan(t *testing.T) {
	p, err := Parse([]byte(bootPlan))
	require.NoError(t, err)

	root, err := Build(p)
	require.NoError(t, err)
	require.Equal(t, core.KindGroup, root.Kind())

	record, ticks := runToCompletion(t, root, 20)

	// load runs ticks 1-2, checks ticks 3-4; disk fails on its second step
	// so the sequence aborts on tick 4 and finish never starts.
	assert.Equal(t, core.StateFailed, record.State)
	assert.Equal(t, 4, ticks)
	assert.ErrorContains(t, record.Err, "no disk")
}

func TestBuild_Traits(t *testing.T) {
	p, err := Parse([]byte(`
name: traits
root:
  kind: parallel
  deadline: 3
  on_timeout: fail
  cancel_on_failure: true
  children:
    - step: {type: forever}
      start_delay: 1.5
      deadline: 2
`))
	require.NoError(t, err)

	root, err := Build(p)
	require.NoError(t, err)

	g := root.(*core.Group)
	assert.Equal(t, core.Parallel, g.Mode())
	assert.Equal(t, core.TimeoutFail, g.Traits().TimeoutPolicy)
	assert.True(t, g.Traits().CancelOnFailure)

	task := g.Members()[0].(*core.Task)
	assert.Equal(t, "forever", task.Name())
	assert.Equal(t, 1.5, task.Traits().StartDelay)
	assert.Equal(t, core.TimeoutComplete, task.Traits().TimeoutPolicy)
}

func TestBuild_PanicStepIsContained(t *testing.T) {
	p, err := Parse([]byte(`
name: crash
root:
  step: {type: panic, fail_at: 2, message: "kaboom"}
`))
	require.NoError(t, err)
	root, err := Build(p)
	require.NoError(t, err)

	record, ticks := runToCompletion(t, root, 5)

	assert.Equal(t, 2, ticks)
	assert.Equal(t, core.StateFailed, record.State)
	var panicErr *core.StepPanicError
	require.ErrorAs(t, record.Err, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
}

func TestBuilder_CustomKindAndPools(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.Register("count", func(spec StepSpec) (core.Step, error) {
		return core.StepFunc(func(*core.StepContext) (core.Signal, error) {
			calls++
			return core.SignalComplete, nil
		}), nil
	})
	assert.Contains(t, reg.Names(), "count")

	p, err := Parse([]byte(`
name: custom
root:
  kind: parallel
  children:
    - step: {type: count}
    - step: {type: count}
`))
	require.NoError(t, err)

	b := &Builder{Registry: reg, TaskPool: core.NewTaskPool(), GroupPool: core.NewGroupPool()}
	root, err := b.Build(p)
	require.NoError(t, err)

	record, _ := runToCompletion(t, root, 3)
	assert.Equal(t, core.StateSucceeded, record.State)
	assert.Equal(t, 2, calls)

	_, err = Build(p)
	require.ErrorIs(t, err, ErrInvalidPlan, "default registry does not know count")
}

// releaseCounter wraps a SyncPool and counts releases.
type releaseCounter[T any] struct {
	*core.SyncPool[T]
	released int
}

func (p *releaseCounter[T]) Release(item T) {
	p.released++
	p.SyncPool.Release(item)
}

func TestBuilder_ReleasesMembersOnError(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.Register("flaky", func(spec StepSpec) (core.Step, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("flaky factory exhausted")
		}
		return core.StepFunc(func(*core.StepContext) (core.Signal, error) {
			return core.SignalComplete, nil
		}), nil
	})

	p, err := Parse([]byte(`
name: leak
root:
  kind: sequence
  children:
    - step: {type: wait}
    - kind: parallel
      children:
        - step: {type: wait}
    - step: {type: flaky}
`))
	require.NoError(t, err)

	tasks := &releaseCounter[*core.Task]{SyncPool: core.NewTaskPool()}
	groups := &releaseCounter[*core.Group]{SyncPool: core.NewGroupPool()}
	b := &Builder{Registry: reg, TaskPool: tasks, GroupPool: groups}

	root, err := b.Build(p)
	require.Error(t, err)
	assert.Nil(t, root)
	assert.Contains(t, err.Error(), "flaky factory exhausted")
	assert.Equal(t, 2, tasks.released, "both wait tasks go back to the pool")
	assert.Equal(t, 1, groups.released, "the inner parallel group goes back to the pool")
}

func TestRegistry_WaitReportsProgress(t *testing.T) {
	step, err := NewRegistry().New(StepSpec{Type: "wait", Ticks: 4})
	require.NoError(t, err)
	task := core.NewTask(step, core.TaskTraits{Name: "progress"})

	executor := core.NewTaskExecutor(nil)
	executor.Advance(task, 1)
	executor.Advance(task, 1)

	assert.Equal(t, 0.5, task.Progress())
	assert.Equal(t, core.StateRunning, task.State())
}
