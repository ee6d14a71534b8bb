package plan

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Swind/go-tick-runner/core"
)

// StepFactory builds a fresh step for one task node.
type StepFactory func(spec StepSpec) (core.Step, error)

// Registry maps step type names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]StepFactory
}

// NewRegistry returns a registry holding the built-in step kinds:
//
//	wait     completes on step Ticks (default 1)
//	fail     fails on step FailAt (default 1) with Message
//	panic    panics on step FailAt (default 1) with Message
//	forever  never finishes on its own
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]StepFactory)}
	r.Register("wait", newWaitStep)
	r.Register("fail", newFailStep)
	r.Register("panic", newPanicStep)
	r.Register("forever", newForeverStep)
	return r
}

// Register adds or replaces a step kind.
func (r *Registry) Register(name string, factory StepFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Names returns the registered kinds, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check reports whether spec names a known kind with usable parameters.
func (r *Registry) Check(spec StepSpec) error {
	_, err := r.New(spec)
	return err
}

// New builds a step for spec.
func (r *Registry) New(spec StepSpec) (core.Step, error) {
	if spec.Type == "" {
		return nil, errors.New("step type is required")
	}
	r.mu.RLock()
	factory, ok := r.factories[spec.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown step type %q", spec.Type)
	}
	return factory(spec)
}

func atLeastOne(n int, field string) (int, error) {
	switch {
	case n < 0:
		return 0, fmt.Errorf("%s must be >= 0, got %d", field, n)
	case n == 0:
		return 1, nil
	default:
		return n, nil
	}
}

func newWaitStep(spec StepSpec) (core.Step, error) {
	ticks, err := atLeastOne(spec.Ticks, "ticks")
	if err != nil {
		return nil, err
	}
	return core.StepFunc(func(ctx *core.StepContext) (core.Signal, error) {
		ctx.ReportProgress(float64(ctx.Steps) / float64(ticks))
		if ctx.Steps >= ticks {
			return core.SignalComplete, nil
		}
		return core.SignalContinue, nil
	}), nil
}

func newFailStep(spec StepSpec) (core.Step, error) {
	at, err := atLeastOne(spec.FailAt, "fail_at")
	if err != nil {
		return nil, err
	}
	msg := spec.Message
	if msg == "" {
		msg = "planned failure"
	}
	return core.StepFunc(func(ctx *core.StepContext) (core.Signal, error) {
		if ctx.Steps >= at {
			return core.SignalFail, errors.New(msg)
		}
		return core.SignalContinue, nil
	}), nil
}

func newPanicStep(spec StepSpec) (core.Step, error) {
	at, err := atLeastOne(spec.FailAt, "fail_at")
	if err != nil {
		return nil, err
	}
	msg := spec.Message
	if msg == "" {
		msg = "planned panic"
	}
	return core.StepFunc(func(ctx *core.StepContext) (core.Signal, error) {
		if ctx.Steps >= at {
			panic(msg)
		}
		return core.SignalContinue, nil
	}), nil
}

func newForeverStep(StepSpec) (core.Step, error) {
	return core.StepFunc(func(*core.StepContext) (core.Signal, error) {
		return core.SignalContinue, nil
	}), nil
}
