// Package tickrunner provides a cooperative, tick-driven scheduler for
// long-running tasks and task groups.
//
// Application code submits tasks and groups to a Dispatcher. A host loop
// calls Dispatcher.Tick(deltaTime) once per update; every active entry
// advances by exactly one step, synchronously, on the calling goroutine.
// There is no preemption and no hidden goroutine: a step runs to completion
// before the next one starts.
//
// # Quick Start
//
// Drive a dispatcher from your own update loop:
//
//	d := tickrunner.NewDispatcher(nil)
//	load := tickrunner.NewFuncTask(func(ctx *tickrunner.StepContext) (tickrunner.Signal, error) {
//		if ctx.Steps < 3 {
//			return tickrunner.SignalContinue, nil
//		}
//		return tickrunner.SignalComplete, nil
//	}, tickrunner.TaskTraits{Name: "load"})
//	d.Submit(load)
//
//	for d.Len() > 0 {
//		d.Tick(1.0 / 60)
//	}
//
// Or let a HostLoop own the dispatcher on a dedicated goroutine:
//
//	tickrunner.InitGlobalLoop(16 * time.Millisecond)
//	defer tickrunner.ShutdownGlobalLoop()
//
//	h, err := tickrunner.Submit(ctx, load)
//
// # Key Concepts
//
// Task: a Step invoked once per tick until it signals Complete or Fail.
// Tasks carry an optional start delay and deadline.
//
// Group: an ordered set of tasks and groups. A Sequential group advances
// only its current member; a Parallel group advances every unfinished
// member each tick. A group's state is derived from its members.
//
// Dispatcher: the registry of root entries. It advances them in submission
// order, retires finished ones and notifies CompletionObservers.
//
// # Thread Safety
//
// The Dispatcher is single-threaded. Calls from other goroutines must go
// through a HostLoop, which applies posted work between ticks.
//
// For more details, see https://github.com/Swind/go-tick-runner
package tickrunner
