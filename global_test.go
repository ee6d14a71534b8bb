package tickrunner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Swind/go-tick-runner/core"
)

func mustPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic")
		}
	}()
	fn()
}

func TestGlobalLoop_Lifecycle(t *testing.T) {
	mustPanic(t, func() { GetGlobalLoop() })

	InitGlobalLoop(time.Millisecond)
	first := GetGlobalLoop()
	InitGlobalLoop(time.Hour)
	if GetGlobalLoop() != first {
		t.Fatal("second InitGlobalLoop should be a no-op")
	}
	if first.Stats().Name != "global" {
		t.Fatalf("loop name = %q, want global", first.Stats().Name)
	}

	ShutdownGlobalLoop()
	if !first.IsClosed() {
		t.Fatal("ShutdownGlobalLoop should stop the loop")
	}
	ShutdownGlobalLoop()

	mustPanic(t, func() { GetGlobalLoop() })
}

func TestGlobalLoop_SubmitAndCancel(t *testing.T) {
	config := core.DefaultDispatcherConfig()
	config.Name = "custom"
	InitGlobalLoopWithConfig(config, time.Millisecond)
	defer ShutdownGlobalLoop()

	done := make(chan CompletionRecord, 1)
	if err := Observe(func(r CompletionRecord) { done <- r }); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}

	forever := NewFuncTask(func(*StepContext) (Signal, error) {
		return SignalContinue, nil
	}, TaskTraits{Name: "forever"})
	h, err := Submit(context.Background(), forever)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if ok, err := Cancel(context.Background(), h); err != nil || !ok {
		t.Fatalf("Cancel() = %v/%v, want true/nil", ok, err)
	}

	select {
	case r := <-done:
		if r.State != StateCanceled {
			t.Fatalf("state = %s, want canceled", r.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("canceled entry was not retired")
	}

	again := NewFuncTask(func(*StepContext) (Signal, error) { return SignalComplete, nil }, TaskTraits{})
	_, err = Submit(context.Background(), forever)
	if !errors.Is(err, core.ErrAlreadyOwned) {
		t.Fatalf("resubmit err = %v, want ErrAlreadyOwned", err)
	}
	if _, err := Submit(context.Background(), again); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
}
