package core

import (
	"errors"
	"testing"
)

// TestGroup_AddRules verifies membership is fixed and exclusive
// Given: Groups and tasks in various ownership states
// When: Add is called
// Then: Only unowned, Created members join Created groups
func TestGroup_AddRules(t *testing.T) {
	t.Run("member of another group", func(t *testing.T) {
		task, _ := durationTask("shared", 1)
		mustGroup(t, GroupTraits{Name: "first"}, task)

		_, err := NewSequence(task)
		if !errors.Is(err, ErrAlreadyOwned) {
			t.Fatalf("err = %v, want ErrAlreadyOwned", err)
		}
	})

	t.Run("submitted root", func(t *testing.T) {
		d, _ := newTestDispatcher()
		task, _ := durationTask("root", 1)
		if _, err := d.Submit(task); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}

		_, err := NewSequence(task)
		if !errors.Is(err, ErrAlreadyOwned) {
			t.Fatalf("err = %v, want ErrAlreadyOwned", err)
		}
	})

	t.Run("member left created", func(t *testing.T) {
		task, _ := durationTask("started", 1)
		_ = task.Start()

		_, err := NewParallel(task)
		if !errors.Is(err, ErrNotCreated) {
			t.Fatalf("err = %v, want ErrNotCreated", err)
		}
	})

	t.Run("group left created", func(t *testing.T) {
		g := mustGroup(t, GroupTraits{Name: "running"})
		_ = g.Start()
		task, _ := durationTask("late", 1)

		if err := g.Add(task); !errors.Is(err, ErrNotCreated) {
			t.Fatalf("err = %v, want ErrNotCreated", err)
		}
		if !task.GroupID().IsZero() {
			t.Fatal("rejected member should not be attached")
		}
	})

	t.Run("nil member", func(t *testing.T) {
		var task *Task
		_, err := NewSequence(task)
		if !errors.Is(err, ErrNilSchedulable) {
			t.Fatalf("err = %v, want ErrNilSchedulable", err)
		}
	})

	t.Run("cycle", func(t *testing.T) {
		outer := mustGroup(t, GroupTraits{Name: "outer"})
		if err := outer.Add(outer); !errors.Is(err, ErrCycle) {
			t.Fatalf("self add err = %v, want ErrCycle", err)
		}

		inner := mustGroup(t, GroupTraits{Name: "inner"})
		if err := outer.Add(inner); err != nil {
			t.Fatalf("Add(inner) failed: %v", err)
		}
		if err := inner.Add(outer); !errors.Is(err, ErrCycle) {
			t.Fatalf("ancestor add err = %v, want ErrCycle", err)
		}
	})

	t.Run("duplicate in one call is all or nothing", func(t *testing.T) {
		a, _ := durationTask("a", 1)
		b, _ := durationTask("b", 1)
		g := mustGroup(t, GroupTraits{Name: "dup"})

		if err := g.Add(a, b, a); !errors.Is(err, ErrAlreadyOwned) {
			t.Fatalf("err = %v, want ErrAlreadyOwned", err)
		}
		if g.Len() != 0 || !a.GroupID().IsZero() || !b.GroupID().IsZero() {
			t.Fatal("failed Add should not attach any member")
		}
	})
}

// TestGroup_BackReferenceIsID verifies members point at their group by ID
func TestGroup_BackReferenceIsID(t *testing.T) {
	a, _ := durationTask("a", 1)
	inner := mustGroup(t, GroupTraits{Name: "inner"}, a)
	outer := mustGroup(t, GroupTraits{Name: "outer", Mode: Parallel}, inner)

	if a.GroupID() != inner.ID() {
		t.Fatalf("a.GroupID() = %s, want %s", a.GroupID(), inner.ID())
	}
	if inner.GroupID() != outer.ID() {
		t.Fatalf("inner.GroupID() = %s, want %s", inner.GroupID(), outer.ID())
	}
	if !outer.GroupID().IsZero() {
		t.Fatal("outer should be a root")
	}
	if outer.Kind() != KindGroup || outer.Mode() != Parallel {
		t.Fatalf("outer kind/mode = %s/%s, want group/parallel", outer.Kind(), outer.Mode())
	}
}

// TestGroup_CancelPropagates verifies Cancel reaches all K members synchronously
// Given: A running parallel group with a nested group and a finished member
// When: Cancel is called on the outer group
// Then: Every unfinished member is Canceled before Cancel returns, finished ones keep their state
func TestGroup_CancelPropagates(t *testing.T) {
	// Arrange
	done, _ := durationTask("done", 1)
	a, _ := foreverTask("a")
	b, _ := foreverTask("b")
	c, _ := foreverTask("c")
	inner := mustGroup(t, GroupTraits{Name: "inner"}, b, c)
	outer := mustGroup(t, GroupTraits{Name: "outer", Mode: Parallel}, done, a, inner)
	NewGroupExecutor(nil).Advance(outer, 1)

	// Act
	if !outer.Cancel() {
		t.Fatal("Cancel() on running group should succeed")
	}

	// Assert
	if done.State() != StateSucceeded {
		t.Fatalf("finished member state = %s, want succeeded", done.State())
	}
	for _, m := range []Schedulable{a, b, c, inner, outer} {
		if m.State() != StateCanceled {
			t.Fatalf("%s state = %s, want canceled", m.Name(), m.State())
		}
	}
	if outer.Cancel() {
		t.Fatal("second Cancel() should be a no-op")
	}
}

// TestGroup_PauseResumePropagates verifies Pause/Resume reach active members
// Given: A running parallel group
// When: It is paused, ticked, then resumed
// Then: Members are paused without progress and resume with the group
func TestGroup_PauseResumePropagates(t *testing.T) {
	// Arrange
	executor := NewGroupExecutor(nil)
	a, stepA := foreverTask("a")
	b, stepB := foreverTask("b")
	g := mustGroup(t, GroupTraits{Name: "pausable", Mode: Parallel}, a, b)
	if g.Pause() {
		t.Fatal("Pause() on a created group should be a no-op")
	}
	executor.Advance(g, 1)

	// Act
	if !g.Pause() {
		t.Fatal("Pause() on running group should succeed")
	}
	for iter := 0; iter < 50; iter++ {
		executor.Advance(g, 1)
	}

	// Assert
	if g.State() != StatePaused || a.State() != StatePaused || b.State() != StatePaused {
		t.Fatalf("states = %s/%s/%s, want all paused", g.State(), a.State(), b.State())
	}
	if stepA.calls != 1 || stepB.calls != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", stepA.calls, stepB.calls)
	}

	if !g.Resume() {
		t.Fatal("Resume() on paused group should succeed")
	}
	executor.Advance(g, 1)
	if a.State() != StateRunning || stepA.calls != 2 || stepB.calls != 2 {
		t.Fatalf("after resume a=%s calls=%d/%d, want running 2/2", a.State(), stepA.calls, stepB.calls)
	}
}

// TestGroup_ResumeReleasesIndividuallyPausedMembers verifies group Resume
// reaches members that were paused on their own before the group
// Given: A running parallel group whose member a was paused directly
// When: The group is paused and resumed
// Then: a is Running again and steps on the next advance
func TestGroup_ResumeReleasesIndividuallyPausedMembers(t *testing.T) {
	// Arrange
	executor := NewGroupExecutor(nil)
	a, stepA := foreverTask("a")
	b, _ := foreverTask("b")
	g := mustGroup(t, GroupTraits{Name: "held", Mode: Parallel}, a, b)
	executor.Advance(g, 1)
	a.Pause()
	executor.Advance(g, 1)

	// Act
	g.Pause()
	g.Resume()
	executor.Advance(g, 1)

	// Assert
	if a.State() != StateRunning {
		t.Fatalf("a state = %s, want %s", a.State(), StateRunning)
	}
	if stepA.calls != 2 {
		t.Fatalf("a calls = %d, want 2", stepA.calls)
	}
}

// TestGroup_StartAndMembers verifies explicit Start and accessors
func TestGroup_StartAndMembers(t *testing.T) {
	a, _ := durationTask("a", 1)
	b, _ := durationTask("b", 1)
	g := mustGroup(t, GroupTraits{Name: "seq"}, a, b)

	if err := g.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := g.Start(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Start() err = %v, want ErrInvalidTransition", err)
	}
	if a.State() != StateCreated {
		t.Fatal("members start when advanced, not on group Start")
	}

	members := g.Members()
	if len(members) != 2 || members[0] != Schedulable(a) || members[1] != Schedulable(b) {
		t.Fatal("Members() should return members in insertion order")
	}
	members[0] = nil
	if g.Members()[0] == nil {
		t.Fatal("Members() should return a copy")
	}
}
