package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const okPlan = `
name: ok
root:
  kind: sequence
  name: ok
  children:
    - name: a
      step: {type: wait, ticks: 2}
    - name: b
      step: {type: wait}
`

const failPlan = `
name: bad
root:
  kind: parallel
  name: bad
  children:
    - step: {type: fail, message: "broken"}
    - step: {type: forever}
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--log-backend", "none"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRun_FixedStep(t *testing.T) {
	out, err := execute(t, "run", "--plan", writeTemp(t, "ok.yaml", okPlan), "--dt", "0.5")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "ok succeeded after 3 ticks (1.500s)") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestRun_FailingPlan(t *testing.T) {
	out, err := execute(t, "run", "--plan", writeTemp(t, "bad.yaml", failPlan))
	if err == nil {
		t.Fatal("expected an error for a failing plan")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error should carry the step failure, got: %v", err)
	}
	if !strings.Contains(out, "bad failed after 1 ticks") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestRun_TickLimit(t *testing.T) {
	plan := "name: spin\nroot:\n  step: {type: forever}\n"
	_, err := execute(t, "run", "--plan", writeTemp(t, "spin.yaml", plan), "--ticks", "5")
	if err == nil || !strings.Contains(err.Error(), "within 5 ticks") {
		t.Fatalf("err = %v, want tick limit error", err)
	}
}

func TestRun_RealtimeWithMetrics(t *testing.T) {
	cfg := writeTemp(t, "tick.toml", "[loop]\ninterval = \"1ms\"\n\n[metrics]\npoll_interval = \"5ms\"\n")
	out, err := execute(t,
		"--config", cfg,
		"run", "--plan", writeTemp(t, "ok.yaml", okPlan),
		"--realtime", "--timeout", "5s",
		"--metrics-addr", "127.0.0.1:0",
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "ok succeeded") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestRun_BadConfig(t *testing.T) {
	cfg := writeTemp(t, "tick.yaml", "loop:\n  interval: never\n")
	_, err := execute(t, "--config", cfg, "run", "--plan", writeTemp(t, "ok.yaml", okPlan))
	if err == nil {
		t.Fatal("expected config error")
	}
}

func TestRun_UnknownLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "verbose", "validate", "--plan", writeTemp(t, "ok.yaml", okPlan))
	if err == nil || !strings.Contains(err.Error(), "verbose") {
		t.Fatalf("err = %v, want unknown log level", err)
	}
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", "--plan", writeTemp(t, "ok.yaml", okPlan))
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	for _, want := range []string{`plan "ok" ok: 2 tasks, 1 groups`, "ok (sequence)", "  a [wait]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	_, err = execute(t, "validate", "--plan", writeTemp(t, "bad.yaml", "name: x\nroot:\n  step: {type: nope}\n"))
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("err = %v, want unknown step type", err)
	}
}
