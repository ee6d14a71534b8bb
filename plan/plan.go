// Package plan describes task and group trees declaratively and builds them
// into core.Schedulable values.
//
// A plan file looks like:
//
//	name: boot
//	root:
//	  kind: sequence
//	  children:
//	    - name: load
//	      step: {type: wait, ticks: 3}
//	    - kind: parallel
//	      continue_on_failure: true
//	      children:
//	        - step: {type: fail, fail_at: 2, message: "no disk"}
//	        - step: {type: wait, ticks: 1}
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Node kinds.
const (
	KindTask     = "task"
	KindSequence = "sequence"
	KindParallel = "parallel"
)

// ErrInvalidPlan is wrapped by every validation failure.
var ErrInvalidPlan = errors.New("invalid plan")

// Plan is a named tree of nodes.
type Plan struct {
	Name string `yaml:"name"`
	Root Node   `yaml:"root"`
}

// Node is a task (with a Step) or a group (with Children).
type Node struct {
	Name string `yaml:"name,omitempty"`
	// Kind defaults to task when Step is set and sequence otherwise.
	Kind string   `yaml:"kind,omitempty"`
	Step StepSpec `yaml:"step,omitempty"`

	StartDelay float64 `yaml:"start_delay,omitempty"`
	Deadline   float64 `yaml:"deadline,omitempty"`
	// OnTimeout is "complete" (default) or "fail".
	OnTimeout string `yaml:"on_timeout,omitempty"`

	ContinueOnFailure bool `yaml:"continue_on_failure,omitempty"`
	CancelOnFailure   bool `yaml:"cancel_on_failure,omitempty"`

	Children []Node `yaml:"children,omitempty"`
}

// StepSpec selects a step kind from a Registry and parameterizes it.
type StepSpec struct {
	Type    string `yaml:"type"`
	Ticks   int    `yaml:"ticks,omitempty"`
	FailAt  int    `yaml:"fail_at,omitempty"`
	Message string `yaml:"message,omitempty"`
}

// Load reads and parses a YAML plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a YAML plan. Unknown keys are rejected.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	p.Root.normalize()
	return &p, nil
}

// Marshal encodes p as YAML.
func (p *Plan) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

func (n *Node) normalize() {
	if n.Kind == "" {
		if n.Step.Type != "" {
			n.Kind = KindTask
		} else {
			n.Kind = KindSequence
		}
	}
	n.Kind = strings.ToLower(n.Kind)
	for i := range n.Children {
		n.Children[i].normalize()
	}
}

// Validate checks every node against reg and reports all problems at once.
func (p *Plan) Validate(reg *Registry) error {
	var errs []error
	p.Root.validate("root", reg, &errs)
	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %w", ErrInvalidPlan, p.Name, errors.Join(errs...))
	}
	return nil
}

func (n *Node) validate(path string, reg *Registry, errs *[]error) {
	fail := func(format string, args ...any) {
		*errs = append(*errs, fmt.Errorf("%s: %s", path, fmt.Sprintf(format, args...)))
	}

	if n.StartDelay < 0 {
		fail("start_delay must be >= 0")
	}
	if n.Deadline < 0 {
		fail("deadline must be >= 0")
	}
	switch n.OnTimeout {
	case "", "complete", "fail":
	default:
		fail("on_timeout %q is not one of complete, fail", n.OnTimeout)
	}

	switch n.Kind {
	case KindTask:
		if len(n.Children) > 0 {
			fail("task nodes cannot have children")
		}
		if n.ContinueOnFailure || n.CancelOnFailure {
			fail("failure policies apply to groups only")
		}
		if err := reg.Check(n.Step); err != nil {
			fail("%v", err)
		}
	case KindSequence, KindParallel:
		if n.Step.Type != "" {
			fail("%s nodes cannot have a step", n.Kind)
		}
		if n.StartDelay > 0 {
			fail("start_delay applies to tasks only")
		}
		if n.CancelOnFailure && n.Kind == KindSequence {
			fail("cancel_on_failure applies to parallel groups only")
		}
		for i := range n.Children {
			n.Children[i].validate(fmt.Sprintf("%s.children[%d]", path, i), reg, errs)
		}
	default:
		fail("unknown kind %q", n.Kind)
	}
}

// Count returns the number of tasks and groups in the tree.
func (p *Plan) Count() (tasks, groups int) {
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Kind == KindTask {
			tasks++
			return
		}
		groups++
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	walk(&p.Root)
	return tasks, groups
}
