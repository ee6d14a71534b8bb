package plan

import (
	"fmt"

	"github.com/Swind/go-tick-runner/core"
)

// Builder turns validated plans into Schedulable trees. Nil pools allocate
// with NewTask and NewGroup.
type Builder struct {
	Registry  *Registry
	TaskPool  core.Pool[*core.Task]
	GroupPool core.Pool[*core.Group]
}

// Build validates p against the built-in registry and builds its tree.
func Build(p *Plan) (core.Schedulable, error) {
	return (&Builder{Registry: NewRegistry()}).Build(p)
}

// Build validates p and builds its tree.
func (b *Builder) Build(p *Plan) (core.Schedulable, error) {
	reg := b.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	if err := p.Validate(reg); err != nil {
		return nil, err
	}
	root, err := b.build(&p.Root, reg)
	if err != nil {
		return nil, fmt.Errorf("build plan %q: %w", p.Name, err)
	}
	return root, nil
}

func (b *Builder) build(n *Node, reg *Registry) (core.Schedulable, error) {
	policy := core.TimeoutComplete
	if n.OnTimeout == "fail" {
		policy = core.TimeoutFail
	}

	if n.Kind == KindTask {
		step, err := reg.New(n.Step)
		if err != nil {
			return nil, err
		}
		traits := core.TaskTraits{
			Name:          n.Name,
			StartDelay:    n.StartDelay,
			Deadline:      n.Deadline,
			TimeoutPolicy: policy,
		}
		if traits.Name == "" {
			traits.Name = n.Step.Type
		}
		if b.TaskPool != nil {
			return core.AcquireTask(b.TaskPool, step, traits), nil
		}
		return core.NewTask(step, traits), nil
	}

	members := make([]core.Schedulable, 0, len(n.Children))
	for i := range n.Children {
		m, err := b.build(&n.Children[i], reg)
		if err != nil {
			b.release(members)
			return nil, err
		}
		members = append(members, m)
	}

	traits := core.GroupTraits{
		Name:              n.Name,
		ContinueOnFailure: n.ContinueOnFailure,
		CancelOnFailure:   n.CancelOnFailure,
		Deadline:          n.Deadline,
		TimeoutPolicy:     policy,
	}
	if n.Kind == KindParallel {
		traits.Mode = core.Parallel
	}
	var g *core.Group
	var err error
	if b.GroupPool == nil {
		g, err = core.NewGroup(traits, members...)
	} else {
		g, err = core.AcquireGroup(b.GroupPool, traits, members...)
	}
	if err != nil {
		b.release(members)
		return nil, err
	}
	return g, nil
}

// release returns members built before a failure to the pools.
func (b *Builder) release(members []core.Schedulable) {
	for _, m := range members {
		core.ReleaseTree(m, b.TaskPool, b.GroupPool)
	}
}
