package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/Swind/go-tick-runner/core"
	"github.com/Swind/go-tick-runner/plan"
	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	var planPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a plan file and print its tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.Load(planPath)
			if err != nil {
				return err
			}
			if err := p.Validate(plan.NewRegistry()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tasks, groups := p.Count()
			fmt.Fprintf(out, "plan %q ok: %d tasks, %d groups\n", p.Name, tasks, groups)
			printNode(out, &p.Root, 0)
			a.logger.Debug("plan validated", core.F("plan", p.Name), core.F("tasks", tasks), core.F("groups", groups))
			return nil
		},
	}

	cmd.Flags().StringVar(&planPath, "plan", "", "Plan file (YAML)")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

func printNode(w io.Writer, n *plan.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	name := n.Name
	if name == "" {
		name = "-"
	}
	if n.Kind == plan.KindTask {
		fmt.Fprintf(w, "%s%s [%s]\n", indent, name, n.Step.Type)
		return
	}
	fmt.Fprintf(w, "%s%s (%s)\n", indent, name, n.Kind)
	for i := range n.Children {
		printNode(w, &n.Children[i], depth+1)
	}
}
