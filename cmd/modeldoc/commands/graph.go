package commands

import (
	"fmt"
	"text/tabwriter"
)

// GraphCmd implements the 'graph' command.
type GraphCmd struct {
	Unresolved bool `help:"Also list elements outside the root's containment tree"`
}

func (g *GraphCmd) Run(global *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	nodes, _, err := rt.pipeline().Addresses(global.context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(global.stdout(), 0, 4, 2, ' ', 0)
	for _, n := range nodes {
		if n.Address == "" && !g.Unresolved {
			continue
		}
		addr := n.Address
		if addr == "" {
			addr = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", n.Handle, n.Classifier, n.Name, addr)
	}
	return w.Flush()
}
