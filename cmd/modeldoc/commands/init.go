package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/modeldoc/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Output directory for generated config file"`
}

func (i *InitCmd) Run(global *Global, root *CLI) error {
	path := root.Config
	if i.Output != "" {
		path = filepath.Join(i.Output, config.DefaultFile)
	}
	fmt.Fprintf(global.stdout(), "Writing configuration to %s\n", path)
	if err := config.Init(path, i.Force); err != nil {
		return err
	}
	fmt.Fprintln(global.stdout(), "initialized successfully")
	return nil
}
