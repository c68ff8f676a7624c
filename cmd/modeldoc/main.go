package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/modeldoc/cmd/modeldoc/commands"
	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("modeldoc"),
		kong.Description("Generate addressed documentation and a static site from a model."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := parser.Run(&commands.Global{Context: ctx}, cli)
	stop()
	if err != nil {
		ferrors.NewCLIErrorAdapter(cli.Verbose, nil).HandleError(err)
	}
}
