package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pagepress/cmd/pagepress/commands"
	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
	"git.home.luguber.info/inful/pagepress/internal/version"
)

func main() {
	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("pagepress"),
		kong.Description("Static site generator with an incremental build pipeline and a live preview server."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	err := parser.Run(&commands.Global{Logger: slog.Default()}, &cli)
	errors.NewCLIErrorAdapter(cli.Verbose > 0, slog.Default()).HandleError(err)
}
