package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/tweakctl/cmd/tweakctl/commands"
	"git.home.luguber.info/inful/tweakctl/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("tweakctl"),
		kong.Description("Transactional, reversible OS configuration changes"),
		kong.UsageOnError(),
		kong.Vars{
			"version": fmt.Sprintf("tweakctl %s (commit %s, built %s)",
				version.Version, version.GitCommit, version.BuildTime),
		},
	)

	err := ctx.Run(&commands.Global{})
	ctx.FatalIfErrorf(err)
}
