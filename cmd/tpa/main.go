// Command tpa runs the adjustment engine over local files.
package main

import (
	"github.com/alecthomas/kong"
)

var (
	// Version is set via ldflags when building.
	Version = "dev"

	cli struct {
		Version kong.VersionFlag `help:"Show version information"`
		Globals
		Commands
	}
)

func main() {
	ctx := kong.Parse(&cli,
		kong.Vars{"version": Version},
		kong.Name("tpa"),
		kong.Description("Transfer-pricing adjustment engine."),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
