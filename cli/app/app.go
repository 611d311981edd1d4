package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/pai-dev/pai-go/cli/server"
	"github.com/pai-dev/pai-go/pkg/config"
	"github.com/urfave/cli/v2"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "PAI device manager\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a pai-go instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "pai-go"
	ctl.Version = config.Version
	ctl.Usage = "Personal AI device manager"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, server.NewCommands()...)
	return ctl
}
