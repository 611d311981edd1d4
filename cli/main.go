package main

import (
	"os"

	"github.com/pai-dev/pai-go/cli/app"
)

func main() {
	ctl := app.New()

	if err := ctl.Run(os.Args); err != nil {
		panic(err)
	}
}
