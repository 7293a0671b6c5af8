// Command invprop compiles IR units and runs the alignment pipeline over them.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/invprop/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands print their own output; flag and usage errors land here
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
