// aswin computes almost-sure winning policies for POMDPs with parity
// objectives given as deterministic parity automata.
package main

import (
	"fmt"
	"os"

	"github.com/corey/aswin/cmd/aswin/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cmd.FormatError(err))
		os.Exit(1)
	}
}
