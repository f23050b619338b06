// Command buildctl is the CLI front-end for the session protocol plane
// client (spec.md §6): it mirrors the build recipe's fields as flags and is
// an external collaborator of the core spec, not part of it.
package main

import (
	"os"

	"github.com/arcbox-labs/buildkit-client/cli/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
