// Command authctl is the operator tool of the user service.
package main

import (
	"os"
)

var version = "dev"

func main() {
	cmd := NewRootCmd()
	cmd.Version = version
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
