// Package main implements the glv CLI.
// It builds control flow graphs for while-language programs and runs
// liveness analysis on them.
package main

import (
	"os"

	"github.com/l3aro/go-liveness/cmd/glv/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.SetVersionTemplate(`glv version {{.Version}}
`)
	commands.RootCmd.Version = version

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
