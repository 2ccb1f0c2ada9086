// Package main implements the carch CLI, a static analyzer for C projects
// that builds call and data-flow graphs, classifies heap-originated
// variables, and partitions functions into modules.
package main

import (
	"os"

	"github.com/l3aro/carch/cmd/carch/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.Version = version
	commands.RootCmd.SetVersionTemplate(`carch version {{.Version}}
`)

	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
