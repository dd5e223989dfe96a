package main

import (
	"os"

	"github.com/unkn0wn-root/redscript/cmd/redscript/commands"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := commands.NewRootCmd()
	commands.SetVersionInfo(root, version, commit, date)

	if err := commands.Execute(root); err != nil {
		os.Exit(1)
	}
}
