package main

import (
	"os"

	esctlcmd "github.com/complianceops/escalation-engine/pkg/esctl/cmd"
)

func run(args []string) int {
	root := esctlcmd.NewRootCommand(esctlcmd.DefaultConfig())
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:]))
}
