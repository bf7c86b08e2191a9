package main

import (
	"os"

	"tasktree/cmd/tasktree/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, nil))
}
