package main

import "github.com/dmphub-lab/dmphub/cmd/dmpctl/commands"

func main() {
	commands.Execute()
}
