package main

import "github.com/marmos91/rctmon/cmd/rctmon/commands"

func main() {
	commands.Execute()
}
