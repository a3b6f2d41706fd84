// Command meshctl is the CLI client for the meshd daemon's admin HTTP surface.
package main

import "github.com/loramesh/meshcore/cmd/meshctl/commands"

func main() {
	commands.Execute()
}
