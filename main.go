package main

import "github.com/polyhedge/polyhedge/cmd"

func main() {
	cmd.Execute()
}
