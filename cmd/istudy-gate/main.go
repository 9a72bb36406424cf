package main

import "github.com/ogabek/istudy-gate/cmd/istudy-gate/cmd"

func main() {
	cmd.Execute()
}
