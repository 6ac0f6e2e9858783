package main

import "github.com/scrimm/scrimm/cmd"

func main() {
	cmd.Execute()
}
