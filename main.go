package main

import "github.com/lepinkainen/deepresearch/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
