package main

import "github.com/inkwell-ai/recall/cmd"

func main() {
	cmd.Execute()
}
