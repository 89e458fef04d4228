package main

import "github.com/qobs-build/cobble/cmd"

func main() {
	cmd.Execute()
}
