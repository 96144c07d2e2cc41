package main

import "github.com/emanueleielo/parrotgate/cmd"

func main() {
	cmd.Execute()
}
