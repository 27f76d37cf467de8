package main

import "github.com/example/nira-appointments/cmd"

func main() {
	cmd.Execute()
}
