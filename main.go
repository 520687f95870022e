package main

import "github.com/hirelink/intercall/cmd"

func main() {
	cmd.Execute()
}
