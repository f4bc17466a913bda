package main

import "github.com/novelgrab/novelgrab/cmd"

func main() {
	cmd.Execute()
}
