package main

import "lookout/internal/cmd"

func main() {
	cmd.Execute()
}
