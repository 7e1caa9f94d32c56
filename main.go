package main

import "github.com/KaramelBytes/edusight-cli/cmd"

func main() {
	cmd.Execute()
}
