package main

import "github.com/KaramelBytes/correlate-cli/cmd"

func main() {
	cmd.Execute()
}
