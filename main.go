package main

import "github.com/KaramelBytes/rwestudy-cli/cmd"

func main() {
	cmd.Execute()
}
