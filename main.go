package main

import "github.com/kris-hansen/summaprompt/cmd"

func main() {
	cmd.Execute()
}
