package main

import "github.com/forum-rewards/rewarder/cmd"

func main() {
	cmd.Execute()
}
