package main

import "github.com/serverlessresearch/ecsmig/cmd"

func main() {
	cmd.Execute()
}
