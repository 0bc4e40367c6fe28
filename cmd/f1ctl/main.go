package main

import "github.com/stitts-dev/f1-velocity/internal/cli"

func main() {
	cli.Execute()
}
