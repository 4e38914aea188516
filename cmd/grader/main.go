package main

import "github.com/gradewise/grader/internal/cli"

func main() {
	cli.Execute()
}
