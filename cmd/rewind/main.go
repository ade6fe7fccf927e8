package main

import "github.com/tessro/rewind/internal/cli"

func main() {
	cli.Execute()
}
