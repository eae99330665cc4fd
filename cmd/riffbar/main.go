package main

import "github.com/tessro/riffbar/internal/cli"

func main() {
	cli.Execute()
}
