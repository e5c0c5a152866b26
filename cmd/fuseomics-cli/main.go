package main

import "github.com/omixlab/fuseomics/internal/cli"

func main() {
	cli.Execute()
}
