package main

import "pipeline-bundles/internal/cli"

func main() {
	cli.Execute()
}
