package main

import "github.com/joss-metrics/joss-pipeline/cmd"

func main() {
	cmd.Execute()
}
