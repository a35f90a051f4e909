package main

import "ytstats/cli"

func main() {
	cli.Execute()
}
