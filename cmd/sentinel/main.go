package main

import "github.com/cloudspend/sentinel/internal/cli"

func main() {
	cli.Execute()
}
