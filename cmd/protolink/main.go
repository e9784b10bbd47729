package main

import "github.com/platinummonkey/protolink/pkg/cli"

func main() {
	cli.Execute()
}
