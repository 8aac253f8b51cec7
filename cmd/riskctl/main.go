package main

import (
	"os"

	"tradegate/cmd/riskctl/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
