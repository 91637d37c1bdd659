package main

import (
	"os"

	"scrollguard/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
