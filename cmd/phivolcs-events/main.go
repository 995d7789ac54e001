package main

import (
	"os"

	"github.com/pfrederiksen/phivolcs-events/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
