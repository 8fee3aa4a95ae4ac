package main

import (
	"os"

	"github.com/satishbabariya/schemaver/cli/commands"
)

func main() {
	os.Exit(commands.Execute())
}
