package main

import (
	"os"

	"github.com/mtr002/bansu-harness/cmd/bansu-harness/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
