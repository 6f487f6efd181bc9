package main

import (
	"github.com/onflow/flow-tss/cmd/tss/cmd"
)

func main() {
	cmd.Execute()
}
