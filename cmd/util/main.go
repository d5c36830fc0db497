package main

import (
	"github.com/onflow/flow-kernel/cmd/util/cmd"
)

func main() {
	cmd.Execute()
}
