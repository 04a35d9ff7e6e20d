//go:build windows

package main

import (
	"os"
)

// terminationSignals trigger a graceful shutdown of the server.
var terminationSignals = []os.Signal{os.Interrupt}
